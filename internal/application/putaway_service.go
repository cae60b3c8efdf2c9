package application

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wms-platform/allocation-service/internal/domain"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
)

// PutawayService scores bins, drives putaway tasks and applies stock on
// completion.
type PutawayService struct {
	tasks     domain.PutawayTaskRepository
	bins      domain.BinRepository
	stock     domain.StockRepository
	receipts  domain.GoodsReceiptRepository
	sequencer *Sequencer
	tx        domain.TxRunner
	publisher EventPublisher
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewPutawayService creates a PutawayService
func NewPutawayService(
	tasks domain.PutawayTaskRepository,
	bins domain.BinRepository,
	stock domain.StockRepository,
	receipts domain.GoodsReceiptRepository,
	sequencer *Sequencer,
	tx domain.TxRunner,
	publisher EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
) *PutawayService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &PutawayService{
		tasks:     tasks,
		bins:      bins,
		stock:     stock,
		receipts:  receipts,
		sequencer: sequencer,
		tx:        tx,
		publisher: publisher,
		logger:    logger.WithComponent("putaway-service"),
		metrics:   m,
	}
}

// SuggestBins scores the location's bins for an incoming quantity and
// returns up to ten targets, best first.
func (s *PutawayService) SuggestBins(ctx context.Context, companyID string, cmd SuggestBinCommand) (*BinSuggestionsDTO, error) {
	if cmd.Quantity <= 0 {
		return nil, apperrors.NewValidation("quantity must be positive")
	}

	bins, err := s.bins.FindByLocation(ctx, companyID, cmd.LocationID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	occupancy, err := s.stock.SummarizeBinOccupancy(ctx, companyID, cmd.LocationID, cmd.SKUID)
	if err != nil {
		return nil, mapDomainError(err)
	}

	candidates := make([]domain.BinCandidate, 0, len(bins))
	for _, bin := range bins {
		candidates = append(candidates, domain.BinCandidate{
			Bin:       bin,
			Occupancy: occupancy[bin.BinID],
		})
	}

	suggestions := domain.SuggestBins(candidates, cmd.Quantity, cmd.PreferSameSKU, cmd.PreferEmpty)
	dto := &BinSuggestionsDTO{Suggestions: suggestions}
	if len(suggestions) > 0 {
		dto.DefaultBinID = suggestions[0].BinID
	}
	return dto, nil
}

// CreateTasksFromGoodsReceipt spawns one PENDING task per accepted receipt
// item. Items without a target bin get one suggested when autoSuggest is
// set; items still lacking a target are skipped.
func (s *PutawayService) CreateTasksFromGoodsReceipt(ctx context.Context, companyID string, cmd CreatePutawayTasksCommand, actorID string) ([]PutawayTaskDTO, error) {
	receipt, err := s.receipts.FindByGRNo(ctx, companyID, cmd.GRNo)
	if err != nil {
		return nil, mapDomainError(err)
	}

	var created []*domain.PutawayTask
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		created = nil
		for _, item := range receipt.Items {
			if item.AcceptedQty <= 0 {
				continue
			}

			targetBin := item.TargetBinID
			if targetBin == "" && cmd.AutoSuggest {
				suggestion, err := s.SuggestBins(txCtx, companyID, SuggestBinCommand{
					SKUID:         item.SKUID,
					LocationID:    receipt.LocationID,
					Quantity:      item.AcceptedQty,
					PreferSameSKU: true,
				})
				if err != nil {
					return err
				}
				targetBin = suggestion.DefaultBinID
			}
			if targetBin == "" {
				s.logger.WithContext(txCtx).Warn("Skipping receipt item without target bin",
					"grNo", receipt.GRNo, "itemId", item.ItemID, "skuId", item.SKUID)
				continue
			}

			task, err := domain.NewPutawayTask(domain.NewPutawayTaskParams{
				CompanyID:          companyID,
				GoodsReceiptID:     receipt.GRNo,
				GoodsReceiptItemID: item.ItemID,
				SKUID:              item.SKUID,
				LocationID:         receipt.LocationID,
				FromBinID:          item.StagingBinID,
				ToBinID:            targetBin,
				Quantity:           item.AcceptedQty,
				BatchNo:            item.BatchNo,
				LotNo:              item.LotNo,
				ExpiryDate:         item.ExpiryDate,
				MfgDate:            item.MfgDate,
				CostPrice:          item.CostPrice,
				MRP:                item.MRP,
			})
			if err != nil {
				return err
			}

			taskNo, err := s.tasks.NextTaskNo(txCtx, companyID, time.Now().UTC())
			if err != nil {
				return err
			}
			task.TaskNo = taskNo
			task.RecordCreated()
			if err := s.tasks.Insert(txCtx, task); err != nil {
				return err
			}
			created = append(created, task)
		}
		return nil
	})
	if err != nil {
		return nil, mapDomainError(err)
	}

	for _, task := range created {
		s.publishTaskEvents(ctx, companyID, task)
		if s.metrics != nil {
			s.metrics.RecordPutawayTaskCreated()
		}
	}

	s.logger.WithContext(ctx).Info("Putaway tasks created",
		"grNo", receipt.GRNo, "tasks", len(created))
	return toPutawayTaskDTOs(created), nil
}

// AssignTask hands a task to a worker
func (s *PutawayService) AssignTask(ctx context.Context, companyID string, cmd AssignTaskCommand, assignerID string) (*PutawayTaskDTO, error) {
	task, err := s.findTask(ctx, companyID, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	from := task.Status
	if err := task.Assign(cmd.AssigneeID, assignerID); err != nil {
		return nil, mapDomainError(err)
	}
	if err := s.tasks.Update(ctx, task, from); err != nil {
		return nil, mapDomainError(err)
	}
	dto := toPutawayTaskDTO(task)
	return &dto, nil
}

// StartTask begins execution, auto-assigning the user when unassigned
func (s *PutawayService) StartTask(ctx context.Context, companyID, taskID, userID string) (*PutawayTaskDTO, error) {
	task, err := s.findTask(ctx, companyID, taskID)
	if err != nil {
		return nil, err
	}
	from := task.Status
	if err := task.Start(userID); err != nil {
		return nil, mapDomainError(err)
	}
	if err := s.tasks.Update(ctx, task, from); err != nil {
		return nil, mapDomainError(err)
	}
	dto := toPutawayTaskDTO(task)
	return &dto, nil
}

// CompleteTask finishes the task and posts the stock: find-or-create the
// ledger row at the final bin, assign its FIFO sequence on first
// materialisation and bump the bin's unit counter — all in one transaction.
func (s *PutawayService) CompleteTask(ctx context.Context, companyID string, cmd CompleteTaskCommand, actorID string) (*PutawayTaskDTO, error) {
	var task *domain.PutawayTask
	// The task is loaded inside the callback so a retried transaction, after
	// a transient abort or a lost sequence race, starts from committed state.
	err := withConflictRetry(ctx, s.tx, s.logger, func(txCtx context.Context) error {
		var err error
		task, err = s.findTask(txCtx, companyID, cmd.TaskID)
		if err != nil {
			return err
		}
		from := task.Status
		if err := task.Complete(actorID, cmd.ActualBinID, cmd.ActualQty, cmd.Notes); err != nil {
			return err
		}

		row := &domain.StockRow{
			CompanyID:  companyID,
			SKUID:      task.SKUID,
			LocationID: task.LocationID,
			BinID:      task.FinalBinID(),
			BatchNo:    task.BatchNo,
			LotNo:      task.LotNo,
			Quantity:   task.FinalQty(),
			ExpiryDate: task.ExpiryDate,
			MfgDate:    task.MfgDate,
			CostPrice:  task.CostPrice,
			MRP:        task.MRP,
		}
		merged, err := s.stock.InsertOrMerge(txCtx, row)
		if err != nil {
			return err
		}
		if _, err := s.sequencer.AssignSequence(txCtx, merged); err != nil {
			return err
		}

		if err := s.bins.AddUnits(txCtx, companyID, task.FinalBinID(), task.FinalQty()); err != nil {
			return err
		}

		return s.tasks.Update(txCtx, task, from)
	})
	if err != nil {
		return nil, mapDomainError(err)
	}

	s.publishTaskEvents(ctx, companyID, task)
	if s.metrics != nil {
		s.metrics.RecordPutawayTaskCompleted()
	}

	s.logger.WithContext(ctx).Info("Putaway task completed",
		"taskNo", task.TaskNo, "binId", task.FinalBinID(), "quantity", task.FinalQty())
	dto := toPutawayTaskDTO(task)
	return &dto, nil
}

// CancelTask aborts a non-terminal task without touching the ledger
func (s *PutawayService) CancelTask(ctx context.Context, companyID string, cmd CancelTaskCommand, actorID string) (*PutawayTaskDTO, error) {
	task, err := s.findTask(ctx, companyID, cmd.TaskID)
	if err != nil {
		return nil, err
	}
	from := task.Status
	if err := task.Cancel(actorID, cmd.Reason); err != nil {
		return nil, mapDomainError(err)
	}
	if err := s.tasks.Update(ctx, task, from); err != nil {
		return nil, mapDomainError(err)
	}

	s.publishTaskEvents(ctx, companyID, task)
	dto := toPutawayTaskDTO(task)
	return &dto, nil
}

// GetTask fetches a task by id
func (s *PutawayService) GetTask(ctx context.Context, companyID, taskID string) (*PutawayTaskDTO, error) {
	task, err := s.findTask(ctx, companyID, taskID)
	if err != nil {
		return nil, err
	}
	dto := toPutawayTaskDTO(task)
	return &dto, nil
}

// GetSummary counts tasks by status for a location
func (s *PutawayService) GetSummary(ctx context.Context, companyID, locationID string) (*domain.PutawaySummary, error) {
	summary, err := s.tasks.Summary(ctx, companyID, locationID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return summary, nil
}

func (s *PutawayService) findTask(ctx context.Context, companyID, taskID string) (*domain.PutawayTask, error) {
	id, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		// Task numbers are also accepted at the boundary.
		task, ferr := s.tasks.FindByTaskNo(ctx, companyID, taskID)
		if ferr != nil {
			return nil, mapDomainError(ferr)
		}
		return task, nil
	}
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, mapDomainError(err)
	}
	if task.CompanyID != companyID {
		return nil, mapDomainError(domain.ErrTaskNotFound)
	}
	return task, nil
}

func (s *PutawayService) publishTaskEvents(ctx context.Context, companyID string, task *domain.PutawayTask) {
	events := task.Events()
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, companyID+":"+task.SKUID, events); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Event publication failed",
			"taskNo", task.TaskNo)
	}
	task.ClearEvents()
}
