package application

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wms-platform/allocation-service/internal/domain"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

// StockService covers the ledger maintenance surface: upward adjustments
// merging through the insert path, guarded deletion and row queries.
type StockService struct {
	stock     domain.StockRepository
	sequencer *Sequencer
	tx        domain.TxRunner
	publisher EventPublisher
	logger    *logging.Logger
}

// NewStockService creates a StockService
func NewStockService(
	stock domain.StockRepository,
	sequencer *Sequencer,
	tx domain.TxRunner,
	publisher EventPublisher,
	logger *logging.Logger,
) *StockService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &StockService{
		stock:     stock,
		sequencer: sequencer,
		tx:        tx,
		publisher: publisher,
		logger:    logger.WithComponent("stock-service"),
	}
}

// Adjust adds quantity at a ledger key, creating and sequencing the row on
// first materialisation.
func (s *StockService) Adjust(ctx context.Context, companyID string, cmd AdjustStockCommand) (*StockRowDTO, error) {
	if cmd.Quantity <= 0 {
		return nil, apperrors.NewValidation("quantity must be positive")
	}

	var expiry *time.Time
	if cmd.ExpiryDate != nil {
		parsed, err := time.Parse(time.RFC3339, *cmd.ExpiryDate)
		if err != nil {
			return nil, apperrors.NewValidation("expiryDate must be RFC3339")
		}
		expiry = &parsed
	}

	row := &domain.StockRow{
		CompanyID:  companyID,
		SKUID:      cmd.SKUID,
		LocationID: cmd.LocationID,
		BinID:      cmd.BinID,
		BatchNo:    cmd.BatchNo,
		LotNo:      cmd.LotNo,
		Quantity:   cmd.Quantity,
		ExpiryDate: expiry,
		CostPrice:  cmd.CostPrice,
		MRP:        cmd.MRP,
	}

	// Losing a first-materialisation sequence race re-runs the transaction.
	var merged *domain.StockRow
	err := withConflictRetry(ctx, s.tx, s.logger, func(txCtx context.Context) error {
		var err error
		merged, err = s.stock.InsertOrMerge(txCtx, row)
		if err != nil {
			return err
		}
		firstMaterialisation := !merged.HasSequence()
		if _, err := s.sequencer.AssignSequence(txCtx, merged); err != nil {
			return err
		}
		if firstMaterialisation {
			s.publishCreated(txCtx, merged)
		}
		return nil
	})
	if err != nil {
		return nil, mapDomainError(err)
	}

	dto := toStockRowDTO(merged)
	return &dto, nil
}

// Delete removes a ledger row. Rows holding reservations cannot be removed.
func (s *StockService) Delete(ctx context.Context, companyID, rowID string) error {
	id, err := primitive.ObjectIDFromHex(rowID)
	if err != nil {
		return apperrors.NewValidation("invalid stock row id")
	}

	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		row, err := s.stock.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if row.CompanyID != companyID {
			return domain.ErrStockRowNotFound
		}
		if !row.CanDelete() {
			return domain.ErrRowHasReservations
		}
		return s.stock.Delete(txCtx, id)
	})
	return mapDomainError(err)
}

// GetRows lists ledger rows for a (sku, location) pair
func (s *StockService) GetRows(ctx context.Context, companyID, skuID, locationID string) ([]StockRowDTO, error) {
	rows, err := s.stock.FindActive(ctx, companyID, skuID, locationID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	dtos := make([]StockRowDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, toStockRowDTO(row))
	}
	return dtos, nil
}

func (s *StockService) publishCreated(ctx context.Context, row *domain.StockRow) {
	event := domain.StockRowCreatedEvent{
		CompanyID:    row.CompanyID,
		SKUID:        row.SKUID,
		LocationID:   row.LocationID,
		BinID:        row.BinID,
		BatchNo:      row.BatchNo,
		Quantity:     row.Quantity,
		FIFOSequence: row.FIFOSequence,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, row.CompanyID+":"+row.SKUID, []domain.DomainEvent{event}); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Event publication failed",
			"skuId", row.SKUID)
	}
}
