package application

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wms-platform/allocation-service/internal/domain"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
)

// AllocationService implements the allocation cascade: order channel pool,
// then the UNALLOCATED pool, then the general ledger in policy order.
type AllocationService struct {
	stock       domain.StockRepository
	channels    domain.ChannelStockRepository
	allocations domain.AllocationRepository
	refs        domain.ReferenceRepository
	tx          domain.TxRunner
	publisher   EventPublisher
	logger      *logging.Logger
	metrics     *metrics.Metrics

	defaultMethod domain.ValuationMethod
}

// NewAllocationService creates an AllocationService
func NewAllocationService(
	stock domain.StockRepository,
	channels domain.ChannelStockRepository,
	allocations domain.AllocationRepository,
	refs domain.ReferenceRepository,
	tx domain.TxRunner,
	publisher EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
	defaultMethod domain.ValuationMethod,
) *AllocationService {
	if !defaultMethod.IsValid() {
		defaultMethod = domain.ValuationFIFO
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &AllocationService{
		stock:         stock,
		channels:      channels,
		allocations:   allocations,
		refs:          refs,
		tx:            tx,
		publisher:     publisher,
		logger:        logger.WithComponent("allocation-service"),
		metrics:       m,
		defaultMethod: defaultMethod,
	}
}

// Allocate reserves stock for a request. Shortfall is reported in the
// result, not raised as an error.
func (s *AllocationService) Allocate(ctx context.Context, companyID string, req AllocationRequest, actorID string) (*AllocationResultDTO, error) {
	if req.RequiredQty <= 0 {
		return nil, apperrors.NewValidation("requiredQty must be positive")
	}
	if req.SKUID == "" || req.LocationID == "" {
		return nil, apperrors.NewValidation("skuId and locationId are required")
	}

	method, err := s.resolveMethod(ctx, companyID, req)
	if err != nil {
		return nil, mapDomainError(err)
	}

	var (
		created   []*domain.Allocation
		remaining int
	)

	run := func(txCtx context.Context) error {
		created = nil
		remaining = req.RequiredQty

		orderChannel := ""
		if req.OrderID != "" {
			ch, err := s.refs.OrderChannel(txCtx, companyID, req.OrderID)
			if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
				return err
			}
			orderChannel = ch
		}

		ref := domain.AllocationRef{
			OrderID:        req.OrderID,
			OrderItemID:    req.OrderItemID,
			WaveID:         req.WaveID,
			PicklistID:     req.PicklistID,
			PicklistItemID: req.PicklistItemID,
		}

		if orderChannel != "" && remaining > 0 {
			allocs, reserved, err := s.reserveFromChannel(txCtx, companyID, req, orderChannel, method, remaining, ref, actorID)
			if err != nil {
				return err
			}
			created = append(created, allocs...)
			remaining -= reserved
		}

		if remaining > 0 {
			allocs, reserved, err := s.reserveFromChannel(txCtx, companyID, req, domain.ChannelUnallocated, method, remaining, ref, actorID)
			if err != nil {
				return err
			}
			created = append(created, allocs...)
			remaining -= reserved
		}

		if remaining > 0 {
			allocs, reserved, err := s.reserveFromLedger(txCtx, companyID, req, method, remaining, ref, actorID)
			if err != nil {
				return err
			}
			created = append(created, allocs...)
			remaining -= reserved
		}

		for _, a := range created {
			no, err := s.allocations.NextAllocationNo(txCtx, companyID)
			if err != nil {
				return err
			}
			a.AllocationNo = no
			a.RecordCreated()
			if err := s.allocations.Insert(txCtx, a); err != nil {
				return err
			}
		}
		return nil
	}

	if err := withConflictRetry(ctx, s.tx, s.logger, run); err != nil {
		return nil, mapDomainError(err)
	}

	s.publishEvents(ctx, companyID, created)
	result := s.buildResult(req, created, remaining)

	if s.metrics != nil {
		outcome := "full"
		if result.Shortfall > 0 {
			outcome = "partial"
			if result.Allocated == 0 {
				outcome = "none"
			}
		}
		s.metrics.RecordAllocation(outcome, result.Shortfall)
	}

	s.logger.WithContext(ctx).Info("Allocation completed",
		"skuId", req.SKUID,
		"locationId", req.LocationID,
		"requested", result.Requested,
		"allocated", result.Allocated,
		"shortfall", result.Shortfall,
		"method", method.String(),
	)
	return result, nil
}

// BulkAllocate allocates each line, inheriting orderId and locationId from
// the envelope when the line leaves them empty. Success requires every line
// to be fully allocated.
func (s *AllocationService) BulkAllocate(ctx context.Context, companyID string, bulk BulkAllocationRequest, actorID string) (*BulkAllocationResultDTO, error) {
	if len(bulk.Items) == 0 {
		return nil, apperrors.NewValidation("items must not be empty")
	}

	result := &BulkAllocationResultDTO{Success: true}
	for _, line := range bulk.Items {
		if line.LocationID == "" {
			line.LocationID = bulk.LocationID
		}
		if line.OrderID == "" {
			line.OrderID = bulk.OrderID
		}
		if line.WaveID == "" {
			line.WaveID = bulk.WaveID
		}

		lineResult, err := s.Allocate(ctx, companyID, line, actorID)
		if err != nil {
			// Earlier lines have already committed; the failure is recorded
			// against its line instead of discarding their results.
			s.logger.WithContext(ctx).WithError(err).Warn("Bulk allocation line failed",
				"skuId", line.SKUID, "locationId", line.LocationID)
			result.Lines = append(result.Lines, AllocationResultDTO{
				SKUID:     line.SKUID,
				Requested: line.RequiredQty,
				Shortfall: line.RequiredQty,
				Error:     err.Error(),
			})
			result.Requested += line.RequiredQty
			result.Shortfall += line.RequiredQty
			result.Success = false
			continue
		}
		result.Lines = append(result.Lines, *lineResult)
		result.Requested += lineResult.Requested
		result.Allocated += lineResult.Allocated
		result.Shortfall += lineResult.Shortfall
		if !lineResult.Success {
			result.Success = false
		}
	}
	return result, nil
}

// Deallocate cancels an allocation and releases its reservation. Returns
// false without error when the allocation is already cancelled; picked
// allocations cannot be reversed.
func (s *AllocationService) Deallocate(ctx context.Context, companyID, allocationID, actorID string) (bool, error) {
	var (
		alloc     *domain.Allocation
		cancelled bool
	)
	// The aggregate is loaded inside the callback: the driver may re-run it
	// after a transient abort, and each attempt must see committed state.
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		alloc, err = s.findAllocation(txCtx, companyID, allocationID)
		if err != nil {
			return err
		}
		cancelled = false
		if alloc.Status == domain.AllocationStatusCancelled {
			return nil
		}

		from := alloc.Status
		if err := alloc.Cancel(actorID); err != nil {
			return err
		}
		if err := s.releaseSource(txCtx, alloc); err != nil {
			return err
		}
		if err := s.allocations.Update(txCtx, alloc, from); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return false, mapDomainError(err)
	}
	if !cancelled {
		return false, nil
	}

	s.publishEvents(ctx, companyID, []*domain.Allocation{alloc})
	if s.metrics != nil {
		s.metrics.RecordDeallocation()
	}
	return true, nil
}

// DeallocateByOrder cancels all active allocations of an order. Partial
// success is acceptable; returns the count cancelled.
func (s *AllocationService) DeallocateByOrder(ctx context.Context, companyID, orderID, actorID string) (int, error) {
	allocs, err := s.allocations.FindActiveByOrder(ctx, companyID, orderID)
	if err != nil {
		return 0, mapDomainError(err)
	}
	return s.deallocateAll(ctx, companyID, allocs, actorID), nil
}

// DeallocateByWave cancels all active allocations of a wave.
func (s *AllocationService) DeallocateByWave(ctx context.Context, companyID, waveID, actorID string) (int, error) {
	allocs, err := s.allocations.FindActiveByWave(ctx, companyID, waveID)
	if err != nil {
		return 0, mapDomainError(err)
	}
	return s.deallocateAll(ctx, companyID, allocs, actorID), nil
}

func (s *AllocationService) deallocateAll(ctx context.Context, companyID string, allocs []*domain.Allocation, actorID string) int {
	count := 0
	for _, alloc := range allocs {
		ok, err := s.Deallocate(ctx, companyID, alloc.ID.Hex(), actorID)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Deallocation skipped",
				"allocationNo", alloc.AllocationNo)
			continue
		}
		if ok {
			count++
		}
	}
	return count
}

// ConfirmPick converts an allocation's reservation into consumption. The
// picked quantity clamps to the allocated quantity; a short pick releases
// the full reservation and the difference is absorbed as shrinkage.
func (s *AllocationService) ConfirmPick(ctx context.Context, companyID string, cmd ConfirmPickCommand, actorID string) (*AllocationDTO, error) {
	var alloc *domain.Allocation
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		alloc, err = s.findAllocation(txCtx, companyID, cmd.AllocationID)
		if err != nil {
			return err
		}
		from := alloc.Status
		if err := alloc.ConfirmPick(cmd.PickedQty, actorID); err != nil {
			return err
		}
		if err := s.consumeSource(txCtx, alloc); err != nil {
			return err
		}
		return s.allocations.Update(txCtx, alloc, from)
	})
	if err != nil {
		return nil, mapDomainError(err)
	}

	s.publishEvents(ctx, companyID, []*domain.Allocation{alloc})
	if s.metrics != nil {
		s.metrics.RecordPickConfirmed()
	}

	dto := toAllocationDTO(alloc)
	return &dto, nil
}

// CheckAvailability aggregates over ledger rows, unaffected by channel
// partitioning.
func (s *AllocationService) CheckAvailability(ctx context.Context, companyID, skuID, locationID string, requiredQty int) (*AvailabilityDTO, error) {
	rows, err := s.stock.FindActive(ctx, companyID, skuID, locationID)
	if err != nil {
		return nil, mapDomainError(err)
	}

	available, total := 0, 0
	for _, row := range rows {
		available += row.Available()
		total += row.Quantity
	}

	return &AvailabilityDTO{
		SKUID:      skuID,
		LocationID: locationID,
		Available:  available,
		Total:      total,
		Sufficient: available >= requiredQty,
	}, nil
}

func (s *AllocationService) reserveFromChannel(
	ctx context.Context,
	companyID string,
	req AllocationRequest,
	channel string,
	method domain.ValuationMethod,
	remaining int,
	ref domain.AllocationRef,
	actorID string,
) ([]*domain.Allocation, int, error) {
	rows, err := s.channels.FindCandidates(ctx, companyID, req.SKUID, req.LocationID, channel)
	if err != nil {
		return nil, 0, err
	}
	domain.SortChannelCandidates(rows, method)

	var allocs []*domain.Allocation
	reserved := 0
	for _, row := range rows {
		if reserved == remaining {
			break
		}
		take := row.Available()
		if take <= 0 {
			continue
		}
		if take > remaining-reserved {
			take = remaining - reserved
		}

		if err := s.channels.Reserve(ctx, row.ID, take); err != nil {
			// A concurrent allocator got here first; move to the next row.
			if errors.Is(err, domain.ErrInsufficientAvailable) {
				continue
			}
			return nil, 0, err
		}

		alloc, err := domain.NewChannelAllocation(row, take, method, ref, actorID)
		if err != nil {
			return nil, 0, err
		}
		allocs = append(allocs, alloc)
		reserved += take
	}
	return allocs, reserved, nil
}

func (s *AllocationService) reserveFromLedger(
	ctx context.Context,
	companyID string,
	req AllocationRequest,
	method domain.ValuationMethod,
	remaining int,
	ref domain.AllocationRef,
	actorID string,
) ([]*domain.Allocation, int, error) {
	rows, err := s.stock.FindCandidates(ctx, companyID, req.SKUID, req.LocationID)
	if err != nil {
		return nil, 0, err
	}
	domain.SortCandidates(rows, method, req.PreferredBinID)

	var allocs []*domain.Allocation
	reserved := 0
	for _, row := range rows {
		if reserved == remaining {
			break
		}
		take := row.Available()
		if take <= 0 {
			continue
		}
		if take > remaining-reserved {
			take = remaining - reserved
		}

		if err := s.stock.Reserve(ctx, row.ID, take); err != nil {
			if errors.Is(err, domain.ErrInsufficientAvailable) {
				continue
			}
			return nil, 0, err
		}

		alloc, err := domain.NewAllocation(row, take, method, ref, actorID)
		if err != nil {
			return nil, 0, err
		}
		allocs = append(allocs, alloc)
		reserved += take
	}
	return allocs, reserved, nil
}

// resolveMethod picks the ordering policy: explicit method, then SKU
// override, then location override, then company default, then the
// configured default. Missing levels fall through silently.
func (s *AllocationService) resolveMethod(ctx context.Context, companyID string, req AllocationRequest) (domain.ValuationMethod, error) {
	if req.ValuationMethod != "" {
		if !req.ValuationMethod.IsValid() {
			return "", apperrors.NewValidation(fmt.Sprintf("unknown valuation method %q", req.ValuationMethod))
		}
		return req.ValuationMethod, nil
	}

	if m, err := s.refs.SKUValuation(ctx, companyID, req.SKUID); err != nil {
		return "", err
	} else if m.IsValid() {
		return m, nil
	}

	if m, err := s.refs.LocationValuation(ctx, companyID, req.LocationID); err != nil {
		return "", err
	} else if m.IsValid() {
		return m, nil
	}

	if m, err := s.refs.CompanyValuation(ctx, companyID); err != nil {
		return "", err
	} else if m.IsValid() {
		return m, nil
	}

	return s.defaultMethod, nil
}

func (s *AllocationService) releaseSource(ctx context.Context, alloc *domain.Allocation) error {
	if alloc.FromChannel() {
		return s.channels.Release(ctx, *alloc.ChannelInventoryID, alloc.AllocatedQty)
	}
	return s.stock.Release(ctx, alloc.InventoryID, alloc.AllocatedQty)
}

func (s *AllocationService) consumeSource(ctx context.Context, alloc *domain.Allocation) error {
	if alloc.FromChannel() {
		return s.channels.Consume(ctx, *alloc.ChannelInventoryID, alloc.PickedQty, alloc.AllocatedQty)
	}
	return s.stock.Consume(ctx, alloc.InventoryID, alloc.PickedQty, alloc.AllocatedQty)
}

func (s *AllocationService) findAllocation(ctx context.Context, companyID, allocationID string) (*domain.Allocation, error) {
	id, err := primitive.ObjectIDFromHex(allocationID)
	if err != nil {
		return nil, apperrors.NewValidation("invalid allocation id")
	}
	alloc, err := s.allocations.FindByID(ctx, id)
	if err != nil {
		return nil, mapDomainError(err)
	}
	if alloc.CompanyID != companyID {
		return nil, mapDomainError(domain.ErrAllocationNotFound)
	}
	return alloc, nil
}

func (s *AllocationService) publishEvents(ctx context.Context, companyID string, allocs []*domain.Allocation) {
	for _, alloc := range allocs {
		events := alloc.Events()
		if len(events) == 0 {
			continue
		}
		if err := s.publisher.Publish(ctx, companyID+":"+alloc.SKUID, events); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Event publication failed",
				"allocationNo", alloc.AllocationNo)
		}
		alloc.ClearEvents()
	}
}

func (s *AllocationService) buildResult(req AllocationRequest, created []*domain.Allocation, remaining int) *AllocationResultDTO {
	dtos := make([]AllocationDTO, 0, len(created))
	for _, a := range created {
		dtos = append(dtos, toAllocationDTO(a))
	}
	return &AllocationResultDTO{
		SKUID:       req.SKUID,
		Requested:   req.RequiredQty,
		Allocated:   req.RequiredQty - remaining,
		Shortfall:   remaining,
		Success:     remaining == 0,
		Allocations: dtos,
	}
}
