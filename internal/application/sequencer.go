package application

import (
	"context"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

// Sequencer issues and repairs FIFO sequences. Sequences are unique and
// monotonic per (sku, location); gaps are allowed.
type Sequencer struct {
	stock  domain.StockRepository
	tx     domain.TxRunner
	logger *logging.Logger
}

// NewSequencer creates a Sequencer
func NewSequencer(stock domain.StockRepository, tx domain.TxRunner, logger *logging.Logger) *Sequencer {
	return &Sequencer{
		stock:  stock,
		tx:     tx,
		logger: logger.WithComponent("sequencer"),
	}
}

// NextSequence returns max(fifoSequence)+1 for the pair, or 1 when the
// ledger holds no sequenced rows.
func (s *Sequencer) NextSequence(ctx context.Context, companyID, skuID, locationID string) (int, error) {
	max, err := s.stock.MaxSequence(ctx, companyID, skuID, locationID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// AssignSequence sets the row's sequence if unset and returns it.
// Idempotent: an already sequenced row keeps its value.
func (s *Sequencer) AssignSequence(ctx context.Context, row *domain.StockRow) (int, error) {
	if row.HasSequence() {
		return row.FIFOSequence, nil
	}

	next, err := s.NextSequence(ctx, row.CompanyID, row.SKUID, row.LocationID)
	if err != nil {
		return 0, err
	}
	if err := s.stock.SetSequence(ctx, row.ID, next); err != nil {
		return 0, err
	}
	row.FIFOSequence = next
	return next, nil
}

// Reassign rewrites the pair's sequences in createdAt order over rows with
// quantity > 0. Every sequence of the pair is cleared first so the new
// numbering cannot collide with the one it replaces; depleted rows come out
// of the pass unsequenced. Repair operation; not part of the hot path.
func (s *Sequencer) Reassign(ctx context.Context, companyID, skuID, locationID string) (int, error) {
	var count int
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		rows, err := s.stock.FindActive(txCtx, companyID, skuID, locationID)
		if err != nil {
			return err
		}
		if err := s.stock.ClearSequences(txCtx, companyID, skuID, locationID); err != nil {
			return err
		}
		for i, row := range rows {
			if err := s.stock.SetSequence(txCtx, row.ID, i+1); err != nil {
				return err
			}
		}
		count = len(rows)
		return nil
	})
	if err != nil {
		return 0, mapDomainError(err)
	}

	s.logger.WithContext(ctx).Info("Reassigned FIFO sequences",
		"skuId", skuID, "locationId", locationID, "rows", count)
	return count, nil
}

// BulkReassign repairs every (sku, location) pair of a company. Expensive;
// admin-invoked only.
func (s *Sequencer) BulkReassign(ctx context.Context, companyID string) (int, error) {
	pairs, err := s.stock.ListSequencePairs(ctx, companyID)
	if err != nil {
		return 0, mapDomainError(err)
	}

	total := 0
	for _, pair := range pairs {
		count, err := s.Reassign(ctx, companyID, pair.SKUID, pair.LocationID)
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}
