package application

import (
	"context"
	"errors"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

// conflictRetries bounds retries when a commit loses a uniqueness race, for
// allocation numbers and FIFO sequences alike.
const conflictRetries = 3

// withConflictRetry runs fn in a transaction, re-running it from scratch
// when the commit reports a conflict. fn must load its state inside the
// callback so each attempt starts fresh.
func withConflictRetry(ctx context.Context, tx domain.TxRunner, logger *logging.Logger, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = tx.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return err
		}
		logger.WithContext(ctx).Warn("Commit conflict, retrying", "attempt", attempt+1)
	}
	return err
}
