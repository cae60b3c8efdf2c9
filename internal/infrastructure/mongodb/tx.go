package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/mongodb"
)

// TxRunner runs repository calls inside a mongo session transaction. The
// session rides on the context, so repositories invoked with the inner
// context participate automatically.
type TxRunner struct {
	client *mongodb.Client
}

// NewTxRunner creates a TxRunner
func NewTxRunner(client *mongodb.Client) *TxRunner {
	return &TxRunner{client: client}
}

// WithinTx executes fn atomically. Commit-time duplicate keys surface as
// conflicts the caller may retry.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}
