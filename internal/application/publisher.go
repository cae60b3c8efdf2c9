package application

import (
	"context"

	"github.com/wms-platform/allocation-service/internal/domain"
)

// EventPublisher delivers committed domain events to the message bus.
// Publication happens after commit; delivery failures are logged by the
// caller and never roll back the transaction.
type EventPublisher interface {
	Publish(ctx context.Context, key string, events []domain.DomainEvent) error
}

// NoopPublisher discards events. Used in tests and when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, key string, events []domain.DomainEvent) error {
	return nil
}
