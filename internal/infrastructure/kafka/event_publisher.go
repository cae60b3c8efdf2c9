package kafka

import (
	"context"
	"strings"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
)

// Producer is the transport the publisher writes through. Satisfied by
// both the plain and the circuit-breaker producer.
type Producer interface {
	Publish(ctx context.Context, topic, key, eventType string, payload any) error
}

// EventPublisher routes domain events to their Kafka topics by event-type
// prefix.
type EventPublisher struct {
	producer Producer
	topics   kafka.Topics
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewEventPublisher creates an EventPublisher
func NewEventPublisher(producer Producer, topics kafka.Topics, logger *logging.Logger, m *metrics.Metrics) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		topics:   topics,
		logger:   logger.WithComponent("event-publisher"),
		metrics:  m,
	}
}

// Publish writes each event as one message keyed for per-SKU ordering
func (p *EventPublisher) Publish(ctx context.Context, key string, events []domain.DomainEvent) error {
	for _, event := range events {
		topic := p.topicFor(event.EventType())
		err := p.producer.Publish(ctx, topic, key, event.EventType(), event)
		if p.metrics != nil {
			p.metrics.RecordKafkaPublish(topic, err)
		}
		if err != nil {
			return err
		}
		p.logger.WithContext(ctx).Debug("Event published",
			"eventType", event.EventType(), "topic", topic)
	}
	return nil
}

func (p *EventPublisher) topicFor(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "allocation."):
		return p.topics.AllocationEvents
	case strings.HasPrefix(eventType, "putaway."):
		return p.topics.PutawayEvents
	default:
		return p.topics.StockEvents
	}
}
