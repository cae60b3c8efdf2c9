package kafka

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerProducer wraps a Producer with a circuit breaker so a broker
// outage fails fast instead of stalling request handlers.
type CircuitBreakerProducer struct {
	producer *Producer
	breaker  *gobreaker.CircuitBreaker
}

// NewCircuitBreakerProducer creates a producer protected by a circuit breaker
func NewCircuitBreakerProducer(producer *Producer) *CircuitBreakerProducer {
	settings := gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &CircuitBreakerProducer{
		producer: producer,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

// Publish publishes through the breaker
func (p *CircuitBreakerProducer) Publish(ctx context.Context, topic, key, eventType string, payload any) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.producer.Publish(ctx, topic, key, eventType, payload)
	})
	return err
}

// State returns the current breaker state
func (p *CircuitBreakerProducer) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the underlying producer
func (p *CircuitBreakerProducer) Close() error {
	return p.producer.Close()
}
