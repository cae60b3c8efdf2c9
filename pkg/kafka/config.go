package kafka

import (
	"time"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
	MaxAttempts  int
}

// DefaultConfig returns a default Kafka configuration
func DefaultConfig(brokers []string) *Config {
	return &Config{
		Brokers:      brokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: -1,
		MaxAttempts:  3,
	}
}

// Topics used by the allocation service
type Topics struct {
	AllocationEvents string
	PutawayEvents    string
	StockEvents      string
}

// DefaultTopics returns the standard topic names
func DefaultTopics() Topics {
	return Topics{
		AllocationEvents: "wms.allocation.events",
		PutawayEvents:    "wms.putaway.events",
		StockEvents:      "wms.stock.events",
	}
}
