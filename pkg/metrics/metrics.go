package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all prometheus collectors for the service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// MongoDB
	mongoOperationsTotal   *prometheus.CounterVec
	mongoOperationDuration *prometheus.HistogramVec

	// Kafka
	kafkaMessagesPublished *prometheus.CounterVec

	// Business
	allocationsCreated    *prometheus.CounterVec
	allocationsCancelled  prometheus.Counter
	picksConfirmed        prometheus.Counter
	shortfallUnits        prometheus.Counter
	putawayTasksCreated   prometheus.Counter
	putawayTasksCompleted prometheus.Counter
}

// New creates and registers all service metrics
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency",
			ConstLabels: constLabels,
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		httpRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "http_requests_in_flight",
			Help:        "In-flight HTTP requests",
			ConstLabels: constLabels,
		}),
		mongoOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "mongodb_operations_total",
			Help:        "Total MongoDB operations",
			ConstLabels: constLabels,
		}, []string{"collection", "operation", "status"}),
		mongoOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "mongodb_operation_duration_seconds",
			Help:        "MongoDB operation latency",
			ConstLabels: constLabels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"collection", "operation"}),
		kafkaMessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kafka_messages_published_total",
			Help:        "Total Kafka messages published",
			ConstLabels: constLabels,
		}, []string{"topic", "status"}),
		allocationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "allocations_created_total",
			Help:        "Allocations created, by fulfilment outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		allocationsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "allocations_cancelled_total",
			Help:        "Allocations cancelled",
			ConstLabels: constLabels,
		}),
		picksConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "picks_confirmed_total",
			Help:        "Pick confirmations processed",
			ConstLabels: constLabels,
		}),
		shortfallUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "allocation_shortfall_units_total",
			Help:        "Units requested that could not be allocated",
			ConstLabels: constLabels,
		}),
		putawayTasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "putaway_tasks_created_total",
			Help:        "Putaway tasks created",
			ConstLabels: constLabels,
		}),
		putawayTasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "putaway_tasks_completed_total",
			Help:        "Putaway tasks completed",
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.mongoOperationsTotal,
		m.mongoOperationDuration,
		m.kafkaMessagesPublished,
		m.allocationsCreated,
		m.allocationsCancelled,
		m.picksConfirmed,
		m.shortfallUnits,
		m.putawayTasksCreated,
		m.putawayTasksCompleted,
	)

	return m
}

// Handler returns the prometheus scrape handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight gauge
func (m *Metrics) IncInFlight() { m.httpRequestsInFlight.Inc() }

// DecInFlight decrements the in-flight gauge
func (m *Metrics) DecInFlight() { m.httpRequestsInFlight.Dec() }

// RecordMongoOperation records a MongoDB operation
func (m *Metrics) RecordMongoOperation(collection, operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.mongoOperationsTotal.WithLabelValues(collection, operation, status).Inc()
	m.mongoOperationDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// RecordKafkaPublish records a Kafka publish attempt
func (m *Metrics) RecordKafkaPublish(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.kafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordAllocation records an allocation outcome (full, partial or none)
func (m *Metrics) RecordAllocation(outcome string, shortfall int) {
	m.allocationsCreated.WithLabelValues(outcome).Inc()
	if shortfall > 0 {
		m.shortfallUnits.Add(float64(shortfall))
	}
}

// RecordDeallocation records a cancelled allocation
func (m *Metrics) RecordDeallocation() { m.allocationsCancelled.Inc() }

// RecordPickConfirmed records a confirmed pick
func (m *Metrics) RecordPickConfirmed() { m.picksConfirmed.Inc() }

// RecordPutawayTaskCreated records a created putaway task
func (m *Metrics) RecordPutawayTaskCreated() { m.putawayTasksCreated.Inc() }

// RecordPutawayTaskCompleted records a completed putaway task
func (m *Metrics) RecordPutawayTaskCompleted() { m.putawayTasksCompleted.Inc() }
