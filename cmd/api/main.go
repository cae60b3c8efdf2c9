package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/allocation-service/internal/application"
	"github.com/wms-platform/allocation-service/internal/domain"
	infrakafka "github.com/wms-platform/allocation-service/internal/infrastructure/kafka"
	inframongo "github.com/wms-platform/allocation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/middleware"
	"github.com/wms-platform/allocation-service/pkg/mongodb"
	"github.com/wms-platform/allocation-service/pkg/tracing"
)

const serviceName = "allocation-service"

type config struct {
	ServerAddr       string
	Environment      string
	Version          string
	MongoURI         string
	MongoDatabase    string
	KafkaBrokers     []string
	KafkaEnabled     bool
	TracingEndpoint  string
	TracingEnabled   bool
	TracingSample    float64
	DefaultValuation domain.ValuationMethod
	ShutdownTimeout  time.Duration
}

func loadConfig() config {
	return config{
		ServerAddr:       getEnv("SERVER_ADDR", ":8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		Version:          getEnv("VERSION", "dev"),
		MongoURI:         getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGODB_DATABASE", "wms_allocation"),
		KafkaBrokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaEnabled:     getEnv("KAFKA_ENABLED", "true") == "true",
		TracingEndpoint:  getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled:   getEnv("TRACING_ENABLED", "false") == "true",
		TracingSample:    1.0,
		DefaultValuation: domain.ValuationMethod(getEnv("DEFAULT_VALUATION_METHOD", "FIFO")),
		ShutdownTimeout:  15 * time.Second,
	}
}

func main() {
	cfg := loadConfig()

	logCfg := logging.DefaultConfig(serviceName)
	logCfg.Environment = cfg.Environment
	logCfg.Version = cfg.Version
	logger := logging.New(logCfg)
	logger.SetDefault()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerProvider, err := tracing.Initialize(ctx, &tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.TracingEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSample,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to initialise tracing")
		os.Exit(1)
	}
	defer tracerProvider.Shutdown(context.Background())

	m := metrics.New(serviceName)

	mongoClient, err := mongodb.NewClient(ctx, mongodb.DefaultConfig(cfg.MongoURI, cfg.MongoDatabase))
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	var publisher application.EventPublisher = application.NoopPublisher{}
	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.DefaultConfig(cfg.KafkaBrokers))
		breaker := kafka.NewCircuitBreakerProducer(producer)
		publisher = infrakafka.NewEventPublisher(breaker, kafka.DefaultTopics(), logger, m)
		defer producer.Close()
	}

	db := mongoClient.Database()
	stockRepo := inframongo.NewStockRepository(db, logger)
	channelRepo := inframongo.NewChannelStockRepository(db, logger)
	allocationRepo := inframongo.NewAllocationRepository(db, logger)
	taskRepo := inframongo.NewPutawayTaskRepository(db, logger)
	binRepo := inframongo.NewBinRepository(db, logger)
	receiptRepo := inframongo.NewGoodsReceiptRepository(db, logger)
	refRepo := inframongo.NewReferenceRepository(db, logger)
	txRunner := inframongo.NewTxRunner(mongoClient)

	sequencer := application.NewSequencer(stockRepo, txRunner, logger)
	allocationSvc := application.NewAllocationService(
		stockRepo, channelRepo, allocationRepo, refRepo,
		txRunner, publisher, logger, m, cfg.DefaultValuation,
	)
	putawaySvc := application.NewPutawayService(
		taskRepo, binRepo, stockRepo, receiptRepo,
		sequencer, txRunner, publisher, logger, m,
	)
	stockSvc := application.NewStockService(stockRepo, sequencer, txRunner, publisher, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	middleware.Setup(router, logger, m)
	if cfg.TracingEnabled {
		router.Use(middleware.Tracing(serviceName))
	}

	router.GET("/health", middleware.HealthCheck(serviceName, cfg.Version))
	router.GET("/ready", middleware.ReadinessCheck(map[string]func(ctx context.Context) error{
		"mongodb": mongoClient.Ping,
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	registerRoutes(router, logger, allocationSvc, putawaySvc, stockSvc, sequencer)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "addr", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server failed")
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
