package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/config"
	"github.com/TeseySTD/ecommerce-order-saga/internal/database"
	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
	"github.com/TeseySTD/ecommerce-order-saga/internal/kafka"
	"github.com/TeseySTD/ecommerce-order-saga/internal/logger"
	"github.com/TeseySTD/ecommerce-order-saga/internal/outbox"
	"github.com/TeseySTD/ecommerce-order-saga/internal/redisx"
	"github.com/TeseySTD/ecommerce-order-saga/internal/saga"
	"github.com/TeseySTD/ecommerce-order-saga/internal/telemetry"
)

const serviceName = "saga-orchestrator"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(serviceName, cfg.App.Environment, cfg.App.Debug)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("starting saga orchestrator",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		zlog.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer tel.Shutdown(context.Background())

	var (
		store      saga.Store
		outboxRepo outbox.Repository
		recorder   saga.Recorder
	)
	switch cfg.Saga.Store {
	case "postgres":
		db, err := database.NewPostgres(ctx, &database.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			MaxRetries:      3,
			RetryInterval:   2 * time.Second,
			EnableTracing:   cfg.OTel.Enabled,
		})
		if err != nil {
			zlog.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		zlog.Info("database connected")
		pgStore := saga.NewPostgresStore(db.Pool())
		pgRepo := outbox.NewPostgresRepository(db.Pool())
		store = pgStore
		outboxRepo = pgRepo
		// Instance write and outbox insert commit in one transaction.
		recorder = outbox.NewSagaRecorder(db.Pool(), pgStore, pgRepo, cfg.Outbox.MaxRetries)
	case "redis":
		rdb, err := redisx.NewClient(ctx, &redisx.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: 2 * time.Second,
		})
		if err != nil {
			zlog.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		zlog.Info("redis connected")
		store = saga.NewRedisStore(rdb.Client(), "saga:order:", cfg.Saga.InstanceTTL)
		outboxRepo = outbox.NewMemoryRepository()
		recorder = saga.NewPublishRecorder(store, outbox.NewPublisher(outboxRepo, cfg.Outbox.MaxRetries))
		zlog.Warn("saga store is redis: staged outbox messages are held in memory and die with the process; use the postgres store for durable staging")
	default:
		store = saga.NewMemoryStore()
		outboxRepo = outbox.NewMemoryRepository()
		recorder = saga.NewPublishRecorder(store, outbox.NewPublisher(outboxRepo, cfg.Outbox.MaxRetries))
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
	})
	if err != nil {
		zlog.Fatal("failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(ctx, &kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  cfg.Kafka.ConsumerGroup,
		Topics:   event.OrchestratorTopics(),
		ClientID: cfg.Kafka.ClientID,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()
	zlog.Info("kafka connected", zap.Strings("brokers", cfg.Kafka.Brokers))

	outboxWorker := outbox.NewWorker(outboxRepo, producer, &outbox.WorkerConfig{
		PollInterval:     cfg.Outbox.PollInterval,
		BatchSize:        cfg.Outbox.BatchSize,
		RetryInterval:    cfg.Outbox.RetryInterval,
		CleanupInterval:  1 * time.Hour,
		CleanupRetention: 7 * 24 * time.Hour,
	}, zlog)
	if err := outboxWorker.Start(ctx); err != nil {
		zlog.Fatal("failed to start outbox worker", zap.Error(err))
	}
	defer outboxWorker.Stop()

	orchestrator := saga.NewOrchestrator(store, recorder, zlog)
	handler := saga.NewRecordHandler(orchestrator, zlog)

	reporter := saga.NewStalledReporter(store, zlog, cfg.Saga.StalledAfter, cfg.Saga.StalledCheckInterval)
	reporter.Start(ctx)
	defer reporter.Stop()

	go func() {
		if err := consumer.Run(ctx, handler.HandleRecord); err != nil {
			zlog.Error("consumer stopped", zap.Error(err))
			cancel()
		}
	}()

	zlog.Info("saga orchestrator started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	zlog.Info("shutting down saga orchestrator")
	cancel()
	time.Sleep(2 * time.Second)
	zlog.Info("saga orchestrator exited")
}
