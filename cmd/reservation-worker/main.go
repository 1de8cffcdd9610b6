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
	"github.com/TeseySTD/ecommerce-order-saga/internal/inventory"
	"github.com/TeseySTD/ecommerce-order-saga/internal/kafka"
	"github.com/TeseySTD/ecommerce-order-saga/internal/logger"
	"github.com/TeseySTD/ecommerce-order-saga/internal/redisx"
	"github.com/TeseySTD/ecommerce-order-saga/internal/telemetry"
)

const serviceName = "reservation-worker"

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

	zlog.Info("starting reservation worker",
		zap.String("environment", cfg.App.Environment),
		zap.String("ledger", cfg.Inventory.Ledger))

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

	var ledger inventory.Ledger
	switch cfg.Inventory.Ledger {
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

		redisLedger := inventory.NewRedisLedger(rdb)
		if err := redisLedger.LoadScripts(ctx); err != nil {
			zlog.Warn("failed to pre-load lua scripts", zap.Error(err))
		} else {
			zlog.Info("lua scripts pre-loaded into redis")
		}
		ledger = redisLedger
	default:
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
		ledger = inventory.NewPostgresLedger(db.Pool())
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
		GroupID:  serviceName,
		Topics:   event.ReservationTopics(),
		ClientID: cfg.Kafka.ClientID,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()
	zlog.Info("kafka connected", zap.Strings("brokers", cfg.Kafka.Brokers))

	service := inventory.NewService(ledger, zlog)
	handler := inventory.NewCommandHandler(service, kafka.NewEventPublisher(producer), zlog)

	go func() {
		if err := consumer.Run(ctx, handler.HandleRecord); err != nil {
			zlog.Error("consumer stopped", zap.Error(err))
			cancel()
		}
	}()

	zlog.Info("reservation worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	zlog.Info("shutting down reservation worker")
	cancel()
	time.Sleep(2 * time.Second)
	zlog.Info("reservation worker exited")
}
