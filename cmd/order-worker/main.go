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
	"github.com/TeseySTD/ecommerce-order-saga/internal/order"
	"github.com/TeseySTD/ecommerce-order-saga/internal/telemetry"
)

const serviceName = "order-worker"

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

	zlog.Info("starting order worker",
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

	consumer, err := kafka.NewConsumer(ctx, &kafka.ConsumerConfig{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  serviceName,
		Topics:   event.OrderTopics(),
		ClientID: cfg.Kafka.ClientID,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()
	zlog.Info("kafka connected", zap.Strings("brokers", cfg.Kafka.Brokers))

	handler := order.NewEventHandler(order.NewPostgresStore(db.Pool()), zlog)

	go func() {
		if err := consumer.Run(ctx, handler.HandleRecord); err != nil {
			zlog.Error("consumer stopped", zap.Error(err))
			cancel()
		}
	}()

	zlog.Info("order worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	zlog.Info("shutting down order worker")
	cancel()
	time.Sleep(2 * time.Second)
	zlog.Info("order worker exited")
}
