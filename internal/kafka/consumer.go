package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/telemetry"
)

// ConsumerConfig holds configuration for a Kafka consumer group member
type ConsumerConfig struct {
	Brokers          []string
	GroupID          string
	Topics           []string
	ClientID         string
	SessionTimeout   time.Duration
	RebalanceTimeout time.Duration
}

// Handler processes one record. Returning an error leaves the offset
// uncommitted so the record is redelivered.
type Handler func(ctx context.Context, record *kgo.Record) error

// Consumer consumes topics as part of a consumer group with manual commits.
type Consumer struct {
	client *kgo.Client
	logger *zap.Logger
}

// NewConsumer creates a new consumer group member and verifies connectivity
func NewConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.RebalanceTimeout == 0 {
		cfg.RebalanceTimeout = 60 * time.Second
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ClientID(cfg.ClientID),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.RebalanceTimeout(cfg.RebalanceTimeout),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping kafka: %w", err)
	}

	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until the context is cancelled, handing each record to the
// handler in order. Offsets are committed only when every record of a fetch
// was handled; a failed record keeps the whole fetch uncommitted so the
// transport redelivers it.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			for _, err := range errs {
				if err.Err == context.Canceled {
					return nil
				}
				c.logger.Error("fetch error",
					zap.String("topic", err.Topic),
					zap.Int32("partition", err.Partition),
					zap.Error(err.Err))
			}
			continue
		}

		failed := false
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			if err := c.handle(ctx, handler, record); err != nil {
				failed = true
				c.logger.Error("record processing failed, leaving offsets uncommitted",
					zap.String("topic", record.Topic),
					zap.Int64("offset", record.Offset),
					zap.Error(err))
			}
		})

		if failed {
			continue
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error("failed to commit offsets", zap.Error(err))
		}
	}
}

// handle runs one record under its own consumer span
func (c *Consumer) handle(ctx context.Context, handler Handler, record *kgo.Record) error {
	ctx, span := telemetry.StartSpan(ctx, "kafka.consume "+record.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", record.Topic),
			attribute.Int64("messaging.kafka.offset", record.Offset),
			attribute.Int("messaging.kafka.partition", int(record.Partition)),
		))
	defer span.End()

	if err := handler(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Close leaves the consumer group and closes the client
func (c *Consumer) Close() {
	c.client.Close()
}
