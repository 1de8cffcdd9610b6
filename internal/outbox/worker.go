package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Producer publishes raw payloads to a topic.
type Producer interface {
	Produce(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// WorkerConfig contains configuration for the outbox worker
type WorkerConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	RetryInterval    time.Duration
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
}

// DefaultWorkerConfig returns default configuration
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		PollInterval:     100 * time.Millisecond,
		BatchSize:        100,
		RetryInterval:    5 * time.Second,
		CleanupInterval:  1 * time.Hour,
		CleanupRetention: 7 * 24 * time.Hour,
	}
}

// Worker polls the outbox table and publishes messages to the bus
type Worker struct {
	repo     Repository
	producer Producer
	config   *WorkerConfig
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

func NewWorker(repo Repository, producer Producer, config *WorkerConfig, logger *zap.Logger) *Worker {
	if config == nil {
		config = DefaultWorkerConfig()
	}
	return &Worker{
		repo:     repo,
		producer: producer,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the polling goroutines
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("starting outbox worker",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	w.wg.Add(3)
	go w.loop(ctx, w.config.PollInterval, w.processPending)
	go w.loop(ctx, w.config.RetryInterval, w.processRetryable)
	go w.loop(ctx, w.config.CleanupInterval, w.cleanup)
	return nil
}

// Stop stops the worker and waits for in-flight batches
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("outbox worker stopped")
}

func (w *Worker) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (w *Worker) processPending(ctx context.Context) {
	messages, err := w.repo.GetPending(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to fetch pending messages", zap.Error(err))
		return
	}
	w.publishBatch(ctx, messages)
}

func (w *Worker) processRetryable(ctx context.Context) {
	messages, err := w.repo.GetRetryable(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to fetch retryable messages", zap.Error(err))
		return
	}
	w.publishBatch(ctx, messages)
}

func (w *Worker) publishBatch(ctx context.Context, messages []*Message) {
	for _, msg := range messages {
		if err := w.publish(ctx, msg); err != nil {
			w.logger.Error("failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("order_id", msg.OrderID),
				zap.Int("attempt", msg.RetryCount+1),
				zap.Int("max_retries", msg.MaxRetries),
				zap.Error(err))
			if markErr := w.repo.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				w.logger.Error("failed to mark message failed",
					zap.String("message_id", msg.ID), zap.Error(markErr))
			}
			continue
		}
		if markErr := w.repo.MarkPublished(ctx, msg.ID); markErr != nil {
			w.logger.Error("failed to mark message published",
				zap.String("message_id", msg.ID), zap.Error(markErr))
		}
	}
}

func (w *Worker) publish(ctx context.Context, msg *Message) error {
	headers := map[string]string{
		"message_id": msg.ID,
		"order_id":   msg.OrderID,
		"type":       string(msg.EventType),
		"source":     "outbox-worker",
	}
	return w.producer.Produce(ctx, msg.Topic, msg.OrderID, msg.Payload, headers)
}

func (w *Worker) cleanup(ctx context.Context) {
	deleted, err := w.repo.DeletePublished(ctx, w.config.CleanupRetention)
	if err != nil {
		w.logger.Error("failed to clean up published messages", zap.Error(err))
		return
	}
	if deleted > 0 {
		w.logger.Info("cleaned up published messages", zap.Int64("deleted", deleted))
	}
}
