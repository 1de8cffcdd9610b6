package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
	"github.com/TeseySTD/ecommerce-order-saga/internal/saga"
)

type fakeProducer struct {
	produced []string
	err      error
}

func (p *fakeProducer) Produce(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.produced = append(p.produced, topic+"/"+key)
	return nil
}

func stageMessage(t *testing.T, repo Repository) *Message {
	t.Helper()
	msg, err := NewMessage(event.CheckCustomer{OrderID: "order-1", CustomerID: "customer-1"}, 3)
	if err != nil {
		t.Fatalf("NewMessage() error: %v", err)
	}
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return msg
}

func TestDefaultWorkerConfig(t *testing.T) {
	config := DefaultWorkerConfig()

	if config.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v, want %v", config.PollInterval, 100*time.Millisecond)
	}
	if config.BatchSize != 100 {
		t.Errorf("BatchSize = %v, want %v", config.BatchSize, 100)
	}
	if config.RetryInterval != 5*time.Second {
		t.Errorf("RetryInterval = %v, want %v", config.RetryInterval, 5*time.Second)
	}
}

func TestWorkerPublishesPendingMessage(t *testing.T) {
	repo := NewMemoryRepository()
	producer := &fakeProducer{}
	worker := NewWorker(repo, producer, nil, zap.NewNop())

	msg := stageMessage(t, repo)
	worker.processPending(context.Background())

	if len(producer.produced) != 1 {
		t.Fatalf("produced %d records, want 1", len(producer.produced))
	}
	if producer.produced[0] != msg.Topic+"/order-1" {
		t.Errorf("produced %s, want %s/order-1", producer.produced[0], msg.Topic)
	}

	stored, ok := repo.Get(msg.ID)
	if !ok {
		t.Fatal("message vanished from repository")
	}
	if stored.Status != StatusPublished {
		t.Errorf("status = %s, want published", stored.Status)
	}
	if stored.PublishedAt == nil {
		t.Error("PublishedAt not stamped")
	}
}

func TestWorkerMarksFailureAndRetries(t *testing.T) {
	repo := NewMemoryRepository()
	producer := &fakeProducer{err: errors.New("broker down")}
	worker := NewWorker(repo, producer, nil, zap.NewNop())

	msg := stageMessage(t, repo)
	worker.processPending(context.Background())

	stored, _ := repo.Get(msg.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", stored.RetryCount)
	}

	// Broker recovers, the retry pass delivers.
	producer.err = nil
	worker.processRetryable(context.Background())

	stored, _ = repo.Get(msg.ID)
	if stored.Status != StatusPublished {
		t.Errorf("status after retry = %s, want published", stored.Status)
	}
	if len(producer.produced) != 1 {
		t.Errorf("produced %d records, want 1", len(producer.produced))
	}
}

func TestWorkerParksExhaustedMessage(t *testing.T) {
	repo := NewMemoryRepository()
	producer := &fakeProducer{err: errors.New("broker down")}
	worker := NewWorker(repo, producer, nil, zap.NewNop())

	msg, err := NewMessage(event.OrderCanceled{OrderID: "order-1", Reason: "x"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	worker.processPending(context.Background())
	worker.processRetryable(context.Background())

	stored, _ := repo.Get(msg.ID)
	if stored.Status != StatusDeadLetter {
		t.Errorf("status = %s, want dead_letter after exhausting retries", stored.Status)
	}

	// Dead letters are parked, never picked up again.
	worker.processRetryable(context.Background())
	if len(producer.produced) != 0 {
		t.Errorf("produced %d records from a dead letter, want 0", len(producer.produced))
	}
}

func TestPublisherStagesMessage(t *testing.T) {
	repo := NewMemoryRepository()
	publisher := NewPublisher(repo, 5)

	err := publisher.Publish(context.Background(), event.OrderApproved{OrderID: "order-1"})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	pending, err := repo.GetPending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].OrderID != "order-1" {
		t.Errorf("OrderID = %s, want order-1", pending[0].OrderID)
	}
	if pending[0].EventType != event.TypeOrderApproved {
		t.Errorf("EventType = %s, want %s", pending[0].EventType, event.TypeOrderApproved)
	}
}

func TestSagaTransitionStagesOutboundMessage(t *testing.T) {
	repo := NewMemoryRepository()
	store := saga.NewMemoryStore()
	orch := saga.NewOrchestrator(store,
		saga.NewPublishRecorder(store, NewPublisher(repo, 3)), zap.NewNop())

	err := orch.Handle(context.Background(), event.OrderMade{
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Items:      []event.OrderItem{{ProductID: "p1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Handle(OrderMade) error: %v", err)
	}

	// The transition's outbound command sits in the outbox for the worker.
	pending, err := repo.GetPending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].EventType != event.TypeCheckCustomer {
		t.Errorf("EventType = %s, want %s", pending[0].EventType, event.TypeCheckCustomer)
	}
	if pending[0].OrderID != "order-1" {
		t.Errorf("OrderID = %s, want order-1", pending[0].OrderID)
	}
}

func TestMessageLifecycle(t *testing.T) {
	msg, err := NewMessage(event.CheckCustomer{OrderID: "order-1"}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if msg.Status != StatusPending {
		t.Errorf("new message status = %s, want pending", msg.Status)
	}

	msg.MarkFailed("timeout")
	if msg.Status != StatusFailed || msg.RetryCount != 1 {
		t.Errorf("after first failure: status=%s retries=%d", msg.Status, msg.RetryCount)
	}
	if !msg.CanRetry() {
		t.Error("expected message to be retryable after first failure")
	}

	msg.MarkFailed("timeout")
	if msg.Status != StatusDeadLetter {
		t.Errorf("after exhausting retries: status=%s, want dead_letter", msg.Status)
	}
	if msg.CanRetry() {
		t.Error("dead letter must not be retryable")
	}
}
