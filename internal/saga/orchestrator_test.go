package saga

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

type capturePublisher struct {
	published []event.Message
	err       error
}

func (p *capturePublisher) Publish(ctx context.Context, msg event.Message) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func newTestOrchestrator() (*Orchestrator, *MemoryStore, *capturePublisher) {
	store := NewMemoryStore()
	pub := &capturePublisher{}
	return NewOrchestrator(store, NewPublishRecorder(store, pub), zap.NewNop()), store, pub
}

func orderMade(orderID string) event.OrderMade {
	return event.OrderMade{
		OrderID:    orderID,
		CustomerID: "customer-1",
		Items:      []event.OrderItem{{ProductID: "p1", Quantity: 2}},
	}
}

func TestHandleOrderMadeStartsInstance(t *testing.T) {
	orch, store, pub := newTestOrchestrator()
	ctx := context.Background()

	if err := orch.Handle(ctx, orderMade("order-1")); err != nil {
		t.Fatalf("Handle(OrderMade) error: %v", err)
	}

	inst, err := store.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("instance not saved: %v", err)
	}
	if inst.State != StateCheckingCustomer {
		t.Errorf("state = %s, want %s", inst.State, StateCheckingCustomer)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	if _, ok := pub.published[0].(event.CheckCustomer); !ok {
		t.Errorf("published %T, want CheckCustomer", pub.published[0])
	}
}

func TestHandleFullHappyPath(t *testing.T) {
	orch, store, pub := newTestOrchestrator()
	ctx := context.Background()

	steps := []event.Message{
		orderMade("order-1"),
		event.CustomerChecked{OrderID: "order-1"},
		event.ProductsReserved{OrderID: "order-1", Items: []event.ReservedItem{
			{ProductID: "p1", Title: "Widget", Quantity: 2, UnitPrice: 5},
		}},
	}
	for _, msg := range steps {
		if err := orch.Handle(ctx, msg); err != nil {
			t.Fatalf("Handle(%T) error: %v", msg, err)
		}
	}

	inst, _ := store.Get(ctx, "order-1")
	if inst.State != StateFinal {
		t.Errorf("state = %s, want Final", inst.State)
	}
	if len(pub.published) != 3 {
		t.Fatalf("published %d messages, want 3", len(pub.published))
	}
	if _, ok := pub.published[2].(event.OrderApproved); !ok {
		t.Errorf("final message = %T, want OrderApproved", pub.published[2])
	}
}

func TestHandleUnknownCorrelationIDIsDropped(t *testing.T) {
	orch, _, pub := newTestOrchestrator()

	err := orch.Handle(context.Background(), event.CustomerChecked{OrderID: "no-such-order"})
	if err != nil {
		t.Fatalf("unknown correlation id should settle, got error: %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published %d messages for unknown instance, want 0", len(pub.published))
	}
}

func TestHandleDuplicateOrderMadeIsNoOp(t *testing.T) {
	orch, _, pub := newTestOrchestrator()
	ctx := context.Background()

	if err := orch.Handle(ctx, orderMade("order-1")); err != nil {
		t.Fatalf("first OrderMade: %v", err)
	}
	if err := orch.Handle(ctx, orderMade("order-1")); err != nil {
		t.Fatalf("duplicate OrderMade: %v", err)
	}
	if len(pub.published) != 1 {
		t.Errorf("published %d messages after duplicate, want 1", len(pub.published))
	}
}

func TestHandleReplayedEventProducesNoSecondEmission(t *testing.T) {
	orch, store, pub := newTestOrchestrator()
	ctx := context.Background()

	if err := orch.Handle(ctx, orderMade("order-1")); err != nil {
		t.Fatal(err)
	}
	checked := event.CustomerChecked{OrderID: "order-1"}
	if err := orch.Handle(ctx, checked); err != nil {
		t.Fatal(err)
	}
	if err := orch.Handle(ctx, checked); err != nil {
		t.Fatalf("replayed CustomerChecked should settle, got: %v", err)
	}

	if len(pub.published) != 2 {
		t.Errorf("published %d messages, want 2 (no re-emission on replay)", len(pub.published))
	}
	inst, _ := store.Get(ctx, "order-1")
	if inst.State != StateReservingProducts {
		t.Errorf("state = %s, want ReservingProducts", inst.State)
	}
}

func TestHandlePublishFailureDoesNotAdvanceState(t *testing.T) {
	orch, store, pub := newTestOrchestrator()
	ctx := context.Background()

	if err := orch.Handle(ctx, orderMade("order-1")); err != nil {
		t.Fatal(err)
	}

	pub.err = errors.New("broker unavailable")
	err := orch.Handle(ctx, event.CustomerChecked{OrderID: "order-1"})
	if err == nil {
		t.Fatal("expected error when publish fails")
	}

	inst, _ := store.Get(ctx, "order-1")
	if inst.State != StateCheckingCustomer {
		t.Errorf("state advanced to %s despite publish failure", inst.State)
	}

	// The redelivery succeeds once the broker is back.
	pub.err = nil
	if err := orch.Handle(ctx, event.CustomerChecked{OrderID: "order-1"}); err != nil {
		t.Fatalf("redelivery after recovery: %v", err)
	}
	inst, _ = store.Get(ctx, "order-1")
	if inst.State != StateReservingProducts {
		t.Errorf("state = %s after redelivery, want ReservingProducts", inst.State)
	}
}

func TestHandleLateEventAfterFinalIsNoOp(t *testing.T) {
	orch, store, pub := newTestOrchestrator()
	ctx := context.Background()

	for _, msg := range []event.Message{
		orderMade("order-1"),
		event.CustomerCheckFailed{OrderID: "order-1"},
	} {
		if err := orch.Handle(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	if err := orch.Handle(ctx, event.ProductsReserved{OrderID: "order-1"}); err != nil {
		t.Fatalf("late event should settle, got: %v", err)
	}

	inst, _ := store.Get(ctx, "order-1")
	if inst.State != StateFinal {
		t.Errorf("state = %s, want Final", inst.State)
	}
	if len(pub.published) != 2 {
		t.Errorf("published %d messages, want 2 (no approval after cancel)", len(pub.published))
	}
}
