package saga

import (
	"context"
	"fmt"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// Recorder persists a saga transition together with its outbound message.
// Implementations that share a database with the outbox commit both in a
// single transaction; the rest stage the message first and rely on
// redelivery plus idempotent consumers to absorb the duplicate a crash
// between the two writes can cause.
type Recorder interface {
	// Start persists a fresh instance and its first outbound message.
	// Returns ErrInstanceExists when a concurrent delivery won the race.
	Start(ctx context.Context, inst *Instance, outbound event.Message) error
	// Advance persists a transition of an existing instance and its
	// outbound message. Returns ErrInstanceNotFound when the instance is
	// gone.
	Advance(ctx context.Context, inst *Instance, outbound event.Message) error
}

// PublishRecorder is the Recorder for stores that cannot share a transaction
// with the message sink. The outbound message goes out before the instance
// is persisted: if the persist fails, redelivery re-publishes a duplicate,
// which every consumer tolerates. The reverse order could persist a state
// whose message was never sent, which would stall the workflow permanently.
type PublishRecorder struct {
	store     Store
	publisher Publisher
}

func NewPublishRecorder(store Store, publisher Publisher) *PublishRecorder {
	return &PublishRecorder{store: store, publisher: publisher}
}

func (r *PublishRecorder) Start(ctx context.Context, inst *Instance, outbound event.Message) error {
	if err := r.publisher.Publish(ctx, outbound); err != nil {
		return fmt.Errorf("failed to publish %s for order %s: %w",
			outbound.EventType(), inst.OrderID, err)
	}
	return r.store.Save(ctx, inst)
}

func (r *PublishRecorder) Advance(ctx context.Context, inst *Instance, outbound event.Message) error {
	if err := r.publisher.Publish(ctx, outbound); err != nil {
		return fmt.Errorf("failed to publish %s for order %s: %w",
			outbound.EventType(), inst.OrderID, err)
	}
	return r.store.Update(ctx, inst)
}
