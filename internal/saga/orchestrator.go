package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// Publisher puts one outbound saga message on the bus. Implementations are
// the Kafka event publisher and the transactional outbox.
type Publisher interface {
	Publish(ctx context.Context, msg event.Message) error
}

// Orchestrator consumes workflow events and drives saga instances through
// the transition table. It has no other surface: one event in, at most one
// message out, one state transition persisted.
//
// It never touches the stock ledger or the order store directly; those side
// effects live in the downstream handlers that consume its messages.
type Orchestrator struct {
	store    Store
	recorder Recorder
	logger   *zap.Logger
}

// NewOrchestrator creates a saga orchestrator
func NewOrchestrator(store Store, recorder Recorder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

// Handle applies one consumed event to its saga instance. A nil return means
// the delivery is settled (including idempotent no-ops and unknown
// correlation ids); a non-nil return means an infrastructure failure and the
// transport must redeliver. The Recorder decides how the transition and its
// outbound message are made durable together.
func (o *Orchestrator) Handle(ctx context.Context, msg event.Message) error {
	if made, ok := msg.(event.OrderMade); ok {
		return o.handleOrderMade(ctx, made)
	}

	inst, err := o.store.Get(ctx, msg.CorrelationID())
	if err != nil {
		if errors.Is(err, ErrInstanceNotFound) {
			// Delivery for a workflow this node never started or that was
			// archived. Dropped, not retried.
			o.logger.Warn("dropping event for unknown saga instance",
				zap.String("order_id", msg.CorrelationID()),
				zap.String("type", msg.EventType().String()))
			return nil
		}
		return fmt.Errorf("failed to load saga instance %s: %w", msg.CorrelationID(), err)
	}

	decision, ok := Decide(inst, msg)
	if !ok {
		o.logger.Debug("event not legal for current state, ignoring",
			zap.String("order_id", inst.OrderID),
			zap.String("state", inst.State.String()),
			zap.String("type", msg.EventType().String()))
		return nil
	}

	inst.advance(decision.Next)
	if err := o.recorder.Advance(ctx, inst, decision.Outbound); err != nil {
		return fmt.Errorf("failed to record transition for order %s: %w", inst.OrderID, err)
	}

	o.logger.Info("saga advanced",
		zap.String("order_id", inst.OrderID),
		zap.String("state", inst.State.String()),
		zap.String("emitted", decision.Outbound.EventType().String()))

	return nil
}

// handleOrderMade starts a new instance. A duplicate OrderMade for an
// existing instance is an at-least-once artifact and settles as a no-op.
func (o *Orchestrator) handleOrderMade(ctx context.Context, made event.OrderMade) error {
	if _, err := o.store.Get(ctx, made.OrderID); err == nil {
		o.logger.Debug("duplicate OrderMade, ignoring",
			zap.String("order_id", made.OrderID))
		return nil
	} else if !errors.Is(err, ErrInstanceNotFound) {
		return fmt.Errorf("failed to load saga instance %s: %w", made.OrderID, err)
	}

	inst := NewInstance(made)
	decision, ok := Decide(inst, made)
	if !ok {
		// Unreachable: OrderMade is always legal in Initial.
		return fmt.Errorf("OrderMade rejected for fresh instance %s", made.OrderID)
	}

	inst.advance(decision.Next)
	if err := o.recorder.Start(ctx, inst, decision.Outbound); err != nil {
		if errors.Is(err, ErrInstanceExists) {
			// Lost a race against a concurrent duplicate delivery.
			o.logger.Debug("concurrent duplicate OrderMade, ignoring",
				zap.String("order_id", made.OrderID))
			return nil
		}
		return fmt.Errorf("failed to record start of order %s: %w", made.OrderID, err)
	}

	o.logger.Info("saga started",
		zap.String("order_id", inst.OrderID),
		zap.String("customer_id", inst.CustomerID),
		zap.Int("items", len(inst.Items)))

	return nil
}
