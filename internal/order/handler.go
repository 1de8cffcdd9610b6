package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// EventHandler routes consumed records to the order handlers. OrderMade
// seeds the order row; OrderApproved and OrderCanceled resolve it.
type EventHandler struct {
	store        Store
	approval     *ApprovalHandler
	cancellation *CancellationHandler
	logger       *zap.Logger
}

func NewEventHandler(store Store, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		store:        store,
		approval:     NewApprovalHandler(store, logger),
		cancellation: NewCancellationHandler(store, logger),
		logger:       logger,
	}
}

// HandleRecord decodes one record and dispatches on event type. Malformed
// records are logged and dropped; infrastructure errors propagate so the
// offset stays uncommitted.
func (h *EventHandler) HandleRecord(ctx context.Context, record *kgo.Record) error {
	envelope, err := event.DecodeEnvelope(record.Value)
	if err != nil {
		h.logger.Warn("dropping undecodable record",
			zap.String("topic", record.Topic),
			zap.Int64("offset", record.Offset),
			zap.Error(err))
		return nil
	}

	msg, err := envelope.Open()
	if err != nil {
		h.logger.Warn("dropping unparseable event",
			zap.String("message_id", envelope.MessageID),
			zap.String("type", string(envelope.Type)),
			zap.Error(err))
		return nil
	}

	switch e := msg.(type) {
	case event.OrderMade:
		return h.handleOrderMade(ctx, e)
	case event.OrderApproved:
		return h.approval.Handle(ctx, e)
	case event.OrderCanceled:
		return h.cancellation.Handle(ctx, e)
	default:
		h.logger.Debug("ignoring event of unexpected type",
			zap.String("type", string(envelope.Type)))
		return nil
	}
}

func (h *EventHandler) handleOrderMade(ctx context.Context, e event.OrderMade) error {
	err := h.store.Create(ctx, New(e))
	if err != nil {
		if errors.Is(err, ErrOrderExists) {
			h.logger.Debug("order already recorded",
				zap.String("order_id", e.OrderID))
			return nil
		}
		return fmt.Errorf("failed to record order %s: %w", e.OrderID, err)
	}
	h.logger.Info("order recorded",
		zap.String("order_id", e.OrderID),
		zap.String("customer_id", e.CustomerID))
	return nil
}
