package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// CancellationHandler applies OrderCanceled to the order store. This is the
// compensating action of the workflow; stock already decremented for the
// order is not released here.
type CancellationHandler struct {
	store  Store
	logger *zap.Logger
}

func NewCancellationHandler(store Store, logger *zap.Logger) *CancellationHandler {
	return &CancellationHandler{store: store, logger: logger}
}

func (h *CancellationHandler) Handle(ctx context.Context, e event.OrderCanceled) error {
	o, err := h.store.Get(ctx, e.OrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			h.logger.Warn("dropping cancellation for unknown order",
				zap.String("order_id", e.OrderID))
			return nil
		}
		return fmt.Errorf("failed to load order %s: %w", e.OrderID, err)
	}

	if o.Status.IsTerminal() {
		h.logger.Debug("ignoring cancellation for terminal order",
			zap.String("order_id", e.OrderID),
			zap.String("status", string(o.Status)))
		return nil
	}

	o.Status = StatusCancelled
	o.CancelReason = e.Reason
	o.UpdatedAt = time.Now().UTC()
	if err := h.store.Update(ctx, o); err != nil {
		return fmt.Errorf("failed to update order %s: %w", e.OrderID, err)
	}

	h.logger.Info("order cancelled",
		zap.String("order_id", e.OrderID),
		zap.String("reason", e.Reason))
	return nil
}
