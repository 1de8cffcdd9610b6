package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// ApprovalHandler applies OrderApproved to the order store. The whole
// handler is an idempotent upsert: replaying the same approval rewrites the
// same shadow records and line items and leaves the order in the same
// status.
type ApprovalHandler struct {
	store  Store
	logger *zap.Logger
}

func NewApprovalHandler(store Store, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{store: store, logger: logger}
}

func (h *ApprovalHandler) Handle(ctx context.Context, e event.OrderApproved) error {
	o, err := h.store.Get(ctx, e.OrderID)
	switch {
	case err == nil:
	case errors.Is(err, ErrOrderNotFound):
		// Approval outlived the placement record. Recreate the order from
		// the approved snapshot rather than dropping the event.
		h.logger.Warn("approving order with no placement record",
			zap.String("order_id", e.OrderID))
		now := time.Now().UTC()
		o = &Order{ID: e.OrderID, Status: StatusNotStarted, CreatedAt: now, UpdatedAt: now}
		if err := h.store.Create(ctx, o); err != nil && !errors.Is(err, ErrOrderExists) {
			return fmt.Errorf("failed to create order %s: %w", e.OrderID, err)
		}
	default:
		return fmt.Errorf("failed to load order %s: %w", e.OrderID, err)
	}

	if o.Status.IsTerminal() {
		h.logger.Warn("ignoring approval for terminal order",
			zap.String("order_id", e.OrderID),
			zap.String("status", string(o.Status)))
		return nil
	}

	shadows := make([]ProductShadow, 0, len(e.Items))
	items := make([]LineItem, 0, len(e.Items))
	for _, item := range e.Items {
		shadows = append(shadows, ProductShadow{
			ProductID:   item.ProductID,
			Title:       item.Title,
			Description: item.Description,
		})
		items = append(items, LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if err := h.store.UpsertProducts(ctx, shadows); err != nil {
		return fmt.Errorf("failed to upsert product shadows for order %s: %w", e.OrderID, err)
	}

	o.Items = items
	o.Status = StatusInProgress
	o.UpdatedAt = time.Now().UTC()
	if err := h.store.Update(ctx, o); err != nil {
		return fmt.Errorf("failed to update order %s: %w", e.OrderID, err)
	}

	h.logger.Info("order approved",
		zap.String("order_id", e.OrderID),
		zap.Int("line_items", len(items)))
	return nil
}
