// Package order maintains the ordering service's view of an order as the
// workflow resolves it: approval fills in line items from the reservation
// snapshot, cancellation records the reason. Terminal statuses never regress.
package order

import (
	"time"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// Status is the lifecycle status of an order.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
)

// IsTerminal reports whether the status can never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// LineItem is one priced line of an order, captured from the reservation
// snapshot at approval time.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// ProductShadow is the ordering service's local copy of product data, so
// orders can be rendered without a live call into the inventory service.
type ProductShadow struct {
	ProductID   string `json:"product_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Order is the aggregate tracked by the ordering service.
type Order struct {
	ID           string     `json:"id"`
	CustomerID   string     `json:"customer_id"`
	Status       Status     `json:"status"`
	Items        []LineItem `json:"items"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// New creates an order in its initial status from the placement event.
func New(e event.OrderMade) *Order {
	now := time.Now().UTC()
	items := make([]LineItem, 0, len(e.Items))
	for _, item := range e.Items {
		items = append(items, LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return &Order{
		ID:         e.OrderID,
		CustomerID: e.CustomerID,
		Status:     StatusNotStarted,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
