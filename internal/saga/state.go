// Package saga implements the order-fulfillment workflow: a per-order state
// machine driven by bus events, correlated by order id.
//
// The transition table is closed and forward-only. Any delivery that is not
// legal for the instance's current state is consumed as a no-op, which is
// what makes at-least-once redelivery safe: no state is ever re-entered or
// regressed.
package saga

import (
	"time"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// State is the saga instance state. Progression is strictly
// Initial → CheckingCustomer → ReservingProducts → Final, with the two
// failure edges short-circuiting to Final.
type State string

const (
	StateInitial           State = "Initial"
	StateCheckingCustomer  State = "CheckingCustomer"
	StateReservingProducts State = "ReservingProducts"
	StateFinal             State = "Final"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsFinal reports whether the state is terminal.
func (s State) IsFinal() bool {
	return s == StateFinal
}

// Instance is one order workflow attempt. OrderID is the correlation id;
// CustomerID and Items are immutable after creation. Only State (and the
// timestamps) ever change.
type Instance struct {
	OrderID     string            `json:"order_id"`
	CustomerID  string            `json:"customer_id"`
	Items       []event.OrderItem `json:"items"`
	State       State             `json:"state"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	FinalizedAt *time.Time        `json:"finalized_at,omitempty"`
}

// NewInstance creates an instance in the Initial state from the event that
// starts the workflow.
func NewInstance(made event.OrderMade) *Instance {
	now := time.Now().UTC()
	return &Instance{
		OrderID:    made.OrderID,
		CustomerID: made.CustomerID,
		Items:      made.Items,
		State:      StateInitial,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// advance moves the instance to the next state, stamping FinalizedAt when
// the workflow terminates.
func (i *Instance) advance(next State) {
	now := time.Now().UTC()
	i.State = next
	i.UpdatedAt = now
	if next.IsFinal() {
		i.FinalizedAt = &now
	}
}
