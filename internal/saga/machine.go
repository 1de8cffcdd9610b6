package saga

import (
	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

// ReasonCustomerCheckFailed is the cancellation reason recorded when the
// customer validation service rejects the customer.
const ReasonCustomerCheckFailed = "Checking customer failed."

// Decision is the outcome of applying one event to an instance: the state to
// move to and, for every legal transition, exactly one outbound message.
type Decision struct {
	Next     State
	Outbound event.Message
}

// Decide is the pure transition function. It never mutates the instance.
// The second return value is false when the event is not legal for the
// instance's current state; the caller must treat that as an idempotent
// no-op, because the transport may redeliver or reorder.
func Decide(inst *Instance, msg event.Message) (Decision, bool) {
	switch inst.State {
	case StateInitial:
		if _, ok := msg.(event.OrderMade); ok {
			return Decision{
				Next: StateCheckingCustomer,
				Outbound: event.CheckCustomer{
					OrderID:    inst.OrderID,
					CustomerID: inst.CustomerID,
				},
			}, true
		}

	case StateCheckingCustomer:
		switch msg.(type) {
		case event.CustomerChecked:
			return Decision{
				Next: StateReservingProducts,
				Outbound: event.ReserveProducts{
					OrderID: inst.OrderID,
					Items:   inst.Items,
				},
			}, true
		case event.CustomerCheckFailed:
			return Decision{
				Next: StateFinal,
				Outbound: event.OrderCanceled{
					OrderID: inst.OrderID,
					Reason:  ReasonCustomerCheckFailed,
				},
			}, true
		}

	case StateReservingProducts:
		switch m := msg.(type) {
		case event.ProductsReserved:
			return Decision{
				Next: StateFinal,
				Outbound: event.OrderApproved{
					OrderID: inst.OrderID,
					Items:   m.Items,
				},
			}, true
		case event.ProductsReservationFailed:
			return Decision{
				Next: StateFinal,
				Outbound: event.OrderCanceled{
					OrderID: inst.OrderID,
					Reason:  m.Reason,
				},
			}, true
		}

	case StateFinal:
		// Terminal. Late deliveries resolve here as no-ops.
	}

	return Decision{}, false
}
