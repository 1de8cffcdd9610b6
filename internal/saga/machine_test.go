package saga

import (
	"testing"

	"github.com/TeseySTD/ecommerce-order-saga/internal/event"
)

func testInstance(state State) *Instance {
	inst := NewInstance(event.OrderMade{
		OrderID:    "order-1",
		CustomerID: "customer-1",
		Items: []event.OrderItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
	})
	inst.State = state
	return inst
}

func TestDecideInitialOrderMade(t *testing.T) {
	inst := testInstance(StateInitial)

	decision, ok := Decide(inst, event.OrderMade{OrderID: "order-1", CustomerID: "customer-1"})
	if !ok {
		t.Fatal("expected OrderMade to be legal in Initial")
	}
	if decision.Next != StateCheckingCustomer {
		t.Errorf("next state = %s, want %s", decision.Next, StateCheckingCustomer)
	}

	cmd, isCheck := decision.Outbound.(event.CheckCustomer)
	if !isCheck {
		t.Fatalf("outbound = %T, want CheckCustomer", decision.Outbound)
	}
	if cmd.OrderID != "order-1" || cmd.CustomerID != "customer-1" {
		t.Errorf("CheckCustomer = %+v, want order-1/customer-1", cmd)
	}
}

func TestDecideCheckingCustomerChecked(t *testing.T) {
	inst := testInstance(StateCheckingCustomer)

	decision, ok := Decide(inst, event.CustomerChecked{OrderID: "order-1"})
	if !ok {
		t.Fatal("expected CustomerChecked to be legal in CheckingCustomer")
	}
	if decision.Next != StateReservingProducts {
		t.Errorf("next state = %s, want %s", decision.Next, StateReservingProducts)
	}

	cmd, isReserve := decision.Outbound.(event.ReserveProducts)
	if !isReserve {
		t.Fatalf("outbound = %T, want ReserveProducts", decision.Outbound)
	}
	if len(cmd.Items) != 2 {
		t.Errorf("ReserveProducts carries %d items, want 2", len(cmd.Items))
	}
}

func TestDecideCheckingCustomerCheckFailed(t *testing.T) {
	inst := testInstance(StateCheckingCustomer)

	decision, ok := Decide(inst, event.CustomerCheckFailed{OrderID: "order-1"})
	if !ok {
		t.Fatal("expected CustomerCheckFailed to be legal in CheckingCustomer")
	}
	if decision.Next != StateFinal {
		t.Errorf("next state = %s, want %s", decision.Next, StateFinal)
	}

	canceled, isCancel := decision.Outbound.(event.OrderCanceled)
	if !isCancel {
		t.Fatalf("outbound = %T, want OrderCanceled", decision.Outbound)
	}
	if canceled.Reason != "Checking customer failed." {
		t.Errorf("reason = %q, want %q", canceled.Reason, "Checking customer failed.")
	}
}

func TestDecideReservingProductsReserved(t *testing.T) {
	inst := testInstance(StateReservingProducts)

	reserved := event.ProductsReserved{
		OrderID: "order-1",
		Items: []event.ReservedItem{
			{ProductID: "p1", Title: "Widget", Quantity: 2, UnitPrice: 9.99},
		},
	}
	decision, ok := Decide(inst, reserved)
	if !ok {
		t.Fatal("expected ProductsReserved to be legal in ReservingProducts")
	}
	if decision.Next != StateFinal {
		t.Errorf("next state = %s, want %s", decision.Next, StateFinal)
	}

	approved, isApproved := decision.Outbound.(event.OrderApproved)
	if !isApproved {
		t.Fatalf("outbound = %T, want OrderApproved", decision.Outbound)
	}
	if len(approved.Items) != 1 || approved.Items[0].Title != "Widget" {
		t.Errorf("approved items = %+v, want the reservation snapshot", approved.Items)
	}
}

func TestDecideReservingProductsReservationFailed(t *testing.T) {
	inst := testInstance(StateReservingProducts)

	decision, ok := Decide(inst, event.ProductsReservationFailed{
		OrderID: "order-1",
		Reason:  "Insufficient quantity for product p1",
	})
	if !ok {
		t.Fatal("expected ProductsReservationFailed to be legal in ReservingProducts")
	}
	if decision.Next != StateFinal {
		t.Errorf("next state = %s, want %s", decision.Next, StateFinal)
	}

	canceled, isCancel := decision.Outbound.(event.OrderCanceled)
	if !isCancel {
		t.Fatalf("outbound = %T, want OrderCanceled", decision.Outbound)
	}
	if canceled.Reason != "Insufficient quantity for product p1" {
		t.Errorf("reason = %q, want the reservation failure reason", canceled.Reason)
	}
}

func TestDecideIllegalPairsAreNoOps(t *testing.T) {
	cases := []struct {
		name  string
		state State
		msg   event.Message
	}{
		{"reserved before check", StateInitial, event.ProductsReserved{OrderID: "order-1"}},
		{"checked in initial", StateInitial, event.CustomerChecked{OrderID: "order-1"}},
		{"reserved while checking", StateCheckingCustomer, event.ProductsReserved{OrderID: "order-1"}},
		{"checked twice", StateReservingProducts, event.CustomerChecked{OrderID: "order-1"}},
		{"check failed after reserve", StateReservingProducts, event.CustomerCheckFailed{OrderID: "order-1"}},
		{"late reserved in final", StateFinal, event.ProductsReserved{OrderID: "order-1"}},
		{"late failure in final", StateFinal, event.ProductsReservationFailed{OrderID: "order-1", Reason: "late"}},
		{"order made in final", StateFinal, event.OrderMade{OrderID: "order-1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inst := testInstance(tc.state)
			if _, ok := Decide(inst, tc.msg); ok {
				t.Errorf("Decide(%s, %T) legal, want no-op", tc.state, tc.msg)
			}
			if inst.State != tc.state {
				t.Errorf("instance state mutated to %s", inst.State)
			}
		})
	}
}

// A failed customer check finalizes the workflow, so a reservation reply
// that arrives afterwards changes nothing.
func TestLateReservationAfterCancelIsIgnored(t *testing.T) {
	inst := testInstance(StateCheckingCustomer)

	decision, ok := Decide(inst, event.CustomerCheckFailed{OrderID: "order-1"})
	if !ok {
		t.Fatal("expected CustomerCheckFailed to be legal")
	}
	inst.advance(decision.Next)

	if _, ok := Decide(inst, event.ProductsReserved{OrderID: "order-1"}); ok {
		t.Error("late ProductsReserved was legal after cancellation")
	}
	if inst.State != StateFinal {
		t.Errorf("state = %s, want Final", inst.State)
	}
	if inst.FinalizedAt == nil {
		t.Error("FinalizedAt not stamped on terminal transition")
	}
}

// Every run emits exactly one terminal event: either the approval or the
// cancellation, never both.
func TestExactlyOneTerminalEmission(t *testing.T) {
	terminalCount := func(msgs []event.Message) int {
		n := 0
		for _, m := range msgs {
			switch m.(type) {
			case event.OrderApproved, event.OrderCanceled:
				n++
			}
		}
		return n
	}

	runs := []struct {
		name string
		msgs []event.Message
	}{
		{"happy path", []event.Message{
			event.OrderMade{OrderID: "order-1"},
			event.CustomerChecked{OrderID: "order-1"},
			event.ProductsReserved{OrderID: "order-1"},
		}},
		{"customer rejected", []event.Message{
			event.OrderMade{OrderID: "order-1"},
			event.CustomerCheckFailed{OrderID: "order-1"},
		}},
		{"reservation rejected with replay", []event.Message{
			event.OrderMade{OrderID: "order-1"},
			event.CustomerChecked{OrderID: "order-1"},
			event.ProductsReservationFailed{OrderID: "order-1", Reason: "short"},
			event.ProductsReservationFailed{OrderID: "order-1", Reason: "short"},
			event.ProductsReserved{OrderID: "order-1"},
		}},
	}

	for _, run := range runs {
		t.Run(run.name, func(t *testing.T) {
			inst := testInstance(StateInitial)
			var emitted []event.Message
			for _, msg := range run.msgs {
				if decision, ok := Decide(inst, msg); ok {
					emitted = append(emitted, decision.Outbound)
					inst.advance(decision.Next)
				}
			}
			if got := terminalCount(emitted); got != 1 {
				t.Errorf("terminal emissions = %d, want exactly 1", got)
			}
		})
	}
}
