// Package event defines the message contracts exchanged between the saga
// orchestrator, the product reservation service and the order handlers.
//
// All payloads are immutable value types on the bus. Routing relies on the
// order id carried by every message: it is the correlation id that ties a
// delivery to a single saga instance.
package event

// Type identifies a message contract on the bus.
type Type string

const (
	TypeOrderMade                 Type = "order.made"
	TypeCheckCustomer             Type = "customer.check"
	TypeCustomerChecked           Type = "customer.checked"
	TypeCustomerCheckFailed       Type = "customer.check-failed"
	TypeReserveProducts           Type = "products.reserve"
	TypeProductsReserved          Type = "products.reserved"
	TypeProductsReservationFailed Type = "products.reservation-failed"
	TypeOrderApproved             Type = "order.approved"
	TypeOrderCanceled             Type = "order.canceled"
)

// String returns the string representation of the message type.
func (t Type) String() string {
	return string(t)
}

// Message is implemented by every payload that travels on the bus.
// CorrelationID is always the order id.
type Message interface {
	EventType() Type
	CorrelationID() string
}

// OrderItem is a requested (product, quantity) pair. Quantity is always > 0;
// order creation validates that before the saga ever sees the order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ReservedItem is a line-item snapshot captured at stock-decrement time, so
// the order service can render line items without a live cross-service call.
type ReservedItem struct {
	ProductID   string  `json:"product_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// OrderMade starts a saga instance. Published by the ordering service when an
// order-creation request is accepted.
type OrderMade struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Items      []OrderItem `json:"items"`
}

func (e OrderMade) EventType() Type       { return TypeOrderMade }
func (e OrderMade) CorrelationID() string { return e.OrderID }

// CheckCustomer asks the customer validation service to vet the customer.
type CheckCustomer struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
}

func (e CheckCustomer) EventType() Type       { return TypeCheckCustomer }
func (e CheckCustomer) CorrelationID() string { return e.OrderID }

// CustomerChecked reports a passed customer validation.
type CustomerChecked struct {
	OrderID string `json:"order_id"`
}

func (e CustomerChecked) EventType() Type       { return TypeCustomerChecked }
func (e CustomerChecked) CorrelationID() string { return e.OrderID }

// CustomerCheckFailed reports a failed customer validation.
type CustomerCheckFailed struct {
	OrderID string `json:"order_id"`
}

func (e CustomerCheckFailed) EventType() Type       { return TypeCustomerCheckFailed }
func (e CustomerCheckFailed) CorrelationID() string { return e.OrderID }

// ReserveProducts asks the product reservation service to atomically check
// and decrement stock for every requested line.
type ReserveProducts struct {
	OrderID string      `json:"order_id"`
	Items   []OrderItem `json:"items"`
}

func (e ReserveProducts) EventType() Type       { return TypeReserveProducts }
func (e ReserveProducts) CorrelationID() string { return e.OrderID }

// ProductsReserved reports a successful all-or-nothing reservation together
// with the line-item snapshots.
type ProductsReserved struct {
	OrderID string         `json:"order_id"`
	Items   []ReservedItem `json:"items"`
}

func (e ProductsReserved) EventType() Type       { return TypeProductsReserved }
func (e ProductsReserved) CorrelationID() string { return e.OrderID }

// ProductsReservationFailed reports a rejected reservation. Reason is
// human-readable and ends up on the cancelled order.
type ProductsReservationFailed struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (e ProductsReservationFailed) EventType() Type       { return TypeProductsReservationFailed }
func (e ProductsReservationFailed) CorrelationID() string { return e.OrderID }

// OrderApproved tells the order service to materialize the approved line
// items and move the order to InProgress.
type OrderApproved struct {
	OrderID string         `json:"order_id"`
	Items   []ReservedItem `json:"items"`
}

func (e OrderApproved) EventType() Type       { return TypeOrderApproved }
func (e OrderApproved) CorrelationID() string { return e.OrderID }

// OrderCanceled tells the order service to cancel the order. It is the
// compensating action for every failure path in the workflow.
type OrderCanceled struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (e OrderCanceled) EventType() Type       { return TypeOrderCanceled }
func (e OrderCanceled) CorrelationID() string { return e.OrderID }
