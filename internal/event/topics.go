package event

// Kafka topic names, one topic per message type. Partitioning is by order id
// so every delivery for one workflow lands on the same partition.
const (
	TopicOrderMade                 = "saga.order.made.event"
	TopicCheckCustomer             = "saga.customer.check.command"
	TopicCustomerChecked           = "saga.customer.checked.event"
	TopicCustomerCheckFailed       = "saga.customer.check-failed.event"
	TopicReserveProducts           = "saga.products.reserve.command"
	TopicProductsReserved          = "saga.products.reserved.event"
	TopicProductsReservationFailed = "saga.products.reservation-failed.event"
	TopicOrderApproved             = "saga.order.approved.event"
	TopicOrderCanceled             = "saga.order.canceled.event"
)

// TopicFor maps a message type to its topic. Empty for unknown types.
func TopicFor(t Type) string {
	switch t {
	case TypeOrderMade:
		return TopicOrderMade
	case TypeCheckCustomer:
		return TopicCheckCustomer
	case TypeCustomerChecked:
		return TopicCustomerChecked
	case TypeCustomerCheckFailed:
		return TopicCustomerCheckFailed
	case TypeReserveProducts:
		return TopicReserveProducts
	case TypeProductsReserved:
		return TopicProductsReserved
	case TypeProductsReservationFailed:
		return TopicProductsReservationFailed
	case TypeOrderApproved:
		return TopicOrderApproved
	case TypeOrderCanceled:
		return TopicOrderCanceled
	default:
		return ""
	}
}

// OrchestratorTopics are the topics the saga orchestrator consumes.
func OrchestratorTopics() []string {
	return []string{
		TopicOrderMade,
		TopicCustomerChecked,
		TopicCustomerCheckFailed,
		TopicProductsReserved,
		TopicProductsReservationFailed,
	}
}

// ReservationTopics are the topics the product reservation worker consumes.
func ReservationTopics() []string {
	return []string{TopicReserveProducts}
}

// OrderTopics are the topics the order worker consumes: the placement event
// that seeds the order record plus the two terminal resolutions.
func OrderTopics() []string {
	return []string{TopicOrderMade, TopicOrderApproved, TopicOrderCanceled}
}
