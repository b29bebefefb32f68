package orders

const (
	TopicTransactionCreated       = "transaction.created"
	TopicTransactionStatusChanged = "transaction.status_changed"
	TopicHandoffOrderCreated      = "order.handoff.created"
	TopicHandoffOrderUpdated      = "order.handoff.updated"
)

// Partition key = reference id (or order id), so every event of one
// transaction stays in order.
func PartitionKey(id string) []byte { return []byte(id) }
