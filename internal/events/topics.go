package events

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicStockMovement      = "stock.movement.applied"
)

// PartitionKey keeps all events for one entity on one partition so their
// order is preserved.
func PartitionKey(id string) []byte { return []byte(id) }
