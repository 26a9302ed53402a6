package msg

// Topic names
const (
	TopicOrdersCommands = "orders.commands"
	TopicOrdersEvents   = "orders.events"
	TopicBookTop        = "book.top"
)

// Order event statuses
const (
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
)
