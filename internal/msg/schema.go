package msg

// Record represents a consumed Kafka record
type Record struct {
	Topic     string
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp int64
}

// OrderCmdMsg represents an order command message
type OrderCmdMsg struct {
	EventID      string  `json:"event_id"`
	Command      string  `json:"command"` // "NEW", "AMEND" or "CANCEL"
	OrderID      int64   `json:"order_id"`
	Symbol       string  `json:"symbol"`
	Type         string  `json:"type,omitempty"` // "LIMIT" or "MARKET"; cancels may omit it
	Side         string  `json:"side"`           // "BID" or "ASK"
	Price        string  `json:"price"`          // decimal, a multiple of the tick size
	Qty          int64   `json:"qty,omitempty"`
	Venue        *string `json:"venue,omitempty"`
	TsUnixMillis int64   `json:"ts_unix_millis"`
}

// OrderEventMsg reports the outcome of one command
type OrderEventMsg struct {
	EventID        string `json:"event_id"`
	CommandEventID string `json:"command_event_id"`
	OrderID        int64  `json:"order_id"`
	Command        string `json:"command"`
	Status         string `json:"status"` // "ACCEPTED" or "REJECTED"
	Reason         string `json:"reason"`
	Seq            uint64 `json:"seq"`
	TsUnixMillis   int64  `json:"ts_unix_millis"`
}

// TopOfBookMsg is the best bid and ask after a command.
// BestBid/BestAsk are 0 when the matching Has flag is false.
type TopOfBookMsg struct {
	EventID      string `json:"event_id"`
	Symbol       string `json:"symbol"`
	Seq          uint64 `json:"seq"`
	BestBid      int64  `json:"best_bid"`
	HasBid       bool   `json:"has_bid"`
	BestAsk      int64  `json:"best_ask"`
	HasAsk       bool   `json:"has_ask"`
	Orders       int    `json:"orders"`
	TsUnixMillis int64  `json:"ts_unix_millis"`
}
