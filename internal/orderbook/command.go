package orderbook

// Command is one inbound instruction for the book
type Command struct {
	Kind      CommandKind
	ID        int64
	Timestamp int64
	Type      OrderType
	Side      Side
	Price     int64
	Quantity  int64
	Venue     *string
}

// order converts the command into the order value the book operates on.
// A cancel only identifies a resting order, so it skips field validation.
func (c Command) order() (*Order, error) {
	if c.Kind == Cancel {
		return cancelKey(c.ID, c.Side, c.Price), nil
	}

	return NewOrder(OrderParams{
		ID:        c.ID,
		Timestamp: c.Timestamp,
		Type:      c.Type,
		Side:      c.Side,
		Price:     c.Price,
		Quantity:  c.Quantity,
		Venue:     c.Venue,
	})
}
