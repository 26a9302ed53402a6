package orderbook

import "fmt"

// OrderParams carries every field needed to build an Order
type OrderParams struct {
	ID        int64
	Timestamp int64
	Type      OrderType
	Side      Side
	Price     int64 // ticks
	Quantity  int64
	Venue     *string // nil when the origin is unknown
}

// Order is a resting order. Every field except quantity is fixed at
// construction; quantity only changes through an accepted amend.
type Order struct {
	id        int64
	timestamp int64
	typ       OrderType
	side      Side
	price     int64
	quantity  int64
	venue     *string
}

// NewOrder validates p and returns the order it describes
func NewOrder(p OrderParams) (*Order, error) {
	if p.ID <= 0 {
		return nil, fmt.Errorf("%w: id must be positive, got %d", ErrInvalidOrder, p.ID)
	}
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be greater than 0, id = %d", ErrInvalidOrder, p.ID)
	}
	if p.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative, id = %d", ErrInvalidOrder, p.ID)
	}
	if p.Side != Bid && p.Side != Ask {
		return nil, fmt.Errorf("%w: unknown side %v, id = %d", ErrInvalidOrder, p.Side, p.ID)
	}
	if p.Type != Limit && p.Type != Market {
		return nil, fmt.Errorf("%w: unknown type %v, id = %d", ErrInvalidOrder, p.Type, p.ID)
	}

	return &Order{
		id:        p.ID,
		timestamp: p.Timestamp,
		typ:       p.Type,
		side:      p.Side,
		price:     p.Price,
		quantity:  p.Quantity,
		venue:     copyVenue(p.Venue),
	}, nil
}

// cancelKey builds the minimal order a cancel needs: side, price and id
func cancelKey(id int64, side Side, price int64) *Order {
	return &Order{id: id, side: side, price: price}
}

func (o *Order) ID() int64        { return o.id }
func (o *Order) Timestamp() int64 { return o.timestamp }
func (o *Order) Type() OrderType  { return o.typ }
func (o *Order) Side() Side       { return o.side }
func (o *Order) Price() int64     { return o.price }
func (o *Order) Quantity() int64  { return o.quantity }

// Venue returns the origin tag and whether one was set
func (o *Order) Venue() (string, bool) {
	if o.venue == nil {
		return "", false
	}
	return *o.venue, true
}

// SameIdentity reports whether o and other agree on every field but quantity
func (o *Order) SameIdentity(other *Order) bool {
	if o == other {
		return true
	}
	if o == nil || other == nil {
		return false
	}

	return o.id == other.id &&
		o.timestamp == other.timestamp &&
		o.price == other.price &&
		o.typ == other.typ &&
		o.side == other.side &&
		venueEqual(o.venue, other.venue)
}

// Equal compares every field, quantity included
func (o *Order) Equal(other *Order) bool {
	return o.SameIdentity(other) && o.quantity == other.quantity
}

func (o *Order) String() string {
	venue := "<nil>"
	if o.venue != nil {
		venue = *o.venue
	}
	return fmt.Sprintf("Order{id=%d ts=%d type=%s side=%s price=%d qty=%d venue=%s}",
		o.id, o.timestamp, o.typ, o.side, o.price, o.quantity, venue)
}

// applyQuantity is the only mutation an order accepts
func (o *Order) applyQuantity(qty int64) {
	o.quantity = qty
}

func venueEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyVenue(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
