// Package orderbook holds the resting-order state of a single instrument:
// bids and asks as price-ordered levels, each a FIFO queue of orders.
//
// An OrderBook is not safe for concurrent use. Callers serialize access,
// typically by routing every command for a symbol through one goroutine.
package orderbook

import "fmt"

// location records where an id is resting
type location struct {
	side  Side
	price int64
}

// OrderBook owns both sides of one instrument's book
type OrderBook struct {
	symbol string
	bids   *BookSide
	asks   *BookSide

	// id -> location; an id rests in at most one level across both sides
	index map[int64]location
}

// NewOrderBook creates an empty book for symbol
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newBookSide(Bid),
		asks:   newBookSide(Ask),
		index:  make(map[int64]location),
	}
}

// Symbol returns the instrument this book belongs to
func (b *OrderBook) Symbol() string {
	return b.symbol
}

// Bids returns the bid side, highest price first
func (b *OrderBook) Bids() *BookSide {
	return b.bids
}

// Asks returns the ask side, lowest price first
func (b *OrderBook) Asks() *BookSide {
	return b.asks
}

// OrderCount returns the number of resting orders on both sides
func (b *OrderBook) OrderCount() int {
	return len(b.index)
}

// Process dispatches cmd to AddOrder, ModifyOrder or DeleteOrder
func (b *OrderBook) Process(cmd Command) error {
	switch cmd.Kind {
	case New, Amend, Cancel:
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedCommand, cmd.Kind)
	}

	order, err := cmd.order()
	if err != nil {
		return err
	}

	switch cmd.Kind {
	case New:
		return b.AddOrder(order)
	case Amend:
		return b.ModifyOrder(order)
	default:
		b.DeleteOrder(order)
		return nil
	}
}

// AddOrder rests order at the tail of its price level, creating the level
// if needed. An id that is already resting anywhere in the book is rejected.
func (b *OrderBook) AddOrder(order *Order) error {
	if loc, exists := b.index[order.id]; exists {
		return fmt.Errorf("%w: id = %d already rests on %s at price = %d",
			ErrDuplicateOrderID, order.id, loc.side, loc.price)
	}

	bookSide, ok := b.side(order.side)
	if !ok {
		return fmt.Errorf("%w: unknown side %v, id = %d", ErrInvalidOrder, order.side, order.id)
	}
	lvl, _ := bookSide.levelFor(order.price, true)
	lvl.append(order)
	b.index[order.id] = location{side: order.side, price: order.price}
	return nil
}

// ModifyOrder changes the quantity of a resting limit order in place.
// The order keeps its queue position. On error the book is unchanged.
//
// The order is looked up at the incoming side and price. When it is not
// there but the id rests elsewhere in the book, the amend is trying to
// move it, which is reported as an immutable field change.
func (b *OrderBook) ModifyOrder(order *Order) error {
	bookSide, ok := b.side(order.side)
	if !ok {
		return fmt.Errorf("%w: unknown side %v, id = %d", ErrInvalidOrder, order.side, order.id)
	}
	lvl, levelOK := bookSide.levelFor(order.price, false)

	var resting *Order
	var found bool
	if levelOK {
		resting, found = lvl.Get(order.id)
	}
	if !found {
		if loc, elsewhere := b.index[order.id]; elsewhere {
			resting, _ = b.Lookup(loc.side, loc.price, order.id)
		}
	}

	switch {
	case resting == nil && !levelOK:
		return fmt.Errorf("%w: couldn't modify order with id = %d, no level at price = %d",
			ErrPriceLevelNotFound, order.id, order.price)
	case resting == nil:
		return fmt.Errorf("%w: couldn't modify order, id = %d", ErrOrderNotFound, order.id)
	case resting.typ == Market:
		return fmt.Errorf("%w: couldn't modify order, id = %d", ErrMarketOrderImmutable, order.id)
	case !resting.SameIdentity(order):
		return fmt.Errorf("%w: couldn't modify order, id = %d", ErrImmutableFieldChanged, order.id)
	}

	resting.applyQuantity(order.quantity)
	return nil
}

// DeleteOrder removes the order identified by side, price and id.
// A missing level or id, or an unknown side, is a no-op.
func (b *OrderBook) DeleteOrder(order *Order) {
	bookSide, ok := b.side(order.side)
	if !ok {
		return
	}
	lvl, ok := bookSide.levelFor(order.price, false)
	if !ok {
		return
	}

	removed, empty := lvl.remove(order.id)
	if removed {
		delete(b.index, order.id)
	}
	if empty {
		bookSide.pruneIfEmpty(order.price)
	}
}

// Lookup returns the resting order with id at side and price
func (b *OrderBook) Lookup(side Side, price, id int64) (*Order, bool) {
	bookSide, ok := b.side(side)
	if !ok {
		return nil, false
	}
	lvl, ok := bookSide.Level(price)
	if !ok {
		return nil, false
	}
	return lvl.Get(id)
}

// BestBid returns the highest resting bid price, ok is false when there are no bids
func (b *OrderBook) BestBid() (price int64, ok bool) {
	return b.bids.Best()
}

// BestAsk returns the lowest resting ask price, ok is false when there are no asks
func (b *OrderBook) BestAsk() (price int64, ok bool) {
	return b.asks.Best()
}

// BestBidOrZero reports an empty bid side as 0
func (b *OrderBook) BestBidOrZero() int64 {
	price, _ := b.bids.Best()
	return price
}

// BestAskOrZero reports an empty ask side as 0
func (b *OrderBook) BestAskOrZero() int64 {
	price, _ := b.asks.Best()
	return price
}

func (b *OrderBook) side(s Side) (*BookSide, bool) {
	switch s {
	case Bid:
		return b.bids, true
	case Ask:
		return b.asks, true
	default:
		return nil, false
	}
}
