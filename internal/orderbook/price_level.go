package orderbook

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// PriceLevel is a FIFO queue of orders resting at one price.
// Iteration order is arrival order; an amend does not move an order.
type PriceLevel struct {
	price  int64
	orders *orderedmap.OrderedMap[int64, *Order]
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{
		price:  price,
		orders: orderedmap.New[int64, *Order](),
	}
}

// Price returns the price shared by every order in the level
func (l *PriceLevel) Price() int64 {
	return l.price
}

// Len returns the number of resting orders
func (l *PriceLevel) Len() int {
	return l.orders.Len()
}

// Get returns the order with the given id, if present
func (l *PriceLevel) Get(id int64) (*Order, bool) {
	return l.orders.Get(id)
}

// Orders returns the resting orders oldest first
func (l *PriceLevel) Orders() []*Order {
	out := make([]*Order, 0, l.orders.Len())
	for pair := l.orders.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// TotalQuantity sums the quantity of every resting order
func (l *PriceLevel) TotalQuantity() int64 {
	var total int64
	for pair := l.orders.Oldest(); pair != nil; pair = pair.Next() {
		total += pair.Value.quantity
	}
	return total
}

// append queues o at the tail. The caller guarantees o.id is not present.
func (l *PriceLevel) append(o *Order) {
	l.orders.Set(o.id, o)
}

// remove drops id from the queue and reports whether the level is now empty
func (l *PriceLevel) remove(id int64) (removed bool, empty bool) {
	_, removed = l.orders.Delete(id)
	return removed, l.orders.Len() == 0
}
