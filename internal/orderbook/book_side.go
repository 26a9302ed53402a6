package orderbook

import (
	"github.com/google/btree"
)

const btreeDegree = 32

// BookSide keeps the price levels of one side sorted best-first.
// The ordering is fixed at construction: descending for bids, ascending
// for asks. Every stored level is non-empty and keyed by its own price.
type BookSide struct {
	side   Side
	levels *btree.BTreeG[*PriceLevel]
}

func newBookSide(side Side) *BookSide {
	return &BookSide{
		side:   side,
		levels: btree.NewG(btreeDegree, levelLess(side)),
	}
}

// levelLess orders levels best-first for the given side
func levelLess(side Side) btree.LessFunc[*PriceLevel] {
	if side == Bid {
		return func(a, b *PriceLevel) bool { return a.price > b.price }
	}
	return func(a, b *PriceLevel) bool { return a.price < b.price }
}

// Side returns which side of the book this is
func (s *BookSide) Side() Side {
	return s.side
}

// Len returns the number of price levels
func (s *BookSide) Len() int {
	return s.levels.Len()
}

// Level returns the level resting at price, if any
func (s *BookSide) Level(price int64) (*PriceLevel, bool) {
	return s.levels.Get(&PriceLevel{price: price})
}

// levelFor returns the level at price, creating an empty one when create is set
func (s *BookSide) levelFor(price int64, create bool) (*PriceLevel, bool) {
	if lvl, ok := s.Level(price); ok {
		return lvl, true
	}
	if !create {
		return nil, false
	}

	lvl := newPriceLevel(price)
	s.levels.ReplaceOrInsert(lvl)
	return lvl, true
}

// pruneIfEmpty removes the level at price once its queue has drained
func (s *BookSide) pruneIfEmpty(price int64) {
	lvl, ok := s.Level(price)
	if !ok || lvl.Len() > 0 {
		return
	}
	s.levels.Delete(lvl)
}

// Best returns the most competitive price on this side
func (s *BookSide) Best() (int64, bool) {
	lvl, ok := s.levels.Min()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// Levels returns up to depth levels best-first; depth <= 0 means all
func (s *BookSide) Levels(depth int) []*PriceLevel {
	n := s.levels.Len()
	if depth > 0 && depth < n {
		n = depth
	}

	out := make([]*PriceLevel, 0, n)
	s.levels.Ascend(func(lvl *PriceLevel) bool {
		out = append(out, lvl)
		return len(out) < n
	})
	return out
}
