package orderbook

// LevelView is an aggregated, copy-safe view of one price level
type LevelView struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"qty"`
	Orders   int   `json:"orders"`
}

// Depth is a point-in-time view of the book, best levels first
type Depth struct {
	Symbol string      `json:"symbol"`
	Bids   []LevelView `json:"bids"`
	Asks   []LevelView `json:"asks"`
}

// Depth aggregates up to n levels per side; n <= 0 means every level
func (b *OrderBook) Depth(n int) Depth {
	return Depth{
		Symbol: b.symbol,
		Bids:   viewLevels(b.bids.Levels(n)),
		Asks:   viewLevels(b.asks.Levels(n)),
	}
}

func viewLevels(levels []*PriceLevel) []LevelView {
	out := make([]LevelView, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, LevelView{
			Price:    lvl.price,
			Quantity: lvl.TotalQuantity(),
			Orders:   lvl.Len(),
		})
	}
	return out
}
