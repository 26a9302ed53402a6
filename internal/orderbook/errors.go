package orderbook

import "errors"

var (
	// ErrUnsupportedCommand is returned by Process for a kind it cannot dispatch
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrPriceLevelNotFound means an amend targeted a price with no resting orders
	ErrPriceLevelNotFound = errors.New("price level not found")

	// ErrOrderNotFound means an amend targeted an id absent from the price level
	ErrOrderNotFound = errors.New("order not found")

	// ErrMarketOrderImmutable means an amend targeted a resting market order
	ErrMarketOrderImmutable = errors.New("market order is immutable")

	// ErrImmutableFieldChanged means an amend changed something other than quantity
	ErrImmutableFieldChanged = errors.New("immutable field changed")

	// ErrDuplicateOrderID means an add reused an id that is already resting
	ErrDuplicateOrderID = errors.New("duplicate order id")

	// ErrInvalidOrder is returned by NewOrder when a field fails validation
	ErrInvalidOrder = errors.New("invalid order")
)
