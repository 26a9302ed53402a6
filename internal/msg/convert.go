package msg

import (
	"errors"
	"fmt"

	"github.com/ismaiel54/limit-order-book/internal/orderbook"
	"github.com/shopspring/decimal"
)

// ErrMalformedCommand marks a command message that cannot become a book command
var ErrMalformedCommand = errors.New("malformed command")

// ParseTickSize parses a positive decimal tick size such as "0.01"
func ParseTickSize(s string) (decimal.Decimal, error) {
	tick, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid tick size %q: %w", s, err)
	}
	if tick.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("tick size must be greater than 0, got %s", s)
	}
	return tick, nil
}

// PriceToTicks converts a decimal price into an integer number of ticks
func PriceToTicks(price string, tick decimal.Decimal) (int64, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid price %q", ErrMalformedCommand, price)
	}
	if !p.Mod(tick).IsZero() {
		return 0, fmt.Errorf("%w: price %s is not a multiple of tick size %s", ErrMalformedCommand, p, tick)
	}
	ticks := p.Div(tick)
	if !ticks.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: price %s is out of range for tick size %s", ErrMalformedCommand, p, tick)
	}
	return ticks.IntPart(), nil
}

// TicksToPrice renders ticks back into a decimal price string
func TicksToPrice(ticks int64, tick decimal.Decimal) string {
	return decimal.NewFromInt(ticks).Mul(tick).String()
}

// ToCommand translates the message into a book command.
// An unknown command kind is passed through for the book to reject.
func (m OrderCmdMsg) ToCommand(tick decimal.Decimal) (orderbook.Command, error) {
	kind := orderbook.ParseCommandKind(m.Command)

	side, err := orderbook.ParseSide(m.Side)
	if err != nil {
		return orderbook.Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	var typ orderbook.OrderType
	if m.Type != "" || kind != orderbook.Cancel {
		if typ, err = orderbook.ParseOrderType(m.Type); err != nil {
			return orderbook.Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
		}
	}

	price, err := PriceToTicks(m.Price, tick)
	if err != nil {
		return orderbook.Command{}, err
	}

	return orderbook.Command{
		Kind:      kind,
		ID:        m.OrderID,
		Timestamp: m.TsUnixMillis,
		Type:      typ,
		Side:      side,
		Price:     price,
		Quantity:  m.Qty,
		Venue:     m.Venue,
	}, nil
}
