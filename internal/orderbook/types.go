package orderbook

import (
	"fmt"
	"strings"
)

// Side is the side of the book an order rests on
type Side uint8

const (
	Bid Side = iota + 1
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "BID"
	case Ask:
		return "ASK"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// ParseSide parses BID or ASK (case-insensitive)
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BID":
		return Bid, nil
	case "ASK":
		return Ask, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// OrderType distinguishes limit from market orders
type OrderType uint8

const (
	Limit OrderType = iota + 1
	Market
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	default:
		return fmt.Sprintf("OrderType(%d)", uint8(t))
	}
}

// ParseOrderType parses LIMIT or MARKET (case-insensitive)
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LIMIT":
		return Limit, nil
	case "MARKET":
		return Market, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", s)
	}
}

// CommandKind is the action an inbound command asks the book to take
type CommandKind uint8

const (
	New CommandKind = iota + 1
	Amend
	Cancel
)

func (k CommandKind) String() string {
	switch k {
	case New:
		return "NEW"
	case Amend:
		return "AMEND"
	case Cancel:
		return "CANCEL"
	default:
		return fmt.Sprintf("CommandKind(%d)", uint8(k))
	}
}

// ParseCommandKind parses NEW, AMEND or CANCEL (case-insensitive).
// Unknown spellings map to the zero kind so that dispatch, not parsing,
// reports them as unsupported.
func ParseCommandKind(s string) CommandKind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NEW":
		return New
	case "AMEND":
		return Amend
	case "CANCEL":
		return Cancel
	default:
		return 0
	}
}
