package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_Validation(t *testing.T) {
	valid := OrderParams{ID: 1, Timestamp: testTs, Type: Limit, Side: Bid, Price: 100, Quantity: 1}

	tests := []struct {
		name   string
		mutate func(p *OrderParams)
	}{
		{"zero id", func(p *OrderParams) { p.ID = 0 }},
		{"zero quantity", func(p *OrderParams) { p.Quantity = 0 }},
		{"negative quantity", func(p *OrderParams) { p.Quantity = -5 }},
		{"negative price", func(p *OrderParams) { p.Price = -1 }},
		{"unknown side", func(p *OrderParams) { p.Side = 0 }},
		{"unknown type", func(p *OrderParams) { p.Type = 9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := NewOrder(p)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}

	o, err := NewOrder(valid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.ID())
	assert.Equal(t, int64(testTs), o.Timestamp())
	assert.Equal(t, Limit, o.Type())
	assert.Equal(t, Bid, o.Side())
	assert.Equal(t, int64(100), o.Price())
	assert.Equal(t, int64(1), o.Quantity())
}

func TestNewOrder_CopiesVenue(t *testing.T) {
	v := "trader"
	o, err := NewOrder(OrderParams{ID: 1, Type: Limit, Side: Ask, Price: 1, Quantity: 1, Venue: &v})
	require.NoError(t, err)

	v = "changed"
	got, ok := o.Venue()
	require.True(t, ok)
	assert.Equal(t, "trader", got)
}

func TestParseEnums(t *testing.T) {
	side, err := ParseSide("bid")
	require.NoError(t, err)
	assert.Equal(t, Bid, side)
	_, err = ParseSide("BUY")
	assert.Error(t, err)

	typ, err := ParseOrderType("MARKET")
	require.NoError(t, err)
	assert.Equal(t, Market, typ)
	_, err = ParseOrderType("IOC")
	assert.Error(t, err)

	assert.Equal(t, Amend, ParseCommandKind(" amend "))
	assert.Equal(t, CommandKind(0), ParseCommandKind("FILL"))
	assert.Equal(t, "CANCEL", Cancel.String())
	assert.Equal(t, "ASK", Ask.String())
}
