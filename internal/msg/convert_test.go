package msg

import (
	"encoding/json"
	"testing"

	"github.com/ismaiel54/limit-order-book/internal/orderbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceToTicks(t *testing.T) {
	tick, err := ParseTickSize("0.05")
	require.NoError(t, err)

	tests := []struct {
		price string
		want  int64
		ok    bool
	}{
		{"100", 2000, true},
		{"100.05", 2001, true},
		{"0", 0, true},
		{"100.03", 0, false},
		{"abc", 0, false},
		{"18446744073709551716", 0, false},
		{"1000000000000000000", 0, false},
		{"-1000000000000000000", 0, false},
		{"461168601842738790.35", 9223372036854775807, true},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			got, err := PriceToTicks(tt.price, tick)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrMalformedCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.price, TicksToPrice(got, tick))
		})
	}
}

func TestParseTickSize(t *testing.T) {
	_, err := ParseTickSize("0")
	assert.Error(t, err)
	_, err = ParseTickSize("-0.01")
	assert.Error(t, err)
	_, err = ParseTickSize("cent")
	assert.Error(t, err)
}

func TestToCommand(t *testing.T) {
	tick, err := ParseTickSize("1")
	require.NoError(t, err)

	raw := `{"event_id":"e1","command":"NEW","order_id":1,"symbol":"BTC","type":"LIMIT","side":"BID","price":"100","qty":10,"venue":"trader","ts_unix_millis":1564355155}`
	var m OrderCmdMsg
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	cmd, err := m.ToCommand(tick)
	require.NoError(t, err)
	assert.Equal(t, orderbook.New, cmd.Kind)
	assert.Equal(t, int64(1), cmd.ID)
	assert.Equal(t, orderbook.Limit, cmd.Type)
	assert.Equal(t, orderbook.Bid, cmd.Side)
	assert.Equal(t, int64(100), cmd.Price)
	assert.Equal(t, int64(10), cmd.Quantity)
	assert.Equal(t, int64(1564355155), cmd.Timestamp)
	require.NotNil(t, cmd.Venue)
	assert.Equal(t, "trader", *cmd.Venue)
}

func TestToCommand_CancelWithoutType(t *testing.T) {
	tick, err := ParseTickSize("1")
	require.NoError(t, err)

	cmd, err := OrderCmdMsg{Command: "CANCEL", OrderID: 1, Side: "BID", Price: "100"}.ToCommand(tick)
	require.NoError(t, err)
	assert.Equal(t, orderbook.Cancel, cmd.Kind)
	assert.Nil(t, cmd.Venue)
}

func TestToCommand_Malformed(t *testing.T) {
	tick, err := ParseTickSize("1")
	require.NoError(t, err)

	tests := []struct {
		name string
		msg  OrderCmdMsg
	}{
		{"bad side", OrderCmdMsg{Command: "NEW", Side: "BUY", Type: "LIMIT", Price: "1", Qty: 1}},
		{"missing type", OrderCmdMsg{Command: "NEW", Side: "BID", Price: "1", Qty: 1}},
		{"bad type", OrderCmdMsg{Command: "AMEND", Side: "ASK", Type: "STOP", Price: "1", Qty: 1}},
		{"bad price", OrderCmdMsg{Command: "NEW", Side: "ASK", Type: "LIMIT", Price: "1.5", Qty: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.msg.ToCommand(tick)
			assert.ErrorIs(t, err, ErrMalformedCommand)
		})
	}
}

func TestToCommand_UnknownKindPassesThrough(t *testing.T) {
	tick, err := ParseTickSize("1")
	require.NoError(t, err)

	cmd, err := OrderCmdMsg{Command: "REPLACE", OrderID: 1, Side: "BID", Type: "LIMIT", Price: "1", Qty: 1}.ToCommand(tick)
	require.NoError(t, err)
	assert.Equal(t, orderbook.CommandKind(0), cmd.Kind)
}
