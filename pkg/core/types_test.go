package core

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderSide_String(t *testing.T) {
	assert.Equal(t, "buy", SideBuy.String())
	assert.Equal(t, "sell", SideSell.String())
}

func TestParseOrderSide(t *testing.T) {
	tests := []struct {
		in   string
		want OrderSide
		ok   bool
	}{
		{"buy", SideBuy, true},
		{"SELL", SideSell, true},
		{"Sell", SideSell, true},
		{"hold", SideBuy, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseOrderSide(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderType_String(t *testing.T) {
	assert.Equal(t, "limit", TypeLimit.String())
	assert.Equal(t, "market", TypeMarket.String())
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		expected bool
	}{
		{StatusOpen, false},
		{StatusClosed, true},
		{StatusCanceled, true},
		{OrderStatus("7"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsTerminal())
		})
	}
}

func TestKline_Tuple(t *testing.T) {
	k := Kline{
		OpenTime: time.UnixMilli(1556712900000),
		Open:     MustDecimal("6"),
		High:     MustDecimal("4"),
		Low:      MustDecimal("5"),
		Close:    MustDecimal("3"),
		Volume:   MustDecimal("2"),
	}

	ts, values := k.Tuple()
	assert.Equal(t, int64(1556712900000), ts)
	got := make([]string, 0, len(values))
	for _, v := range values {
		got = append(got, v.Text('f'))
	}
	assert.Equal(t, []string{"6", "4", "5", "3", "2"}, got)
}

func TestKline_Tuple_UnknownOpenTime(t *testing.T) {
	k := Kline{Close: MustDecimal("1")}

	ts, values := k.Tuple()
	assert.Equal(t, int64(0), ts)
	assert.Nil(t, values[0])
	assert.Equal(t, "1", values[3].Text('f'))
}

func TestOrder_MarshalJSON(t *testing.T) {
	order := Order{
		ID:     "abc",
		Symbol: "BTC/USDT",
		Side:   SideSell,
		Type:   TypeMarket,
		Status: StatusOpen,
		Amount: MustDecimal("0.5"),
	}

	data, err := sonic.Marshal(order)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, sonic.Unmarshal(data, &decoded))
	assert.Equal(t, "sell", decoded["side"])
	assert.Equal(t, "market", decoded["type"])
	assert.Equal(t, "open", decoded["status"])
	assert.Equal(t, "0.5", decoded["amount"])
	assert.Nil(t, decoded["price"])
}

func TestMarketType(t *testing.T) {
	assert.Equal(t, "otc", MarketTypeOTC.String())

	mt, err := ParseMarketType("")
	require.NoError(t, err)
	assert.Equal(t, MarketTypeSpot, mt)

	mt, err = ParseMarketType("margin")
	require.NoError(t, err)
	assert.Equal(t, MarketTypeMargin, mt)

	_, err = ParseMarketType("futures")
	assert.Error(t, err)
}
