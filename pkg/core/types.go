package core

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase an asset.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell an asset.
	SideSell
)

// String returns the wire representation of the order side ("buy" or "sell").
func (s OrderSide) String() string {
	return [...]string{"buy", "sell"}[s]
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts both uppercase and lowercase formats.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"BUY"`, `"buy"`:
		*s = SideBuy
	case `"SELL"`, `"sell"`:
		*s = SideSell
	}
	return nil
}

// ParseOrderSide converts "buy" or "sell" (any case) to an OrderSide.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch s {
	case "buy", "BUY", "Buy":
		return SideBuy, true
	case "sell", "SELL", "Sell":
		return SideSell, true
	}
	return SideBuy, false
}

// OrderType represents the type of order to place on an exchange.
type OrderType int

// Order type constants define how an order is executed.
const (
	// TypeLimit executes at a specified price or better.
	TypeLimit OrderType = iota
	// TypeMarket executes immediately at the best available price.
	TypeMarket
)

// String returns the string representation of the order type.
func (t OrderType) String() string {
	return [...]string{"limit", "market"}[t]
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"MARKET"`, `"market"`:
		*t = TypeMarket
	case `"LIMIT"`, `"limit"`:
		*t = TypeLimit
	}
	return nil
}

// OrderStatus is the canonical order state. Exchange codes without a canonical
// mapping are carried through verbatim.
type OrderStatus string

// Canonical order states.
const (
	StatusOpen     OrderStatus = "open"
	StatusClosed   OrderStatus = "closed"
	StatusCanceled OrderStatus = "canceled"
)

// IsTerminal returns true if the order can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// Market describes a tradable instrument as loaded from the exchange catalog.
type Market struct {
	// ID is the exchange-native identifier (e.g. "btc_usdt").
	ID string `json:"id"`
	// Symbol is the canonical "BASE/QUOTE" form.
	Symbol  string     `json:"symbol"`
	Base    string     `json:"base"`
	Quote   string     `json:"quote"`
	BaseID  string     `json:"base_id"`
	QuoteID string     `json:"quote_id"`
	Type    MarketType `json:"type"`
	// Active is nil when the exchange does not report a trustworthy state.
	Active    *bool           `json:"active"`
	Precision MarketPrecision `json:"precision"`
	Limits    MarketLimits    `json:"limits"`
	// Info is the raw catalog record.
	Info json.RawMessage `json:"info,omitempty"`
}

// MarketPrecision holds decimal place counts expected by the exchange.
type MarketPrecision struct {
	Amount *int `json:"amount"`
	Price  *int `json:"price"`
}

// MarketLimits holds order size constraints for a market.
type MarketLimits struct {
	Amount MinMax `json:"amount"`
	Price  MinMax `json:"price"`
	Cost   MinMax `json:"cost"`
}

// MinMax is an optional closed range.
type MinMax struct {
	Min *apd.Decimal `json:"min"`
	Max *apd.Decimal `json:"max"`
}

// Ticker is a point-in-time market snapshot. Fields the exchange did not
// report are nil.
type Ticker struct {
	Symbol      string       `json:"symbol"`
	Timestamp   time.Time    `json:"timestamp"`
	Last        *apd.Decimal `json:"last"`
	High        *apd.Decimal `json:"high"`
	Low         *apd.Decimal `json:"low"`
	Bid         *apd.Decimal `json:"bid"`
	Ask         *apd.Decimal `json:"ask"`
	Percentage  *apd.Decimal `json:"percentage"`
	BaseVolume  *apd.Decimal `json:"base_volume"`
	QuoteVolume *apd.Decimal `json:"quote_volume"`
}

// Order represents an exchange order as last reported by the exchange.
// Orders are never tracked locally; every query re-fetches them.
type Order struct {
	// ID is the exchange-assigned order identifier.
	ID     string      `json:"id"`
	Symbol string      `json:"symbol"`
	Side   OrderSide   `json:"side"`
	Type   OrderType   `json:"type"`
	Status OrderStatus `json:"status"`
	// Price is the limit price.
	Price *apd.Decimal `json:"price"`
	// Average is the average fill price.
	Average *apd.Decimal `json:"average"`
	Amount  *apd.Decimal `json:"amount"`
	Filled  *apd.Decimal `json:"filled"`
	// Remaining is always Amount - Filled, never read from the wire.
	Remaining *apd.Decimal `json:"remaining"`
	Cost      *apd.Decimal `json:"cost"`
	// CreatedAt is when the order was submitted.
	CreatedAt time.Time `json:"created_at"`
	// LastTradeAt is when the order was last filled or finished.
	LastTradeAt time.Time `json:"last_trade_at"`
}

// Balance represents account balance for a single asset.
type Balance struct {
	// Asset is the canonical currency code (e.g. "BTC", "USDT").
	Asset string `json:"asset"`
	// Free is the balance available for trading.
	Free *apd.Decimal `json:"free"`
	// Used is the balance locked in open orders.
	Used  *apd.Decimal `json:"used"`
	Total *apd.Decimal `json:"total"`
}

// Trade is an immutable historical execution record.
type Trade struct {
	ID           string       `json:"id"`
	OrderID      string       `json:"order_id,omitempty"`
	Symbol       string       `json:"symbol"`
	Side         OrderSide    `json:"side"`
	TakerOrMaker string       `json:"taker_or_maker,omitempty"`
	Price        *apd.Decimal `json:"price"`
	Amount       *apd.Decimal `json:"amount"`
	// Cost is Price * Amount when both are known.
	Cost      *apd.Decimal `json:"cost"`
	Fee       *apd.Decimal `json:"fee,omitempty"`
	FeeAsset  string       `json:"fee_asset,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Kline represents a candlestick/OHLCV data point for a time period.
type Kline struct {
	Symbol string `json:"symbol"`
	// OpenTime is the start of the candlestick period.
	OpenTime time.Time    `json:"open_time"`
	Open     *apd.Decimal `json:"open"`
	High     *apd.Decimal `json:"high"`
	Low      *apd.Decimal `json:"low"`
	Close    *apd.Decimal `json:"close"`
	Volume   *apd.Decimal `json:"volume"`
}

// Tuple returns the candle in canonical [timestamp_ms, open, high, low, close, volume] order.
// An unknown open time yields a zero timestamp.
func (k *Kline) Tuple() (int64, [5]*apd.Decimal) {
	var ts int64
	if !k.OpenTime.IsZero() {
		ts = k.OpenTime.UnixMilli()
	}
	return ts, [5]*apd.Decimal{k.Open, k.High, k.Low, k.Close, k.Volume}
}

// OrderBookLevel represents a single price level in the order book.
type OrderBookLevel struct {
	Price    apd.Decimal `json:"price"`
	Quantity apd.Decimal `json:"quantity"`
}

// OrderBook is a snapshot of resting orders for a trading pair.
type OrderBook struct {
	Symbol string `json:"symbol"`
	// Bids are buy orders sorted by price descending.
	Bids []OrderBookLevel `json:"bids"`
	// Asks are sell orders sorted by price ascending.
	Asks      []OrderBookLevel `json:"asks"`
	Timestamp time.Time        `json:"timestamp"`
}

// CancelResult carries the exchange's verbatim answer to a cancel request.
type CancelResult struct {
	Success []string        `json:"success"`
	Failed  []string        `json:"error"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}
