package core

// Operation represents a type of action that can be performed on an exchange.
type Operation int

// Operation constants define all supported exchange operations.
const (
	// OpGetMarkets retrieves the aggregate market listing.
	OpGetMarkets Operation = iota
	// OpGetSymbols retrieves the per-type (spot, margin, otc) symbol listing.
	OpGetSymbols
	// OpGetTicker retrieves current market ticker data for a symbol.
	OpGetTicker
	// OpGetTickers retrieves tickers for every listed symbol.
	OpGetTickers
	// OpGetOrderBook retrieves the current order book depth.
	OpGetOrderBook
	// OpGetTrades retrieves recent public trades for a symbol.
	OpGetTrades
	// OpGetKlines retrieves candlestick/OHLCV data.
	OpGetKlines
	// OpGetBalance retrieves account balance information.
	OpGetBalance
	// OpPlaceOrder submits a new order to the exchange.
	OpPlaceOrder
	// OpCancelOrder cancels one or more existing orders.
	OpCancelOrder
	// OpGetOrder retrieves details of a specific order.
	OpGetOrder
	// OpGetOpenOrders retrieves all open orders.
	OpGetOpenOrders
	// OpGetOrderHistory retrieves recently closed orders.
	OpGetOrderHistory
	// OpGetMyTrades retrieves the account's own executions.
	OpGetMyTrades
	// OpGetServerTime retrieves the exchange clock.
	OpGetServerTime
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return [...]string{
		"GET_MARKETS",
		"GET_SYMBOLS",
		"GET_TICKER",
		"GET_TICKERS",
		"GET_ORDER_BOOK",
		"GET_TRADES",
		"GET_KLINES",
		"GET_BALANCE",
		"PLACE_ORDER",
		"CANCEL_ORDER",
		"GET_ORDER",
		"GET_OPEN_ORDERS",
		"GET_ORDER_HISTORY",
		"GET_MY_TRADES",
		"GET_SERVER_TIME",
	}[o]
}

// IsTrading reports whether the operation creates or removes orders.
func (o Operation) IsTrading() bool {
	return o == OpPlaceOrder || o == OpCancelOrder
}
