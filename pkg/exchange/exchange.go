package exchange

import (
	"context"
	"iter"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"unifex/pkg/core"
)

// Exchange defines the unified interface for interacting with cryptocurrency exchanges.
// Implementations provide market data retrieval, account management and order
// execution over REST. Every call performs at most one remote request apart
// from the first market catalog load, which is cached until reloaded.
type Exchange interface {
	Name() string
	Version() string

	LoadMarkets(ctx context.Context, reload bool) (map[string]*core.Market, error)
	GetMarkets(ctx context.Context, opts ...Option) ([]core.Market, error)

	GetTicker(ctx context.Context, symbol string, opts ...Option) (*core.Ticker, error)
	GetTickers(ctx context.Context, opts ...Option) ([]core.Ticker, error)
	GetOrderBook(ctx context.Context, symbol string, opts ...Option) (*core.OrderBook, error)
	GetTrades(ctx context.Context, symbol string, opts ...Option) iter.Seq2[*core.Trade, error]
	GetKlines(ctx context.Context, symbol string, opts ...Option) ([]core.Kline, error)
	GetServerTime(ctx context.Context) (time.Time, error)

	GetBalance(ctx context.Context, opts ...Option) ([]core.Balance, error)

	PlaceOrder(ctx context.Context, req *OrderRequest, opts ...Option) (*core.Order, error)
	CancelOrder(ctx context.Context, req *CancelRequest, opts ...Option) (*core.CancelResult, error)
	CancelOrders(ctx context.Context, orderIDs []string, opts ...Option) (*core.CancelResult, error)
	GetOrder(ctx context.Context, req *OrderQuery, opts ...Option) (*core.Order, error)
	GetOpenOrders(ctx context.Context, symbol string, opts ...Option) ([]core.Order, error)
	GetClosedOrders(ctx context.Context, symbol string, opts ...Option) ([]core.Order, error)
	GetMyTrades(ctx context.Context, symbol string, opts ...Option) ([]core.Trade, error)

	Close() error
}

// OrderRequest contains the parameters required to place a new order on an exchange.
// Price is required unless Type is core.TypeMarket.
type OrderRequest struct {
	Symbol string         `validate:"required"`
	Side   core.OrderSide `validate:"oneof=0 1"`
	Type   core.OrderType `validate:"oneof=0 1"`
	Price  *apd.Decimal
	Amount *apd.Decimal `validate:"required"`
}

var validate = validator.New()

// Validate checks the struct constraints of the request. The price rule
// depends on the exchange and is checked there.
func (r *OrderRequest) Validate() error {
	return validate.Struct(r)
}

// CancelRequest contains the parameters required to cancel an existing order.
type CancelRequest struct {
	Symbol  string
	OrderID string
}

// OrderQuery contains the parameters required to query order status.
type OrderQuery struct {
	Symbol  string
	OrderID string
}
