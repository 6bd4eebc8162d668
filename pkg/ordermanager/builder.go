package ordermanager

import (
	"context"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"unifex/pkg/core"
	"unifex/pkg/exchange"
)

// OrderBuilder provides a fluent interface for constructing order requests.
// It keeps the first error and reports it on Build.
//
// Example:
//
//	req, err := ordermanager.NewOrderBuilder("BTC/USDT").
//	    Buy().
//	    Limit().
//	    Price("50000").
//	    Amount("0.001").
//	    Build()
type OrderBuilder struct {
	req *exchange.OrderRequest
	err error
}

// NewOrderBuilder creates a new order builder for the given trading symbol.
// Orders default to limit buys.
func NewOrderBuilder(symbol string) *OrderBuilder {
	return &OrderBuilder{
		req: &exchange.OrderRequest{
			Symbol: symbol,
			Side:   core.SideBuy,
			Type:   core.TypeLimit,
		},
	}
}

// Side sets the order side (buy or sell).
func (b *OrderBuilder) Side(side core.OrderSide) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Side = side
	return b
}

// Buy sets the order side to buy.
func (b *OrderBuilder) Buy() *OrderBuilder {
	return b.Side(core.SideBuy)
}

// Sell sets the order side to sell.
func (b *OrderBuilder) Sell() *OrderBuilder {
	return b.Side(core.SideSell)
}

// Type sets the order type.
func (b *OrderBuilder) Type(orderType core.OrderType) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Type = orderType
	return b
}

// Market sets the order type to market.
func (b *OrderBuilder) Market() *OrderBuilder {
	return b.Type(core.TypeMarket)
}

// Limit sets the order type to limit.
func (b *OrderBuilder) Limit() *OrderBuilder {
	return b.Type(core.TypeLimit)
}

// Price sets the limit price from a string representation.
func (b *OrderBuilder) Price(price string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	d, _, err := apd.NewFromString(price)
	if err != nil {
		b.err = fmt.Errorf("parse price: %w", err)
		return b
	}
	b.req.Price = d
	return b
}

// PriceDecimal sets the limit price from an apd.Decimal value.
func (b *OrderBuilder) PriceDecimal(price apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Price = new(apd.Decimal).Set(&price)
	return b
}

// Amount sets the base currency amount from a string representation.
func (b *OrderBuilder) Amount(amount string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	d, _, err := apd.NewFromString(amount)
	if err != nil {
		b.err = fmt.Errorf("parse amount: %w", err)
		return b
	}
	b.req.Amount = d
	return b
}

// AmountDecimal sets the base currency amount from an apd.Decimal value.
func (b *OrderBuilder) AmountDecimal(amount apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Amount = new(apd.Decimal).Set(&amount)
	return b
}

// Build validates and returns the constructed request.
func (b *OrderBuilder) Build() (*exchange.OrderRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := validateRequest(b.req); err != nil {
		return nil, err
	}
	req := *b.req
	return &req, nil
}

// Place builds the request and submits it to ex.
func (b *OrderBuilder) Place(ctx context.Context, ex exchange.Exchange, opts ...exchange.Option) (*core.Order, error) {
	req, err := b.Build()
	if err != nil {
		return nil, err
	}
	return ex.PlaceOrder(ctx, req, opts...)
}

func validateRequest(req *exchange.OrderRequest) error {
	if req.Symbol == "" {
		return core.ErrSymbolRequired
	}

	if req.Amount == nil || req.Amount.IsZero() || req.Amount.Negative {
		return fmt.Errorf("amount must be positive")
	}

	if req.Type != core.TypeMarket {
		if req.Price == nil {
			return core.ErrPriceRequired
		}
		if req.Price.IsZero() || req.Price.Negative {
			return fmt.Errorf("price must be positive for limit orders")
		}
	}

	if err := req.Validate(); err != nil {
		return fmt.Errorf("validate order: %w", err)
	}
	return nil
}
