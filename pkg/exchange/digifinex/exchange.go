package digifinex

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"unifex/internal/keyring"
	"unifex/internal/metrics"
	"unifex/pkg/core"
	"unifex/pkg/exchange"
	"unifex/pkg/session"
)

// Exchange implements exchange.Exchange for DigiFinex. It is safe for
// concurrent use.
type Exchange struct {
	config     *core.Config
	session    *session.Session
	protocol   *Protocol
	normalizer *Normalizer
	markets    *catalog
	logger     zerolog.Logger
	now        func() time.Time
}

// Option is a functional option for configuring the Exchange.
type Option func(*Options)

// Options holds configuration options for the Exchange.
type Options struct {
	KeyRing  *keyring.KeyRing
	Logger   zerolog.Logger
	Registry prometheus.Registerer
	Clock    func() time.Time
}

// WithKeyRing returns an option that signs private requests with keys from kr.
func WithKeyRing(kr *keyring.KeyRing) Option {
	return func(o *Options) {
		o.KeyRing = kr
	}
}

// WithLogger returns an option that sets the logger for the exchange.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetricsRegisterer registers request metrics with reg. Metrics are
// recorded when this option is given or Config.MetricsEnabled is set.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registry = reg
	}
}

// WithClock replaces the wall clock used for request timestamps and kline windows.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Clock = now
	}
}

// New creates a DigiFinex client. No request is made until the first call.
func New(config *core.Config, opts ...Option) (*Exchange, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	options := &Options{
		Logger: zerolog.Nop(),
		Clock:  time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	sessionOpts := []session.Option{session.WithLogger(options.Logger)}
	if options.KeyRing != nil {
		sessionOpts = append(sessionOpts, session.WithKeyRing(options.KeyRing))
	}
	reg := options.Registry
	if reg == nil && config.MetricsEnabled {
		reg = prometheus.DefaultRegisterer
	}
	if reg != nil {
		sessionOpts = append(sessionOpts, session.WithMetrics(metrics.New("unifex", reg)))
	}

	sess, err := session.New(config, sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	protocol := NewProtocol(config.APIVersion, options.Clock)
	if err := sess.SetProtocol(protocol); err != nil {
		return nil, fmt.Errorf("set protocol: %w", err)
	}

	e := &Exchange{
		config:   config,
		session:  sess,
		protocol: protocol,
		markets:  newCatalog(),
		logger:   sess.Logger(),
		now:      options.Clock,
	}
	e.normalizer = NewNormalizer(e.markets.lookup)
	e.normalizer.logger = e.logger
	return e, nil
}

// Name returns the exchange identifier.
func (e *Exchange) Name() string {
	return Name
}

// Version returns the API version used for non-legacy endpoints.
func (e *Exchange) Version() string {
	return e.protocol.Version()
}

// Close releases the underlying session.
func (e *Exchange) Close() error {
	return e.session.Close()
}

// GetMarkets returns the loaded catalog sorted by symbol.
func (e *Exchange) GetMarkets(ctx context.Context, _ ...exchange.Option) ([]core.Market, error) {
	index, err := e.LoadMarkets(ctx, false)
	if err != nil {
		return nil, err
	}
	markets := make([]core.Market, 0, len(index))
	for _, m := range index {
		markets = append(markets, *m)
	}
	slices.SortFunc(markets, func(a, b core.Market) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return markets, nil
}

// GetTicker returns the ticker for symbol. The legacy ticker endpoint takes
// the API key as a plain parameter, so credentials are needed even though
// the request is not signed.
func (e *Exchange) GetTicker(ctx context.Context, symbol string, _ ...exchange.Option) (*core.Ticker, error) {
	apiKey, ok := e.session.APIKey()
	if !ok {
		return nil, core.ErrNoAPIKey
	}
	market, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	body, err := e.session.Do(ctx, core.OpGetTicker, core.Params{
		"apiKey": apiKey,
		"symbol": market.QuoteID + "_" + market.BaseID,
	})
	if err != nil {
		return nil, err
	}

	resp, err := decode[tickerResponse](body, "ticker")
	if err != nil {
		return nil, err
	}
	for key, raw := range resp.Ticker {
		ticker := e.normalizer.NormalizeTicker(key, raw, resp.Date)
		ticker.Symbol = market.Symbol
		return &ticker, nil
	}
	return nil, core.NewExchangeError(Name, core.ErrorTypeBadResponse, http.StatusOK, "ticker response is empty").
		WithCode(core.ErrCodeBadResponse).
		WithRaw(string(body))
}

// GetTickers returns tickers for every listed pair.
func (e *Exchange) GetTickers(ctx context.Context, _ ...exchange.Option) ([]core.Ticker, error) {
	apiKey, ok := e.session.APIKey()
	if !ok {
		return nil, core.ErrNoAPIKey
	}
	if _, err := e.LoadMarkets(ctx, false); err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}

	body, err := e.session.Do(ctx, core.OpGetTickers, core.Params{"apiKey": apiKey})
	if err != nil {
		return nil, err
	}

	resp, err := decode[tickerResponse](body, "tickers")
	if err != nil {
		return nil, err
	}
	tickers := make([]core.Ticker, 0, len(resp.Ticker))
	for key, raw := range resp.Ticker {
		tickers = append(tickers, e.normalizer.NormalizeTicker(key, raw, resp.Date))
	}
	slices.SortFunc(tickers, func(a, b core.Ticker) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return tickers, nil
}

// GetOrderBook retrieves the order book for the specified symbol.
func (e *Exchange) GetOrderBook(ctx context.Context, symbol string, opts ...exchange.Option) (*core.OrderBook, error) {
	options := exchange.ApplyOptions(opts...)

	market, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}
	params := core.Params{"symbol": market.ID}
	if options.Limit > 0 {
		params["limit"] = options.Limit
	}

	body, err := e.session.Do(ctx, core.OpGetOrderBook, params)
	if err != nil {
		return nil, err
	}
	resp, err := decode[orderBookResponse](body, "order book")
	if err != nil {
		return nil, err
	}
	book := e.normalizer.NormalizeOrderBook(*resp, market.Symbol)
	return &book, nil
}

// GetTrades retrieves recent public trades for the specified symbol as an iterator.
func (e *Exchange) GetTrades(ctx context.Context, symbol string, opts ...exchange.Option) iter.Seq2[*core.Trade, error] {
	return func(yield func(*core.Trade, error) bool) {
		options := exchange.ApplyOptions(opts...)

		market, err := e.market(ctx, symbol)
		if err != nil {
			yield(nil, err)
			return
		}
		params := core.Params{"symbol": market.ID}
		if options.Limit > 0 {
			params["limit"] = options.Limit
		}

		body, err := e.session.Do(ctx, core.OpGetTrades, params)
		if err != nil {
			yield(nil, err)
			return
		}
		resp, err := decode[tradesResponse](body, "trades")
		if err != nil {
			yield(nil, err)
			return
		}

		for _, raw := range resp.Data {
			trade := e.normalizer.NormalizeTrade(raw, market.Symbol)
			if !yield(&trade, nil) {
				return
			}
		}
	}
}

var timeframes = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"12h": "720",
	"1d":  "1D",
	"1w":  "1W",
}

var timeframeSeconds = map[string]int64{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"4h":  14400,
	"12h": 43200,
	"1d":  86400,
	"1w":  604800,
}

// GetKlines retrieves candles for symbol. WithInterval takes one of 1m, 5m,
// 15m, 30m, 1h, 4h, 12h, 1d or 1w and defaults to 1m. With a start time and a
// limit the window ends limit candles later; with only a limit it ends now.
func (e *Exchange) GetKlines(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Kline, error) {
	options := exchange.ApplyOptions(opts...)

	interval := options.Interval
	if interval == "" {
		interval = "1m"
	}
	period, ok := timeframes[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}

	market, err := e.market(ctx, symbol)
	if err != nil {
		return nil, err
	}

	params := core.Params{
		"symbol": market.ID,
		"period": period,
	}
	duration := timeframeSeconds[interval]
	switch {
	case !options.StartTime.IsZero():
		start := options.StartTime.Unix()
		params["start_time"] = start
		if options.Limit > 0 {
			params["end_time"] = start + int64(options.Limit)*duration
		}
	case options.Limit > 0:
		params["start_time"] = e.now().Unix() - int64(options.Limit)*duration
	}
	if !options.EndTime.IsZero() {
		params["end_time"] = options.EndTime.Unix()
	}

	body, err := e.session.Do(ctx, core.OpGetKlines, params)
	if err != nil {
		return nil, err
	}
	resp, err := decode[klineResponse](body, "klines")
	if err != nil {
		return nil, err
	}

	klines := make([]core.Kline, 0, len(resp.Data))
	for _, row := range resp.Data {
		k, err := e.normalizer.NormalizeKline(row, market.Symbol)
		if err != nil {
			return nil, err
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// GetServerTime returns the exchange clock.
func (e *Exchange) GetServerTime(ctx context.Context) (time.Time, error) {
	body, err := e.session.Do(ctx, core.OpGetServerTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := decode[serverTimeResponse](body, "server time")
	if err != nil {
		return time.Time{}, err
	}
	return secondsToTime(resp.ServerTime), nil
}

// GetBalance retrieves balances of the configured market family, or the one
// given with exchange.WithMarketType.
func (e *Exchange) GetBalance(ctx context.Context, opts ...exchange.Option) ([]core.Balance, error) {
	options := exchange.ApplyOptions(opts...)

	body, err := e.session.Do(ctx, core.OpGetBalance, core.Params{
		"market": options.MarketTypeOr(e.config.MarketType),
	})
	if err != nil {
		return nil, err
	}
	resp, err := decode[balanceResponse](body, "balance")
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeBalances(resp.List), nil
}

// PlaceOrder submits an order. Amount is truncated and price rounded to the
// market precision. The returned order echoes the request on top of the
// exchange's answer, which carries little more than the order id.
func (e *Exchange) PlaceOrder(ctx context.Context, req *exchange.OrderRequest, opts ...exchange.Option) (*core.Order, error) {
	if req == nil {
		return nil, fmt.Errorf("order request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order request: %w", err)
	}
	if req.Type != core.TypeMarket && req.Price == nil {
		return nil, core.ErrPriceRequired
	}
	options := exchange.ApplyOptions(opts...)

	market, err := e.market(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	amount, err := core.AmountToPrecision(req.Amount, market.Precision.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	orderType := req.Side.String()
	if req.Type == core.TypeMarket {
		orderType += "_market"
	}
	params := core.Params{
		"market": options.MarketTypeOr(e.config.MarketType),
		"symbol": market.ID,
		"type":   orderType,
		"amount": amount,
	}
	if req.Type != core.TypeMarket {
		price, err := core.PriceToPrecision(req.Price, market.Precision.Price)
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		params["price"] = price
	}

	body, err := e.session.Do(ctx, core.OpPlaceOrder, params)
	if err != nil {
		return nil, err
	}
	raw, err := decode[rawOrder](body, "order")
	if err != nil {
		return nil, err
	}

	order := e.normalizer.NormalizeOrder(*raw, market)
	order.Side = req.Side
	order.Type = req.Type
	order.Amount = req.Amount
	order.Price = req.Price

	e.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", order.Side.String()).
		Str("type", order.Type.String()).
		Msg("order placed")
	return &order, nil
}

// CancelOrder cancels a single order. DigiFinex cancels by id alone, so the
// request symbol is not sent. Anything but exactly one canceled id is
// reported as core.ErrorTypeOrderNotFound.
func (e *Exchange) CancelOrder(ctx context.Context, req *exchange.CancelRequest, opts ...exchange.Option) (*core.CancelResult, error) {
	if req == nil || req.OrderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	result, err := e.cancel(ctx, req.OrderID, opts...)
	if err != nil {
		return nil, err
	}
	if len(result.Success) != 1 {
		return nil, orderNotFound(fmt.Sprintf("cancel order %s: %d orders canceled", req.OrderID, len(result.Success)), result.Raw)
	}
	return result, nil
}

// CancelOrders cancels several orders in one request. It fails only when
// none was canceled; the per-id outcome is in the result.
func (e *Exchange) CancelOrders(ctx context.Context, orderIDs []string, opts ...exchange.Option) (*core.CancelResult, error) {
	if len(orderIDs) == 0 {
		return nil, fmt.Errorf("at least one order id is required")
	}

	result, err := e.cancel(ctx, strings.Join(orderIDs, ","), opts...)
	if err != nil {
		return nil, err
	}
	if len(result.Success) == 0 {
		return nil, orderNotFound(fmt.Sprintf("cancel orders %s: none canceled", strings.Join(orderIDs, ",")), result.Raw)
	}
	return result, nil
}

func (e *Exchange) cancel(ctx context.Context, orderIDs string, opts ...exchange.Option) (*core.CancelResult, error) {
	options := exchange.ApplyOptions(opts...)

	body, err := e.session.Do(ctx, core.OpCancelOrder, core.Params{
		"market":   options.MarketTypeOr(e.config.MarketType),
		"order_id": orderIDs,
	})
	if err != nil {
		return nil, err
	}
	resp, err := decode[cancelResponse](body, "cancel")
	if err != nil {
		return nil, err
	}

	result := &core.CancelResult{
		Success: make([]string, 0, len(resp.Success)),
		Failed:  make([]string, 0, len(resp.Error)),
		Raw:     body,
	}
	for _, id := range resp.Success {
		result.Success = append(result.Success, string(id))
	}
	for _, id := range resp.Error {
		result.Failed = append(result.Failed, string(id))
	}

	e.logger.Info().Strs("canceled", result.Success).Strs("failed", result.Failed).Msg("cancel processed")
	return result, nil
}

func orderNotFound(message string, raw []byte) error {
	return core.NewExchangeError(Name, core.ErrorTypeOrderNotFound, http.StatusOK, message).
		WithCode(core.ErrCodeOrderNotFound).
		WithRaw(string(raw))
}

// GetOrder fetches a single order. The symbol is resolved from the order
// record, not from the query.
func (e *Exchange) GetOrder(ctx context.Context, req *exchange.OrderQuery, opts ...exchange.Option) (*core.Order, error) {
	if req == nil || req.OrderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	options := exchange.ApplyOptions(opts...)

	body, err := e.session.Do(ctx, core.OpGetOrder, core.Params{
		"market":   options.MarketTypeOr(e.config.MarketType),
		"order_id": req.OrderID,
	})
	if err != nil {
		return nil, err
	}
	resp, err := decode[ordersResponse](body, "order")
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, orderNotFound(fmt.Sprintf("order %s not found", req.OrderID), body)
	}

	order := e.normalizer.NormalizeOrder(resp.Data[0], nil)
	return &order, nil
}

// GetOpenOrders returns open orders, for one symbol or all when symbol is empty.
func (e *Exchange) GetOpenOrders(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	return e.listOrders(ctx, core.OpGetOpenOrders, symbol, opts...)
}

// GetClosedOrders returns recently finished orders. A start time is sent at
// day precision.
func (e *Exchange) GetClosedOrders(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	return e.listOrders(ctx, core.OpGetOrderHistory, symbol, opts...)
}

func (e *Exchange) listOrders(ctx context.Context, op core.Operation, symbol string, opts ...exchange.Option) ([]core.Order, error) {
	options := exchange.ApplyOptions(opts...)

	params := core.Params{"market": options.MarketTypeOr(e.config.MarketType)}
	var market *core.Market
	if symbol != "" {
		m, err := e.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
		params["symbol"] = m.ID
	}
	if op == core.OpGetOrderHistory {
		if !options.StartTime.IsZero() {
			params["start_time"] = options.StartTime.UTC().Format("2006-01-02")
		}
		if options.Limit > 0 {
			params["limit"] = options.Limit
		}
	}

	body, err := e.session.Do(ctx, op, params)
	if err != nil {
		return nil, err
	}
	resp, err := decode[ordersResponse](body, "orders")
	if err != nil {
		return nil, err
	}

	orders := make([]core.Order, 0, len(resp.Data))
	for _, raw := range resp.Data {
		orders = append(orders, e.normalizer.NormalizeOrder(raw, market))
	}
	return orders, nil
}

// GetMyTrades returns the account's executions, for one symbol or all when
// symbol is empty.
func (e *Exchange) GetMyTrades(ctx context.Context, symbol string, opts ...exchange.Option) ([]core.Trade, error) {
	options := exchange.ApplyOptions(opts...)

	params := core.Params{"market": options.MarketTypeOr(e.config.MarketType)}
	var market *core.Market
	if symbol != "" {
		m, err := e.market(ctx, symbol)
		if err != nil {
			return nil, err
		}
		market = m
		params["symbol"] = m.ID
	}
	if !options.StartTime.IsZero() {
		params["start_time"] = strconv.FormatInt(options.StartTime.Unix(), 10)
	}
	if options.Limit > 0 {
		params["limit"] = options.Limit
	}

	body, err := e.session.Do(ctx, core.OpGetMyTrades, params)
	if err != nil {
		return nil, err
	}
	resp, err := decode[myTradesResponse](body, "my trades")
	if err != nil {
		return nil, err
	}

	trades := make([]core.Trade, 0, len(resp.List))
	for _, raw := range resp.List {
		trades = append(trades, e.normalizer.NormalizeMyTrade(raw, market))
	}
	return trades, nil
}

// Session exposes the underlying session, mostly for inspection of the
// breaker and rate limiter.
func (e *Exchange) Session() *session.Session {
	return e.session
}

func decode[T any](body []byte, what string) (*T, error) {
	var v T
	if err := sonic.Unmarshal(body, &v); err != nil {
		return nil, core.NewExchangeError(Name, core.ErrorTypeBadResponse, http.StatusOK, fmt.Sprintf("decode %s: %v", what, err)).
			WithCode(core.ErrCodeBadResponse).
			WithRaw(string(body))
	}
	return &v, nil
}

// Register creates an Exchange and registers it with the container.
func Register(container *exchange.Container, config *core.Config, opts ...Option) error {
	if container == nil {
		return errors.New("container is required")
	}
	ex, err := New(config, opts...)
	if err != nil {
		return fmt.Errorf("create digifinex exchange: %w", err)
	}
	return container.Register(Name, ex)
}

var _ exchange.Exchange = (*Exchange)(nil)
