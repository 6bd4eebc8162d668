package digifinex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"time"

	"unifex/pkg/core"
)

const (
	// Name is the identifier used in errors, logs and the exchange container.
	Name = "digifinex"
	// BaseURL is the production API host.
	BaseURL = "https://openapi.digifinex.com"
	// DefaultVersion is the path prefix for every endpoint outside the ticker family.
	DefaultVersion = "v3"

	legacyVersion = "v2"
)

type endpoint struct {
	method   string
	path     string
	access   core.Access
	required []string
	cache    bool
}

var endpoints = map[core.Operation]endpoint{
	core.OpGetMarkets:      {method: http.MethodGet, path: "/markets"},
	core.OpGetSymbols:      {method: http.MethodGet, path: "/{market}/symbols"},
	core.OpGetTickers:      {method: http.MethodGet, path: "/ticker", access: core.AccessPublicV2, required: []string{"apiKey"}, cache: true},
	core.OpGetTicker:       {method: http.MethodGet, path: "/ticker", access: core.AccessPublicV2, required: []string{"apiKey", "symbol"}, cache: true},
	core.OpGetOrderBook:    {method: http.MethodGet, path: "/order_book", required: []string{"symbol"}, cache: true},
	core.OpGetTrades:       {method: http.MethodGet, path: "/trades", required: []string{"symbol"}},
	core.OpGetKlines:       {method: http.MethodGet, path: "/kline", required: []string{"symbol", "period"}, cache: true},
	core.OpGetServerTime:   {method: http.MethodGet, path: "/time"},
	core.OpGetBalance:      {method: http.MethodGet, path: "/{market}/assets", access: core.AccessPrivate},
	core.OpPlaceOrder:      {method: http.MethodPost, path: "/{market}/order/new", access: core.AccessPrivate, required: []string{"symbol", "type", "amount"}},
	core.OpCancelOrder:     {method: http.MethodPost, path: "/{market}/order/cancel", access: core.AccessPrivate, required: []string{"order_id"}},
	core.OpGetOrder:        {method: http.MethodGet, path: "/{market}/order", access: core.AccessPrivate, required: []string{"order_id"}},
	core.OpGetOpenOrders:   {method: http.MethodGet, path: "/{market}/order/current", access: core.AccessPrivate},
	core.OpGetOrderHistory: {method: http.MethodGet, path: "/{market}/order/history", access: core.AccessPrivate},
	core.OpGetMyTrades:     {method: http.MethodGet, path: "/{market}/mytrades", access: core.AccessPrivate},
}

// marketSegments maps each market family to its path segment.
var marketSegments = map[core.MarketType]string{
	core.MarketTypeSpot:   "spot",
	core.MarketTypeMargin: "margin",
	core.MarketTypeOTC:    "otc",
}

// Protocol implements core.Protocol for the DigiFinex REST API.
type Protocol struct {
	version string
	now     func() time.Time
}

// NewProtocol creates a Protocol for the given API version. A nil clock
// defaults to time.Now; it only feeds the ACCESS-TIMESTAMP header.
func NewProtocol(version string, now func() time.Time) *Protocol {
	if version == "" {
		version = DefaultVersion
	}
	if now == nil {
		now = time.Now
	}
	return &Protocol{version: version, now: now}
}

func (p *Protocol) Name() string {
	return Name
}

func (p *Protocol) Version() string {
	return p.version
}

func (p *Protocol) BaseURL() string {
	return BaseURL
}

// SupportedOperations returns the list of operations supported by this protocol.
func (p *Protocol) SupportedOperations() []core.Operation {
	return []core.Operation{
		core.OpGetMarkets,
		core.OpGetSymbols,
		core.OpGetTicker,
		core.OpGetTickers,
		core.OpGetOrderBook,
		core.OpGetTrades,
		core.OpGetKlines,
		core.OpGetBalance,
		core.OpPlaceOrder,
		core.OpCancelOrder,
		core.OpGetOrder,
		core.OpGetOpenOrders,
		core.OpGetOrderHistory,
		core.OpGetMyTrades,
		core.OpGetServerTime,
	}
}

// RateLimits returns the rate limiting configuration for DigiFinex.
func (p *Protocol) RateLimits() core.RateLimitConfig {
	return core.RateLimitConfig{
		RequestsPerSecond: 15,
		OrdersPerSecond:   10,
		Burst:             15,
	}
}

// BuildRequest constructs the HTTP request for op. A "market" param may be a
// core.MarketType or its path segment; it fills the {market} placeholder and
// is never sent as a parameter. The remaining params become the query string
// of a GET or the form body of a POST.
func (p *Protocol) BuildRequest(_ context.Context, op core.Operation, params core.Params) (*core.Request, error) {
	ep, ok := endpoints[op]
	if !ok {
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}

	params = maps.Clone(params)
	if params == nil {
		params = core.Params{}
	}
	if mt, ok := params["market"].(core.MarketType); ok {
		segment, ok := marketSegments[mt]
		if !ok {
			return nil, fmt.Errorf("unsupported market type: %d", mt)
		}
		params["market"] = segment
	}
	for _, key := range ep.required {
		if _, err := getRequiredParam(params, key); err != nil {
			return nil, err
		}
	}

	path, rest, err := core.ExpandPath(ep.path, params)
	if err != nil {
		return nil, err
	}

	version := p.version
	if ep.access == core.AccessPublicV2 {
		version = legacyVersion
	}

	req := core.NewRequest(ep.method, "/"+version+path).SetAccess(ep.access)
	req.Operation = op
	if op.IsTrading() {
		req.SetWeight(2)
	}

	if ep.method == http.MethodPost {
		req.SetBody(rest.Encode())
	} else {
		req.SetQueryParams(rest)
	}

	if ep.cache {
		req.SetCache(fmt.Sprintf("%s:%s?%s", op, req.Path, req.QueryString()), 0)
	}

	return req, nil
}

// SignRequest attaches the ACCESS-* headers. The signature covers the
// urlencoded params only: the query for GET, the form body for POST.
func (p *Protocol) SignRequest(req *core.Request, creds core.Credentials) error {
	if !creds.HasSecret() {
		return fmt.Errorf("api key and secret are required for signing")
	}

	payload := req.QueryString()
	if req.Method == http.MethodPost {
		payload = req.Body
	}

	req.SetHeader("ACCESS-KEY", creds.APIKey)
	req.SetHeader("ACCESS-SIGN", signHMAC(payload, creds.SecretKey))
	req.SetHeader("ACCESS-TIMESTAMP", strconv.FormatInt(p.now().Unix(), 10))

	return nil
}

// CheckResponse classifies a DigiFinex response body.
func (p *Protocol) CheckResponse(statusCode int, body []byte) error {
	return checkResponse(statusCode, body)
}

func signHMAC(message, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

func getRequiredParam(params core.Params, key string) (any, error) {
	val, ok := params[key]
	if !ok || val == nil {
		return nil, fmt.Errorf("missing required parameter: %s", key)
	}
	if str, ok := val.(string); ok && str == "" {
		return nil, fmt.Errorf("parameter %s cannot be empty", key)
	}
	return val, nil
}

var _ core.Protocol = (*Protocol)(nil)
