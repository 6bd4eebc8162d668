package core

import "context"

// RateLimitConfig defines rate limiting parameters for an exchange protocol.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum general requests per second.
	RequestsPerSecond int `json:"requests_per_second"`
	// OrdersPerSecond is the maximum order placement and cancellation requests per second.
	OrdersPerSecond int `json:"orders_per_second"`
	// Burst allows temporary exceeding of rate limits.
	Burst int `json:"burst"`
}

// Access is the authorization scope of an endpoint.
type Access int

const (
	// AccessPublic endpoints need no credentials.
	AccessPublic Access = iota
	// AccessPrivate endpoints are signed with the account secret.
	AccessPrivate
	// AccessPublicV2 endpoints live under the legacy API version and are not signed.
	AccessPublicV2
)

func (a Access) String() string {
	return [...]string{"public", "private", "public_v2"}[a]
}

// Protocol defines the interface for exchange-specific protocol implementations.
// A protocol turns operations into HTTP requests, authenticates them and
// classifies the raw responses; decoding into canonical types is left to the
// exchange client, which owns the market catalog needed for symbol resolution.
type Protocol interface {
	// Name returns the exchange identifier (e.g., "digifinex").
	Name() string

	// Version returns the default API version being used.
	Version() string

	// BaseURL returns the API host.
	BaseURL() string

	// BuildRequest constructs an HTTP request for the specified operation.
	// The params map contains operation-specific parameters.
	BuildRequest(ctx context.Context, op Operation, params Params) (*Request, error)

	// SignRequest adds authentication headers and signature to a private request.
	SignRequest(req *Request, creds Credentials) error

	// CheckResponse inspects a raw response and returns a categorized error,
	// or nil when the exchange reported success.
	CheckResponse(statusCode int, body []byte) error

	// SupportedOperations returns the list of operations this protocol supports.
	SupportedOperations() []Operation

	// RateLimits returns the rate limiting configuration for this exchange.
	RateLimits() RateLimitConfig
}
