package core

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Credentials holds API authentication credentials for an exchange.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key"`
	// SecretKey is the private API key used for signing requests.
	SecretKey string `json:"secret_key"`
}

// HasSecret reports whether the credentials can sign private requests.
func (c *Credentials) HasSecret() bool {
	return c != nil && c.APIKey != "" && c.SecretKey != ""
}

// Config contains all configuration options for an exchange session.
// It includes authentication, networking, rate limiting, caching, and circuit breaker settings.
type Config struct {
	Exchange    string       `json:"exchange" validate:"required"`
	MarketType  MarketType   `json:"market_type"`
	Credentials *Credentials `json:"credentials,omitempty"`

	// BaseURL overrides the exchange host, mostly for tests.
	BaseURL string `json:"base_url" validate:"omitempty,url"`
	// APIVersion is the path prefix for non-legacy endpoints.
	APIVersion string `json:"api_version" validate:"required"`
	// MarketsEndpoint selects the catalog source: the per-type "symbols"
	// listing or the aggregate "markets" listing.
	MarketsEndpoint string `json:"markets_endpoint" validate:"omitempty,oneof=symbols markets"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout time.Duration `json:"timeout" validate:"min=1ms"`

	RateLimitRequests int           `json:"rate_limit_requests" validate:"min=1"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" validate:"min=1ms"`
	// OrderRateLimit caps order placement and cancellation per second; zero disables the bucket.
	OrderRateLimit int `json:"order_rate_limit" validate:"min=0"`

	CacheEnabled bool          `json:"cache_enabled"`
	CacheTTL     time.Duration `json:"cache_ttl" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	LogLevel       string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config initialized with sensible defaults for the specified exchange.
// Default values: 10s timeout, API v3 with per-type symbol listings, 900 req/min
// rate limit, 1s cache TTL, circuit breaker with 5 failures/2 successes/30s timeout.
func DefaultConfig(exchange string) *Config {
	return &Config{
		Exchange:        exchange,
		APIVersion:      "v3",
		MarketsEndpoint: "symbols",
		Timeout:         10 * time.Second,

		RateLimitRequests: 900,
		RateLimitPeriod:   time.Minute,
		OrderRateLimit:    10,

		CacheEnabled: true,
		CacheTTL:     1 * time.Second,

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	return nil
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithMarketType sets the default market family for private endpoints.
func (c *Config) WithMarketType(mt MarketType) *Config {
	c.MarketType = mt
	return c
}

// WithBaseURL overrides the API host and returns the config for chaining.
func (c *Config) WithBaseURL(baseURL string) *Config {
	c.BaseURL = baseURL
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRateLimit sets the rate limiting parameters and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithCache enables or disables caching with the specified TTL and returns the config for chaining.
func (c *Config) WithCache(enabled bool, ttl time.Duration) *Config {
	c.CacheEnabled = enabled
	c.CacheTTL = ttl
	return c
}

// WithMarketsEndpoint selects "symbols" or "markets" as the catalog source.
func (c *Config) WithMarketsEndpoint(endpoint string) *Config {
	c.MarketsEndpoint = endpoint
	return c
}

// WithMetrics toggles prometheus instrumentation.
func (c *Config) WithMetrics(enabled bool) *Config {
	c.MetricsEnabled = enabled
	return c
}
