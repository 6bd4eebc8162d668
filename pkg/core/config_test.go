package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("digifinex")

	assert.Equal(t, "digifinex", config.Exchange)
	assert.Equal(t, MarketTypeSpot, config.MarketType)
	assert.Equal(t, "v3", config.APIVersion)
	assert.Equal(t, "symbols", config.MarketsEndpoint)
	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, 900, config.RateLimitRequests)
	assert.Equal(t, time.Minute, config.RateLimitPeriod)
	assert.Equal(t, 10, config.OrderRateLimit)
	assert.True(t, config.CacheEnabled)
	assert.Equal(t, 1*time.Second, config.CacheTTL)
	assert.True(t, config.CircuitBreakerEnabled)
	assert.Equal(t, 5, config.CircuitBreakerFailThreshold)
	assert.Equal(t, 2, config.CircuitBreakerSuccessThreshold)
	assert.Equal(t, 30*time.Second, config.CircuitBreakerTimeout)
	assert.False(t, config.MetricsEnabled)
	assert.Equal(t, "info", config.LogLevel)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Exchange:          "digifinex",
			APIVersion:        "v3",
			Timeout:           10 * time.Second,
			RateLimitRequests: 100,
			RateLimitPeriod:   time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid_config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing_exchange",
			mutate:  func(c *Config) { c.Exchange = "" },
			wantErr: true,
			errMsg:  "Exchange",
		},
		{
			name:    "missing_api_version",
			mutate:  func(c *Config) { c.APIVersion = "" },
			wantErr: true,
			errMsg:  "APIVersion",
		},
		{
			name:    "invalid_base_url",
			mutate:  func(c *Config) { c.BaseURL = "not a url" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:   "valid_base_url",
			mutate: func(c *Config) { c.BaseURL = "http://127.0.0.1:8080" },
		},
		{
			name:    "invalid_markets_endpoint",
			mutate:  func(c *Config) { c.MarketsEndpoint = "catalog" },
			wantErr: true,
			errMsg:  "MarketsEndpoint",
		},
		{
			name:    "invalid_timeout",
			mutate:  func(c *Config) { c.Timeout = -1 * time.Second },
			wantErr: true,
			errMsg:  "Timeout",
		},
		{
			name:    "invalid_rate_limit_requests",
			mutate:  func(c *Config) { c.RateLimitRequests = 0 },
			wantErr: true,
			errMsg:  "RateLimitRequests",
		},
		{
			name:    "invalid_rate_limit_period",
			mutate:  func(c *Config) { c.RateLimitPeriod = 0 },
			wantErr: true,
			errMsg:  "RateLimitPeriod",
		},
		{
			name:    "negative_order_rate_limit",
			mutate:  func(c *Config) { c.OrderRateLimit = -1 },
			wantErr: true,
			errMsg:  "OrderRateLimit",
		},
		{
			name:    "invalid_log_level",
			mutate:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: true,
			errMsg:  "LogLevel",
		},
		{
			name: "invalid_circuit_breaker_fail_threshold",
			mutate: func(c *Config) {
				c.CircuitBreakerEnabled = true
			},
			wantErr: true,
			errMsg:  "CircuitBreakerFailThreshold",
		},
		{
			name: "invalid_circuit_breaker_success_threshold",
			mutate: func(c *Config) {
				c.CircuitBreakerEnabled = true
				c.CircuitBreakerFailThreshold = 5
			},
			wantErr: true,
			errMsg:  "CircuitBreakerSuccessThreshold",
		},
		{
			name: "invalid_circuit_breaker_timeout",
			mutate: func(c *Config) {
				c.CircuitBreakerEnabled = true
				c.CircuitBreakerFailThreshold = 5
				c.CircuitBreakerSuccessThreshold = 2
			},
			wantErr: true,
			errMsg:  "CircuitBreakerTimeout",
		},
		{
			name: "circuit_breaker_disabled_skips_validation",
			mutate: func(c *Config) {
				c.CircuitBreakerEnabled = false
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := base()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.errMsg), "expected error to contain %q, got %q", tt.errMsg, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.NoError(t, DefaultConfig("digifinex").Validate())
}

func TestCredentials_HasSecret(t *testing.T) {
	var nilCreds *Credentials
	assert.False(t, nilCreds.HasSecret())
	assert.False(t, (&Credentials{APIKey: "k"}).HasSecret())
	assert.True(t, (&Credentials{APIKey: "k", SecretKey: "s"}).HasSecret())
}

func TestConfig_Setters(t *testing.T) {
	config := DefaultConfig("digifinex")
	creds := &Credentials{APIKey: "test-key", SecretKey: "test-secret"}

	result := config.
		WithCredentials(creds).
		WithMarketType(MarketTypeMargin).
		WithBaseURL("http://localhost:9000").
		WithTimeout(30*time.Second).
		WithRateLimit(100, 10*time.Second).
		WithCache(false, 5*time.Second).
		WithMarketsEndpoint("markets").
		WithMetrics(true)

	assert.Equal(t, config, result)
	assert.Equal(t, creds, config.Credentials)
	assert.Equal(t, MarketTypeMargin, config.MarketType)
	assert.Equal(t, "http://localhost:9000", config.BaseURL)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 100, config.RateLimitRequests)
	assert.Equal(t, 10*time.Second, config.RateLimitPeriod)
	assert.False(t, config.CacheEnabled)
	assert.Equal(t, 5*time.Second, config.CacheTTL)
	assert.Equal(t, "markets", config.MarketsEndpoint)
	assert.True(t, config.MetricsEnabled)
}
