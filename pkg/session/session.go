package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"unifex/internal/circuitbreaker"
	httpclient "unifex/internal/http"
	"unifex/internal/keyring"
	"unifex/internal/metrics"
	"unifex/internal/ratelimit"
	"unifex/pkg/core"
)

// State represents the lifecycle state of a Session.
type State int

const (
	// StateNew indicates a newly created session that has not yet been activated.
	StateNew State = iota
	// StateActive indicates a session that is ready to process requests.
	StateActive
	// StateClosed indicates a session that has been shut down and can no longer be used.
	StateClosed
)

// String returns the string representation of the State.
func (s State) String() string {
	return [...]string{"NEW", "ACTIVE", "CLOSED"}[s]
}

// Session executes protocol requests against one exchange.
// It manages authentication, rate limiting, circuit breaking, caching, and request execution.
// Sessions are safe for concurrent use.
type Session struct {
	mu             sync.RWMutex
	config         *core.Config
	protocol       core.Protocol
	client         *httpclient.Client
	credentials    *core.Credentials
	keys           *keyring.KeyRing
	rateLimiter    *ratelimit.RateLimiter
	circuitBreaker *circuitbreaker.Breaker
	cache          *Cache
	metrics        *metrics.Recorder
	logger         zerolog.Logger
	state          State
	createdAt      time.Time
	lastUsed       time.Time
}

// Option configures optional Session collaborators.
type Option func(*Session)

// WithLogger sets the logger. The level is capped by Config.LogLevel.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithKeyRing signs private requests with keys drawn from ring instead of
// Config.Credentials.
func WithKeyRing(ring *keyring.KeyRing) Option {
	return func(s *Session) {
		s.keys = ring
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Session) {
		s.metrics = rec
	}
}

// New creates a new Session with the provided configuration.
// The configuration is validated before the session is created.
// Returns an error if the configuration is nil or invalid.
func New(config *core.Config, opts ...Option) (*Session, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	now := time.Now()
	s := &Session{
		config:      config,
		credentials: config.Credentials,
		logger:      zerolog.Nop(),
		state:       StateNew,
		createdAt:   now,
		lastUsed:    now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if config.LogLevel != "" {
		if level, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			s.logger = s.logger.Level(level)
		}
	}
	s.logger = s.logger.With().Str("exchange", config.Exchange).Logger()

	s.rateLimiter = ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod)
	if config.OrderRateLimit > 0 {
		s.rateLimiter.SetBucket(ratelimit.BucketOrders, config.OrderRateLimit, time.Second)
	}

	if config.CircuitBreakerEnabled {
		s.circuitBreaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
			OnStateChange:    s.onBreakerStateChange,
		})
	}

	if config.CacheEnabled {
		s.cache = NewCache(config.CacheTTL)
	}

	return s, nil
}

func (s *Session) onBreakerStateChange(from, to circuitbreaker.State) {
	s.logger.Warn().
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state changed")
	s.metrics.SetBreakerState(s.config.Exchange, int(to))
}

// SetProtocol assigns the exchange protocol to the session and builds the
// HTTP client for its host. Config.BaseURL takes precedence over the
// protocol's host. The session state transitions to Active if currently in
// New state. Returns an error if the protocol is nil.
func (s *Session) SetProtocol(protocol core.Protocol) error {
	if protocol == nil {
		return fmt.Errorf("protocol is required")
	}

	baseURL := s.config.BaseURL
	if baseURL == "" {
		baseURL = protocol.BaseURL()
	}
	client, err := httpclient.NewClient(&httpclient.Config{
		BaseURL: baseURL,
		Timeout: s.config.Timeout,
		Logger:  &s.logger,
	})
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		_ = s.client.Close()
	}
	s.protocol = protocol
	s.client = client
	if s.state == StateNew {
		s.state = StateActive
	}
	s.lastUsed = time.Now()

	return nil
}

// Do executes an operation against the exchange and returns the raw body of
// a successful response. Rate limiting, circuit breaking, caching, signing and
// response classification are applied automatically.
func (s *Session) Do(ctx context.Context, op core.Operation, params core.Params) ([]byte, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, core.ErrClientClosed
	}
	if s.protocol == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("protocol not set")
	}
	protocol, client := s.protocol, s.client
	s.lastUsed = time.Now()
	s.mu.Unlock()

	req, err := protocol.BuildRequest(ctx, op, params)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	cacheable := req.CacheKey != "" && s.cache != nil && !req.RequireAuth()
	if cacheable {
		cached, err := s.cache.Get(ctx, req.CacheKey)
		if err != nil {
			s.logger.Warn().Err(err).Str("cache_key", req.CacheKey).Msg("cache get error")
		}
		if body, ok := cached.([]byte); ok {
			s.logger.Debug().Str("cache_key", req.CacheKey).Msg("cache hit")
			s.metrics.CacheHit(s.config.Exchange, op)
			return body, nil
		}
	}

	var signedWith string
	if req.RequireAuth() {
		creds, ok := s.acquireCredentials()
		if !ok {
			return nil, core.ErrNoCredentials
		}
		if err := protocol.SignRequest(req, creds); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
		signedWith = creds.APIKey
	}

	if s.circuitBreaker != nil && !s.circuitBreaker.Allow() {
		return nil, core.ErrCircuitBreakerOpen
	}

	bucket := ""
	if op.IsTrading() {
		bucket = ratelimit.BucketOrders
	}
	waitStart := time.Now()
	if err := s.rateLimiter.Wait(ctx, bucket, req.Weight); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	s.metrics.ObserveRateLimitWait(s.config.Exchange, bucket, time.Since(waitStart))

	start := time.Now()
	body, err := s.send(ctx, client, protocol, req)
	elapsed := time.Since(start)

	if s.circuitBreaker != nil && !errors.Is(err, context.Canceled) {
		s.circuitBreaker.Record(err)
	}
	if s.keys != nil && signedWith != "" {
		s.keys.Report(signedWith, err)
	}
	s.metrics.ObserveRequest(s.config.Exchange, op, err, elapsed)

	if err != nil {
		s.logger.Debug().Err(err).Str("operation", op.String()).Dur("elapsed", elapsed).Msg("request failed")
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, req.CacheKey, body, req.CacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("cache_key", req.CacheKey).Msg("cache set error")
		}
	}

	return body, nil
}

func (s *Session) send(ctx context.Context, client *httpclient.Client, protocol core.Protocol, req *core.Request) ([]byte, error) {
	resp, err := client.Do(ctx, httpclient.Call{
		Method:  req.Method,
		Path:    req.Path,
		Query:   req.QueryString(),
		Body:    req.Body,
		Headers: req.Headers,
	})
	if err != nil {
		return nil, s.transportError(err)
	}

	if err := protocol.CheckResponse(resp.StatusCode, resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		errType, code := core.StatusErrorCode(resp.StatusCode)
		return nil, core.NewExchangeError(s.config.Exchange, errType, resp.StatusCode, string(resp.Body)).
			WithCode(code)
	}
	return resp.Body, nil
}

func (s *Session) transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	errType := core.ErrorTypeNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		errType = core.ErrorTypeTimeout
	}
	return core.NewExchangeError(s.config.Exchange, errType, 0, err.Error()).
		WithCode(core.ErrCodeNetwork).
		WithRaw(err)
}

func (s *Session) acquireCredentials() (core.Credentials, bool) {
	if s.keys != nil {
		return s.keys.Acquire()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.credentials.HasSecret() {
		return core.Credentials{}, false
	}
	return *s.credentials, true
}

// APIKey returns the public key for endpoints that take it as a plain
// parameter instead of a signature.
func (s *Session) APIKey() (string, bool) {
	if s.keys != nil {
		if key := s.keys.Current(); key != nil {
			return key.Key, true
		}
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.credentials == nil || s.credentials.APIKey == "" {
		return "", false
	}
	return s.credentials.APIKey, true
}

// Close shuts down the session and releases resources.
// It clears the cache and transitions the session to Closed state.
// After closing, the session should not be used for further operations.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	if s.cache != nil {
		s.cache.Clear()
	}
	var err error
	if s.client != nil {
		err = s.client.Close()
	}

	s.state = StateClosed
	return err
}

// State returns the current lifecycle state of the session.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Protocol returns the exchange protocol assigned to the session.
// Returns nil if no protocol has been set.
func (s *Session) Protocol() core.Protocol {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocol
}

// Config returns the configuration used to create the session.
func (s *Session) Config() *core.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Logger returns the session logger.
func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

// CreatedAt returns the timestamp when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// LastUsed returns the timestamp of the last request executed by the session.
func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// SetCredentials updates the API credentials used for authenticated requests.
func (s *Session) SetCredentials(creds *core.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = creds
}

// ClearCache removes all cached items from the session's cache.
// If caching is disabled, this method does nothing.
func (s *Session) ClearCache() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// Breaker exposes the circuit breaker, or nil when disabled.
func (s *Session) Breaker() *circuitbreaker.Breaker {
	return s.circuitBreaker
}

// RateLimiter exposes the session rate limiter.
func (s *Session) RateLimiter() *ratelimit.RateLimiter {
	return s.rateLimiter
}
