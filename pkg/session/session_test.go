package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifex/internal/circuitbreaker"
	"unifex/internal/keyring"
	"unifex/internal/metrics"
	"unifex/pkg/core"
)

type MockProtocol struct {
	name              string
	version           string
	baseURL           string
	buildRequestFunc  func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error)
	checkResponseFunc func(statusCode int, body []byte) error
	signRequestFunc   func(req *core.Request, creds core.Credentials) error
	supportedOps      []core.Operation
	rateLimits        core.RateLimitConfig
}

func (m *MockProtocol) Name() string {
	return m.name
}

func (m *MockProtocol) Version() string {
	return m.version
}

func (m *MockProtocol) BaseURL() string {
	if m.baseURL == "" {
		return "https://api.mock.com"
	}
	return m.baseURL
}

func (m *MockProtocol) BuildRequest(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
	if m.buildRequestFunc != nil {
		return m.buildRequestFunc(ctx, op, params)
	}
	return core.NewRequest("GET", "/test"), nil
}

func (m *MockProtocol) CheckResponse(statusCode int, body []byte) error {
	if m.checkResponseFunc != nil {
		return m.checkResponseFunc(statusCode, body)
	}
	return nil
}

func (m *MockProtocol) SignRequest(req *core.Request, creds core.Credentials) error {
	if m.signRequestFunc != nil {
		return m.signRequestFunc(req, creds)
	}
	req.SetHeader("X-Key", creds.APIKey)
	return nil
}

func (m *MockProtocol) SupportedOperations() []core.Operation {
	return m.supportedOps
}

func (m *MockProtocol) RateLimits() core.RateLimitConfig {
	return m.rateLimits
}

func newServerSession(t *testing.T, handler http.HandlerFunc, mutate func(*core.Config), opts ...Option) (*Session, *MockProtocol) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := core.DefaultConfig("mock")
	config.BaseURL = server.URL
	if mutate != nil {
		mutate(config)
	}
	s, err := New(config, opts...)
	require.NoError(t, err)

	protocol := &MockProtocol{name: "mock"}
	require.NoError(t, s.SetProtocol(protocol))
	t.Cleanup(func() { _ = s.Close() })
	return s, protocol
}

func TestNewSession(t *testing.T) {
	tests := []struct {
		name    string
		config  *core.Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  core.DefaultConfig("test"),
			wantErr: false,
		},
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name: "invalid config - empty exchange",
			config: &core.Config{
				APIVersion:        "v3",
				Timeout:           10 * time.Second,
				RateLimitRequests: 1200,
				RateLimitPeriod:   time.Minute,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := New(tt.config)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, session)
				return
			}

			assert.NoError(t, err)
			assert.NotNil(t, session)
			assert.Equal(t, StateNew, session.State())
			assert.False(t, session.CreatedAt().IsZero())
			assert.False(t, session.LastUsed().IsZero())
			assert.NotNil(t, session.RateLimiter())
			assert.NotNil(t, session.Breaker())
		})
	}
}

func TestSession_SetProtocol(t *testing.T) {
	session, err := New(core.DefaultConfig("test"))
	require.NoError(t, err)

	protocol := &MockProtocol{name: "mock", version: "v3"}

	require.NoError(t, session.SetProtocol(protocol))
	assert.Equal(t, StateActive, session.State())
	assert.Equal(t, protocol, session.Protocol())
}

func TestSession_SetProtocol_Nil(t *testing.T) {
	session, err := New(core.DefaultConfig("test"))
	require.NoError(t, err)

	assert.Error(t, session.SetProtocol(nil))
	assert.Equal(t, StateNew, session.State())
}

func TestSession_Close(t *testing.T) {
	session, err := New(core.DefaultConfig("test"))
	require.NoError(t, err)
	require.NoError(t, session.SetProtocol(&MockProtocol{name: "mock"}))

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, StateClosed, session.State())

	_, err = session.Do(context.Background(), core.OpGetTicker, nil)
	assert.ErrorIs(t, err, core.ErrClientClosed)
}

func TestSession_Do_NoProtocol(t *testing.T) {
	session, err := New(core.DefaultConfig("test"))
	require.NoError(t, err)

	_, err = session.Do(context.Background(), core.OpGetTicker, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "protocol not set")
}

func TestSession_Do_BuildRequestError(t *testing.T) {
	session, err := New(core.DefaultConfig("test"))
	require.NoError(t, err)

	protocol := &MockProtocol{
		name: "mock",
		buildRequestFunc: func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
			return nil, errors.New("build error")
		},
	}
	require.NoError(t, session.SetProtocol(protocol))

	_, err = session.Do(context.Background(), core.OpGetTicker, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "build request")
}

func TestSession_Do_ReturnsBody(t *testing.T) {
	session, protocol := newServerSession(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/trades", r.URL.Path)
		assert.Equal(t, "limit=5&symbol=btc_usdt", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"code":0,"data":[]}`))
	}, nil)
	protocol.buildRequestFunc = func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
		return core.NewRequest("GET", "/v3/trades").SetQueryParams(params), nil
	}

	body, err := session.Do(context.Background(), core.OpGetTrades, core.Params{"symbol": "btc_usdt", "limit": 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":0,"data":[]}`, string(body))
}

func TestSession_Do_CheckResponseError(t *testing.T) {
	session, protocol := newServerSession(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":20011}`))
	}, nil)
	protocol.checkResponseFunc = func(statusCode int, body []byte) error {
		return core.NewExchangeErrorWithCode("mock", core.ErrorTypeInsufficientFunds, statusCode, "20011", "Insufficient balance")
	}

	_, err := session.Do(context.Background(), core.OpGetBalance, nil)
	require.Error(t, err)
	assert.Equal(t, core.ErrorTypeInsufficientFunds, core.ErrorTypeOf(err))
	assert.Equal(t, circuitbreaker.StateClosed, session.Breaker().State())
}

func TestSession_Do_HTTPStatusError(t *testing.T) {
	session, _ := newServerSession(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}, nil)

	_, err := session.Do(context.Background(), core.OpGetTicker, nil)
	require.Error(t, err)
	assert.True(t, core.IsRateLimitError(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeRateLimit))
}

func TestSession_Do_CachesPublicResponses(t *testing.T) {
	var hits atomic.Int32
	reg := prometheus.NewRegistry()
	session, protocol := newServerSession(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"code":0}`))
	}, func(c *core.Config) {
		c.CacheTTL = time.Minute
	}, WithMetrics(metrics.New("test", reg)))
	protocol.buildRequestFunc = func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
		return core.NewRequest("GET", "/v3/markets").SetCache("markets", 0), nil
	}

	for range 3 {
		_, err := session.Do(context.Background(), core.OpGetMarkets, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	session.ClearCache()
	_, err := session.Do(context.Background(), core.OpGetMarkets, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSession_Do_PrivateNeverCached(t *testing.T) {
	var hits atomic.Int32
	session, protocol := newServerSession(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"code":0}`))
	}, func(c *core.Config) {
		c.Credentials = &core.Credentials{APIKey: "k", SecretKey: "s"}
	})
	protocol.buildRequestFunc = func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
		return core.NewRequest("GET", "/v3/spot/assets").SetAccess(core.AccessPrivate).SetCache("assets", 0), nil
	}

	for range 2 {
		_, err := session.Do(context.Background(), core.OpGetBalance, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestSession_Do_PrivateWithoutCredentials(t *testing.T) {
	var hits atomic.Int32
	session, protocol := newServerSession(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, nil)
	protocol.buildRequestFunc = func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
		return core.NewRequest("GET", "/v3/spot/assets").SetAccess(core.AccessPrivate), nil
	}

	_, err := session.Do(context.Background(), core.OpGetBalance, nil)
	assert.ErrorIs(t, err, core.ErrNoCredentials)
	assert.Equal(t, int32(0), hits.Load())
}

func TestSession_Do_SignsWithKeyRing(t *testing.T) {
	var seen []string
	ring := keyring.NewKeyRing([]*keyring.APIKey{
		{ID: "a", Key: "key-a", Secret: "sa"},
		{ID: "b", Key: "key-b", Secret: "sb"},
	}, keyring.RotationRoundRobin)

	session, protocol := newServerSession(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("X-Key"))
		_, _ = w.Write([]byte(`{"code":0}`))
	}, nil, WithKeyRing(ring))
	protocol.buildRequestFunc = func(ctx context.Context, op core.Operation, params core.Params) (*core.Request, error) {
		return core.NewRequest("GET", "/v3/spot/assets").SetAccess(core.AccessPrivate), nil
	}

	for range 3 {
		_, err := session.Do(context.Background(), core.OpGetBalance, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"key-a", "key-b", "key-a"}, seen)

	key, ok := session.APIKey()
	assert.True(t, ok)
	assert.Equal(t, "key-b", key)
}

func TestSession_Do_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	session, _ := newServerSession(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, func(c *core.Config) {
		c.CircuitBreakerFailThreshold = 2
	})

	for range 2 {
		_, err := session.Do(context.Background(), core.OpGetTicker, nil)
		require.Error(t, err)
	}

	_, err := session.Do(context.Background(), core.OpGetTicker, nil)
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSession_Do_NetworkError(t *testing.T) {
	config := core.DefaultConfig("mock")
	config.BaseURL = "http://127.0.0.1:1"
	session, err := New(config)
	require.NoError(t, err)
	require.NoError(t, session.SetProtocol(&MockProtocol{name: "mock"}))

	_, err = session.Do(context.Background(), core.OpGetServerTime, nil)
	require.Error(t, err)
	assert.True(t, core.IsNetworkError(err) || core.IsTimeoutError(err))
}

func TestSession_APIKey(t *testing.T) {
	session, err := New(core.DefaultConfig("test"))
	require.NoError(t, err)

	_, ok := session.APIKey()
	assert.False(t, ok)

	session.SetCredentials(&core.Credentials{APIKey: "public"})
	key, ok := session.APIKey()
	assert.True(t, ok)
	assert.Equal(t, "public", key)
}

func TestCache_GetSet(t *testing.T) {
	cache := NewCache(1 * time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", "value1", 0))

	val, err := cache.Get(ctx, "key1")
	assert.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestCache_Get_NotExists(t *testing.T) {
	cache := NewCache(1 * time.Second)

	val, err := cache.Get(context.Background(), "nonexistent")
	assert.NoError(t, err)
	assert.Nil(t, val)
}

func TestCache_Expiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := NewCache(time.Second)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", "value1", 0))
	now = now.Add(2 * time.Second)

	val, err := cache.Get(ctx, "key1")
	assert.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, cache.Set(ctx, "key2", "value2", 0))
	assert.Equal(t, 1, cache.Len(), "expired entries are swept on write")
}

func TestCache_Delete(t *testing.T) {
	cache := NewCache(1 * time.Second)
	ctx := context.Background()

	_ = cache.Set(ctx, "key1", "value1", 0)
	require.NoError(t, cache.Delete(ctx, "key1"))

	val, err := cache.Get(ctx, "key1")
	assert.NoError(t, err)
	assert.Nil(t, val)
}

func TestCache_Clear(t *testing.T) {
	cache := NewCache(1 * time.Second)
	ctx := context.Background()

	_ = cache.Set(ctx, "key1", "value1", 0)
	_ = cache.Set(ctx, "key2", "value2", 0)

	cache.Clear()

	assert.Equal(t, 0, cache.Len())
}
