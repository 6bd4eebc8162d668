package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(&Config{BaseURL: "", Timeout: time.Second})
	assert.Error(t, err)

	_, err = NewClient(&Config{BaseURL: "http://localhost", Timeout: 0})
	assert.Error(t, err)
}

func TestClient_DoGet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v3/order_book", r.URL.Path)
		assert.Equal(t, "limit=10&symbol=btc_usdt", r.URL.RawQuery)
		assert.Equal(t, "key", r.Header.Get("ACCESS-KEY"))
		assert.NotEmpty(t, r.Header.Get(requestIDHeader))
		_, _ = w.Write([]byte(`{"code":0}`))
	})

	resp, err := client.Do(context.Background(), Call{
		Method:  http.MethodGet,
		Path:    "/v3/order_book",
		Query:   "limit=10&symbol=btc_usdt",
		Headers: map[string]string{"ACCESS-KEY": "key"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"code":0}`, string(resp.Body))
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_DoPostForm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, contentTypeForm, r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "amount=1&symbol=btc_usdt&type=buy", string(body))
		_, _ = w.Write([]byte(`{"code":0,"order_id":"1"}`))
	})

	resp, err := client.Do(context.Background(), Call{
		Method: http.MethodPost,
		Path:   "/v3/spot/order/new",
		Body:   "amount=1&symbol=btc_usdt&type=buy",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_DoErrorStatusIsNotAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	})

	resp, err := client.Do(context.Background(), Call{Method: http.MethodGet, Path: "/v3/time"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "bad gateway", string(resp.Body))
}

func TestClient_DoNoRetry(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Do(context.Background(), Call{Method: http.MethodGet, Path: "/v3/time"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_Closed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Do(context.Background(), Call{Method: http.MethodGet, Path: "/"})
	assert.Error(t, err)
}
