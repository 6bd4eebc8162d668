package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_New(t *testing.T) {
	limiter := New(10, time.Second)

	assert.NotNil(t, limiter)
	assert.Equal(t, 0, limiter.Metrics().BucketCount)
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := New(5, time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(""), "request %d should be allowed", i+1)
	}

	assert.False(t, limiter.Allow(""), "request 6 should be blocked")
}

func TestRateLimiter_Wait(t *testing.T) {
	limiter := New(5, 100*time.Millisecond)

	for i := 0; i < 5; i++ {
		assert.NoError(t, limiter.Wait(context.Background(), "", 1))
	}
}

func TestRateLimiter_Wait_ContextCancellation(t *testing.T) {
	limiter := New(1, time.Second)

	assert.NoError(t, limiter.Wait(context.Background(), "", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx, "", 1))
}

func TestRateLimiter_OrdersBucket(t *testing.T) {
	limiter := New(100, time.Second)
	limiter.SetBucket(BucketOrders, 2, time.Second)

	assert.True(t, limiter.Allow(BucketOrders))
	assert.True(t, limiter.Allow(BucketOrders))
	assert.False(t, limiter.Allow(BucketOrders), "orders bucket should be exhausted")

	assert.True(t, limiter.Allow(""), "global limit should still have room")
	assert.True(t, limiter.Allow("unknown"), "unknown buckets only consult the global limit")
	assert.Equal(t, 1, limiter.Metrics().BucketCount)
}

func TestRateLimiter_BucketDenialRefundsGlobal(t *testing.T) {
	limiter := New(3, time.Hour)
	limiter.SetBucket(BucketOrders, 1, time.Hour)

	assert.True(t, limiter.Allow(BucketOrders))
	assert.False(t, limiter.Allow(BucketOrders))

	assert.True(t, limiter.Allow(""))
	assert.True(t, limiter.Allow(""))
	assert.False(t, limiter.Allow(""))
}

func TestRateLimiter_SetBucketReplacesLimit(t *testing.T) {
	limiter := New(100, time.Second)
	limiter.SetBucket(BucketOrders, 1, time.Hour)
	limiter.SetBucket(BucketOrders, 3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(BucketOrders), "request %d should be allowed", i+1)
	}
	assert.Equal(t, 1, limiter.Metrics().BucketCount)
}

func TestRateLimiter_WaitWeightAboveBurst(t *testing.T) {
	tests := []struct {
		name   string
		global int
		orders int
	}{
		{name: "orders bucket of one", global: 100, orders: 1},
		{name: "global limit of one", global: 1, orders: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.global, time.Hour)
			if tt.orders > 0 {
				limiter.SetBucket(BucketOrders, tt.orders, time.Hour)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			assert.NoError(t, limiter.Wait(ctx, BucketOrders, 2))
			assert.Error(t, limiter.Wait(ctx, BucketOrders, 2), "the single token is spent")
		})
	}
}

func TestRateLimiter_Metrics(t *testing.T) {
	limiter := New(2, time.Hour)

	limiter.Allow("")
	limiter.Allow("")
	limiter.Allow("")

	metrics := limiter.Metrics()
	assert.Equal(t, int64(3), metrics.TotalRequests)
	assert.Equal(t, int64(2), metrics.AllowedRequests)
	assert.Equal(t, int64(1), metrics.DeniedRequests)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	limiter := New(100, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Wait(context.Background(), BucketOrders, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), limiter.Metrics().AllowedRequests)
}
