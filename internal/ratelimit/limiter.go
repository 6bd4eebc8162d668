package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// BucketOrders is the bucket consulted for order placement and cancellation.
const BucketOrders = "orders"

// RateLimiter throttles outbound requests through one global token bucket
// and, optionally, a named bucket stacked on top of it. Unknown bucket names
// only consult the global limit.
type RateLimiter struct {
	global  *rate.Limiter
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	metrics *Metrics
}

// Metrics tracks statistics about rate limiter usage.
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	deniedRequests  atomic.Int64
	waitNanos       atomic.Int64
}

// New creates a new RateLimiter with the specified number of requests allowed per period.
func New(requests int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		global:  rate.NewLimiter(perSecond(requests, period), requests),
		buckets: make(map[string]*rate.Limiter),
		metrics: &Metrics{},
	}
}

func perSecond(requests int, period time.Duration) rate.Limit {
	return rate.Limit(float64(requests) / period.Seconds())
}

// SetBucket installs or replaces the limit of a named bucket.
func (r *RateLimiter) SetBucket(name string, requests int, period time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets[name] = rate.NewLimiter(perSecond(requests, period), requests)
}

func (r *RateLimiter) bucket(name string) *rate.Limiter {
	if name == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets[name]
}

// Wait blocks until both the global limit and the named bucket allow a
// request of the given weight, or the context is done. A weight above a
// bucket's burst is capped at the burst.
func (r *RateLimiter) Wait(ctx context.Context, bucket string, weight int) error {
	if weight < 1 {
		weight = 1
	}
	r.metrics.totalRequests.Add(1)
	start := time.Now()
	defer func() { r.metrics.waitNanos.Add(int64(time.Since(start))) }()

	if err := waitN(ctx, r.global, weight); err != nil {
		r.metrics.deniedRequests.Add(1)
		return fmt.Errorf("global limit: %w", err)
	}
	if b := r.bucket(bucket); b != nil {
		if err := waitN(ctx, b, weight); err != nil {
			r.metrics.deniedRequests.Add(1)
			return fmt.Errorf("%s limit: %w", bucket, err)
		}
	}
	r.metrics.allowedRequests.Add(1)
	return nil
}

func waitN(ctx context.Context, l *rate.Limiter, weight int) error {
	return l.WaitN(ctx, min(weight, l.Burst()))
}

// Allow reports whether a request may go out immediately. Tokens are only
// consumed when every applicable limit allows it.
func (r *RateLimiter) Allow(bucket string) bool {
	r.metrics.totalRequests.Add(1)
	now := time.Now()

	global := r.global.ReserveN(now, 1)
	if !global.OK() || global.DelayFrom(now) > 0 {
		global.CancelAt(now)
		r.metrics.deniedRequests.Add(1)
		return false
	}
	if b := r.bucket(bucket); b != nil {
		res := b.ReserveN(now, 1)
		if !res.OK() || res.DelayFrom(now) > 0 {
			res.CancelAt(now)
			global.CancelAt(now)
			r.metrics.deniedRequests.Add(1)
			return false
		}
	}
	r.metrics.allowedRequests.Add(1)
	return true
}

// SetLimit updates the global rate limit to the specified requests per period.
func (r *RateLimiter) SetLimit(requests int, period time.Duration) {
	r.global.SetLimit(perSecond(requests, period))
	r.global.SetBurst(requests)
}

// Metrics returns a snapshot of the current rate limiter statistics.
func (r *RateLimiter) Metrics() MetricsSnapshot {
	r.mu.RLock()
	buckets := len(r.buckets)
	r.mu.RUnlock()
	return MetricsSnapshot{
		TotalRequests:   r.metrics.totalRequests.Load(),
		AllowedRequests: r.metrics.allowedRequests.Load(),
		DeniedRequests:  r.metrics.deniedRequests.Load(),
		TotalWait:       time.Duration(r.metrics.waitNanos.Load()),
		BucketCount:     buckets,
	}
}

// MetricsSnapshot is a point-in-time capture of rate limiter statistics.
type MetricsSnapshot struct {
	// TotalRequests is the total number of rate limit checks performed.
	TotalRequests int64
	// AllowedRequests is the number of requests that were allowed.
	AllowedRequests int64
	// DeniedRequests is the number of requests that were denied.
	DeniedRequests int64
	// TotalWait is the cumulative time spent blocked in Wait.
	TotalWait time.Duration
	// BucketCount is the number of named buckets configured.
	BucketCount int
}
