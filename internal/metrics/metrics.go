package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"unifex/pkg/core"
)

// Recorder exposes request level instrumentation. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	cacheHits      *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	rateLimitWait  *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors with reg.
// Registering twice against the same registry reuses the existing collectors.
func New(namespace string, reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of exchange requests by operation and outcome",
			},
			[]string{"exchange", "operation", "outcome"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Latency of exchange requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"exchange", "operation"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Responses served from the session cache",
			},
			[]string{"exchange", "operation"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"exchange"},
		),
		rateLimitWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_limit_wait_seconds",
				Help:      "Time spent waiting for rate limit tokens",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"exchange", "bucket"},
		),
	}

	r.requestsTotal = register(reg, r.requestsTotal)
	r.requestLatency = register(reg, r.requestLatency)
	r.cacheHits = register(reg, r.cacheHits)
	r.breakerState = register(reg, r.breakerState)
	r.rateLimitWait = register(reg, r.rateLimitWait)
	return r
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// Outcome turns an error into a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var exErr *core.ExchangeError
	if errors.As(err, &exErr) {
		return exErr.Type.String()
	}
	return "error"
}

// ObserveRequest records one completed exchange call.
func (r *Recorder) ObserveRequest(exchange string, op core.Operation, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requestsTotal.WithLabelValues(exchange, op.String(), Outcome(err)).Inc()
	r.requestLatency.WithLabelValues(exchange, op.String()).Observe(elapsed.Seconds())
}

// CacheHit records a response served without network I/O.
func (r *Recorder) CacheHit(exchange string, op core.Operation) {
	if r == nil {
		return
	}
	r.cacheHits.WithLabelValues(exchange, op.String()).Inc()
}

// SetBreakerState publishes the numeric breaker state.
func (r *Recorder) SetBreakerState(exchange string, state int) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(exchange).Set(float64(state))
}

// ObserveRateLimitWait records how long a request waited for tokens.
func (r *Recorder) ObserveRateLimitWait(exchange, bucket string, waited time.Duration) {
	if r == nil {
		return
	}
	if bucket == "" {
		bucket = "global"
	}
	r.rateLimitWait.WithLabelValues(exchange, bucket).Observe(waited.Seconds())
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
