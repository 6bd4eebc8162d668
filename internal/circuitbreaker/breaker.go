package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"

	"unifex/pkg/core"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
	// OnStateChange is called outside the breaker lock after every transition.
	OnStateChange func(from, to State) `json:"-"`
}

// Breaker trips after consecutive service failures. Business rejections such
// as insufficient funds or a bad signature prove the exchange is reachable
// and count as successes.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	failThreshold    int
	successThreshold int
	timeout          time.Duration
	onStateChange    func(from, to State)
	now              func() time.Time
	metrics          *Metrics
}

type Metrics struct {
	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	rejected        atomic.Int64
	stateChanges    atomic.Int32
}

func New(config Config) *Breaker {
	return &Breaker{
		state:            StateClosed,
		failThreshold:    config.FailThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		onStateChange:    config.OnStateChange,
		now:              time.Now,
		metrics:          &Metrics{},
	}
}

// Allow reports whether a request may proceed. An open breaker moves to
// half-open once the timeout has elapsed since it tripped.
func (b *Breaker) Allow() bool {
	b.metrics.totalRequests.Add(1)

	b.mu.Lock()
	from := b.state
	allowed := true
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) >= b.timeout {
			b.setState(StateHalfOpen)
		} else {
			allowed = false
		}
	}
	to := b.state
	b.mu.Unlock()

	if !allowed {
		b.metrics.rejected.Add(1)
	}
	b.notify(from, to)
	return allowed
}

// Record feeds the outcome of a request into the breaker.
func (b *Breaker) Record(err error) {
	failed := core.IsServiceError(err)
	if failed {
		b.metrics.failedRequests.Add(1)
	} else {
		b.metrics.successRequests.Add(1)
	}

	b.mu.Lock()
	from := b.state
	switch b.state {
	case StateClosed:
		if failed {
			b.failures++
			if b.failures >= b.failThreshold {
				b.trip()
			}
		} else {
			b.failures = 0
		}
	case StateHalfOpen:
		if failed {
			b.trip()
		} else {
			b.successes++
			if b.successes >= b.successThreshold {
				b.setState(StateClosed)
			}
		}
	case StateOpen:
		// A request admitted before the breaker tripped; its outcome is stale.
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.setState(StateOpen)
}

func (b *Breaker) setState(s State) {
	b.state = s
	b.failures = 0
	b.successes = 0
	b.metrics.stateChanges.Add(1)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.setState(StateClosed)
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Successes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.successes
}

func (b *Breaker) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:    b.metrics.totalRequests.Load(),
		SuccessRequests:  b.metrics.successRequests.Load(),
		FailedRequests:   b.metrics.failedRequests.Load(),
		RejectedRequests: b.metrics.rejected.Load(),
		StateChanges:     b.metrics.stateChanges.Load(),
		CurrentState:     b.State().String(),
	}
}

type MetricsSnapshot struct {
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	RejectedRequests int64
	StateChanges     int32
	CurrentState     string
}
