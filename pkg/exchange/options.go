package exchange

import (
	"time"

	"unifex/pkg/core"
)

type Option func(*Options)

type Options struct {
	Limit     int
	Interval  string
	StartTime time.Time
	EndTime   time.Time
	// MarketType is nil when the caller leaves the choice to the client's config.
	MarketType *core.MarketType
}

func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

func WithInterval(interval string) Option {
	return func(o *Options) {
		o.Interval = interval
	}
}

// WithSince restricts results to those at or after t.
func WithSince(t time.Time) Option {
	return func(o *Options) {
		o.StartTime = t
	}
}

func WithTimeRange(start, end time.Time) Option {
	return func(o *Options) {
		o.StartTime = start
		o.EndTime = end
	}
}

func WithMarketType(mt core.MarketType) Option {
	return func(o *Options) {
		o.MarketType = &mt
	}
}

func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MarketTypeOr returns the requested market type, or fallback when none was given.
func (o *Options) MarketTypeOr(fallback core.MarketType) core.MarketType {
	if o.MarketType != nil {
		return *o.MarketType
	}
	return fallback
}
