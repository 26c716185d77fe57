package util

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RebuildLimiter caps how often watch mode reruns the pipeline. One token is
// one rerun; the bucket holds a single token so bursts collapse into one run.
type RebuildLimiter struct {
	inner   *rate.Limiter
	delayed atomic.Int64
}

// NewRebuildLimiter returns nil when perSecond is not positive, meaning
// reruns are not throttled.
func NewRebuildLimiter(perSecond float64) *RebuildLimiter {
	if perSecond <= 0 {
		return nil
	}
	return &RebuildLimiter{inner: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until the next rerun may start.
func (l *RebuildLimiter) Wait(ctx context.Context) error {
	if l.inner.Allow() {
		return nil
	}
	l.delayed.Add(1)
	return l.inner.Wait(ctx)
}

// Delayed reports how many reruns had to wait for a token.
func (l *RebuildLimiter) Delayed() int64 {
	return l.delayed.Load()
}
