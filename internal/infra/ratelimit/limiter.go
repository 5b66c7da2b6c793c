package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Result of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// CounterStore tracks fixed-window counters keyed by identity. Incr returns
// the count after incrementing and the time the current window resets.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, reset time.Time, err error)
}

// Limiter applies a fixed-window limit per identity. Store failures fail
// open: a broken counter backend must not take the API down.
type Limiter struct {
	store CounterStore
	log   *zap.Logger
}

func NewLimiter(store CounterStore, log *zap.Logger) *Limiter {
	return &Limiter{store: store, log: log}
}

func (l *Limiter) Check(ctx context.Context, identity string, max int, window time.Duration) Result {
	count, reset, err := l.store.Incr(ctx, identity, window)
	if err != nil {
		l.log.Warn("rate limit store unavailable, allowing request",
			zap.String("identity", identity), zap.Error(err))
		return Result{Allowed: true, Limit: max, Remaining: max, ResetTime: time.Now().Add(window)}
	}

	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(max),
		Limit:     max,
		Remaining: remaining,
		ResetTime: reset,
	}
}
