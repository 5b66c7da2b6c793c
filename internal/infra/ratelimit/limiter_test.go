package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func TestLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit then rejects", func(t *testing.T) {
		l := NewLimiter(NewMemoryStore(), zap.NewNop())

		for i := 0; i < 5; i++ {
			res := l.Check(ctx, "user:1", 5, time.Minute)
			assert.True(t, res.Allowed, "request %d", i)
			assert.Equal(t, 5, res.Limit)
			assert.Equal(t, 5-(i+1), res.Remaining)
		}

		res := l.Check(ctx, "user:1", 5, time.Minute)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
		assert.True(t, res.ResetTime.After(time.Now()))
	})

	t.Run("identities are independent", func(t *testing.T) {
		l := NewLimiter(NewMemoryStore(), zap.NewNop())

		for i := 0; i < 3; i++ {
			l.Check(ctx, "user:1", 3, time.Minute)
		}
		assert.False(t, l.Check(ctx, "user:1", 3, time.Minute).Allowed)
		assert.True(t, l.Check(ctx, "user:2", 3, time.Minute).Allowed)
		assert.True(t, l.Check(ctx, "ip:203.0.113.5", 3, time.Minute).Allowed)
	})

	t.Run("window expiry resets the counter", func(t *testing.T) {
		l := NewLimiter(NewMemoryStore(), zap.NewNop())

		window := 30 * time.Millisecond
		assert.True(t, l.Check(ctx, "user:1", 1, window).Allowed)
		assert.False(t, l.Check(ctx, "user:1", 1, window).Allowed)

		time.Sleep(window + 10*time.Millisecond)
		assert.True(t, l.Check(ctx, "user:1", 1, window).Allowed)
	})

	t.Run("store failure fails open", func(t *testing.T) {
		l := NewLimiter(failingStore{}, zap.NewNop())

		res := l.Check(ctx, "user:1", 5, time.Minute)
		assert.True(t, res.Allowed)
		assert.Equal(t, 5, res.Remaining)
	})
}

func TestMemoryStoreIncr(t *testing.T) {
	s := NewMemoryStore()

	n1, reset1, err := s.Incr(context.Background(), "k", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n1)

	n2, reset2, err := s.Incr(context.Background(), "k", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n2)
	assert.Equal(t, reset1, reset2)
}
