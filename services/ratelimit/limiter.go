package ratelimit

import (
	"context"
	"time"

	"loyaltyhub/pkg/rediskey"
)

// Limiter applies a fixed-window limit per actor key within one scope.
// Separate Limiter values cover the HTTP boundary and the scan pipeline.
type Limiter struct {
	store  Store
	scope  string
	limit  int64
	window time.Duration
}

func NewLimiter(store Store, scope string, limit int64, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		scope:  scope,
		limit:  limit,
		window: window,
	}
}

// Allow counts the hit and reports whether it fits the window. The hit at
// exactly the limit is still allowed; the one after is the first rejected.
func (l *Limiter) Allow(ctx context.Context, actorKey string) (bool, int64, time.Time, error) {
	if l.limit <= 0 {
		return true, 0, time.Now().Add(l.window), nil
	}

	count, resetAt, err := l.store.Incr(ctx, rediskey.BuildRateLimitKey(l.scope, actorKey), l.window)
	if err != nil {
		return false, 0, time.Time{}, err
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= l.limit, remaining, resetAt, nil
}

func (l *Limiter) Limit() int64 {
	return l.limit
}

func (l *Limiter) Window() time.Duration {
	return l.window
}
