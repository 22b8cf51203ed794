package redisad

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"review_board/internal/adapters/observability"
)

// Limiter is a fixed-window per-key counter for review submissions. Redis
// failures fail open: the store's version check is the correctness boundary,
// the throttle is only abuse protection.
type Limiter struct {
	c      *redis.Client
	limit  int
	window time.Duration
}

func NewLimiter(addr, pass string, db, perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &Limiter{
		c:      redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		limit:  perMinute,
		window: time.Minute,
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "throttle:submit:" + key
	n, err := l.c.Incr(ctx, k).Result()
	if err != nil {
		observability.ObserveThrottle("error")
		return true, err
	}
	if n == 1 {
		if err := l.c.Expire(ctx, k, l.window).Err(); err != nil {
			observability.ObserveThrottle("error")
			return true, err
		}
	}
	if n > int64(l.limit) {
		observability.ObserveThrottle("limited")
		return false, nil
	}
	observability.ObserveThrottle("allowed")
	return true, nil
}
