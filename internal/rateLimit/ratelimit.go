package rateLimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/studio-booking-cart/internal/observability"
)

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	client *redis.Client
	logger observability.Logger
}

func NewRateLimiter(client *redis.Client, logger observability.Logger) *RateLimiter {
	return &RateLimiter{client: client, logger: logger}
}

// Allow fails open: a limiter outage must not take the cart down with it.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, period)

	_, err := pipe.Exec(ctx)
	if err != nil {
		rl.logger.WithError(err).Warn("rate limiter unavailable")
		return true
	}

	if incr.Val() > int64(rate) {
		observability.RateLimitExceeded.Inc()
		return false
	}
	return true
}
