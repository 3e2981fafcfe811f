package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

// RedisLimiter shares the rate window between every process using the same key.
// When Redis cannot be reached it degrades to the in-process fallback.
type RedisLimiter struct {
	client   redis.Cmdable
	key      string
	window   time.Duration
	fallback Limiter
}

func NewRedisLimiter(client redis.Cmdable, key string, window time.Duration, fallback Limiter) *RedisLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		client:   client,
		key:      key,
		window:   window,
		fallback: fallback,
	}
}

func (r *RedisLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	// The key only exists while a window is open, so SET NX is the compare-and-swap.
	ok, err := r.client.SetNX(ctx, r.key, time.Now().UnixMilli(), r.window).Result()
	if err != nil {
		slog.Warn("Redis rate limiter unavailable, using local limiter", "key", r.key, "error", err)
		return r.fallback.Allow()
	}
	if !ok {
		slog.Info("Report rate limiting triggered, skipping report", "key", r.key)
	}
	return ok
}
