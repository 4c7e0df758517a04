package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = 60 * time.Second

// Limiter is a sliding-window per-user rate limiter backed by Redis, shared
// across relay instances.
type Limiter struct {
	rdb   *redis.Client
	limit int
}

func NewLimiter(rdb *redis.Client, perMinute int) *Limiter {
	return &Limiter{rdb: rdb, limit: perMinute}
}

// Allow records one event for the user and reports whether it fits in the
// window. The current count is returned either way.
func (l *Limiter) Allow(ctx context.Context, userID string) (int, bool, error) {
	rateKey := fmt.Sprintf("rate:%s", userID)
	now := time.Now().UnixMilli()
	windowStart := now - window.Milliseconds()

	l.rdb.ZRemRangeByScore(ctx, rateKey, "0", fmt.Sprintf("%d", windowStart))

	count, err := l.rdb.ZCard(ctx, rateKey).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if int(count) >= l.limit {
		return int(count), false, nil
	}

	l.rdb.ZAdd(ctx, rateKey, redis.Z{
		Score:  float64(now),
		Member: fmt.Sprintf("%d", now),
	})
	l.rdb.Expire(ctx, rateKey, window)

	return int(count) + 1, true, nil
}

func (l *Limiter) Limit() int {
	return l.limit
}
