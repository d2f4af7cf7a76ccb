package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// Limiter is a fixed-window counter shared by every API instance. The first
// hit in a window creates the key with the window as its expiry.
type Limiter struct {
	client *Client
	limit  int
	window time.Duration
}

func (c *Client) NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{client: c, limit: limit, window: window}
}

// Allow counts one hit for key. When the limit is exceeded it reports how
// long until the window resets. INCR and the expiry go out in one MULTI, so a
// counter never exists without its window. EXPIRE NX needs Redis 7.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := keyPrefix + key

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)

	_, err := l.client.redisdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		pttl = pipe.PTTL(ctx, k)
		return nil
	})

	if err != nil {
		return false, 0, fmt.Errorf("rate limit: %w", err)
	}

	if incr.Val() <= int64(l.limit) {
		return true, 0, nil
	}

	ttl := pttl.Val()
	if ttl <= 0 {
		ttl = l.window
	}

	return false, ttl, nil
}
