package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// needs a live redis; set TEST_REDIS_ADDR to run
func newTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	c := New(Config{Addr: addr})
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Ping(context.Background()))

	return c
}

func TestLimiter_FixedWindow(t *testing.T) {
	c := newTestClient(t)
	l := c.NewLimiter(3, 2*time.Second)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d should pass", i+1)
	}

	ok, retry, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, 2*time.Second)

	other, _, err := l.Allow(ctx, "test:"+uuid.NewString())
	require.NoError(t, err)
	assert.True(t, other)
}

func TestLimiter_FirstHitSetsWindow(t *testing.T) {
	c := newTestClient(t)
	l := c.NewLimiter(5, time.Minute)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	ok, _, err := l.Allow(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := c.redisdb.PTTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	// later hits do not push the window out
	time.Sleep(1100 * time.Millisecond)
	_, _, err = l.Allow(ctx, key)
	require.NoError(t, err)

	after, err := c.redisdb.PTTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Less(t, after, ttl)
}

func TestLimiter_ErrorsWhenRedisDown(t *testing.T) {
	c := New(Config{Addr: "127.0.0.1:1"})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, _, err := c.NewLimiter(1, time.Second).Allow(ctx, "k")
	assert.Error(t, err)
}
