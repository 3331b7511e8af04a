package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) *Redis {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	c := NewRedis(client, time.Minute, nil)
	c.prefix = "test:" + uuid.NewString() + ":wallet:"
	return c
}

func TestRedisRoundTrip(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()
	l := &countingLoader{points: 12}

	w, err := c.Fetch(ctx, 1, l.load)
	require.NoError(t, err)
	require.True(t, w.Points.Equal(decimal.NewFromInt(12)))

	l.points = 99
	w, err = c.Fetch(ctx, 1, l.load)
	require.NoError(t, err)
	require.True(t, w.Points.Equal(decimal.NewFromInt(12)))
	require.Equal(t, 1, l.calls)

	c.Invalidate(ctx, 1)
	w, err = c.Fetch(ctx, 1, l.load)
	require.NoError(t, err)
	require.True(t, w.Points.Equal(decimal.NewFromInt(99)))
	require.Equal(t, 2, l.calls)
}

func TestRedisUnavailableFallsBackToLoader(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedis(client, time.Minute, nil)
	l := &countingLoader{points: 3}

	w, err := c.Fetch(context.Background(), 1, l.load)
	require.NoError(t, err)
	require.True(t, w.Points.Equal(decimal.NewFromInt(3)))
	c.Invalidate(context.Background(), 1)
}
