//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"metronix/internal/config"
	"metronix/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return NewRedisCache(client, observability.NewNopLogger())
}

func TestRedisCache_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := newIntegrationCache(t)

	type dashboard struct {
		Total int `json:"total"`
	}

	require.NoError(t, c.Set(ctx, "reports:dashboard", dashboard{Total: 3}, time.Minute))
	require.NoError(t, c.Set(ctx, "reports:analytics:30", dashboard{Total: 9}, time.Minute))
	require.NoError(t, c.Set(ctx, "other:key", dashboard{Total: 1}, time.Minute))

	var got dashboard
	hit, err := c.Get(ctx, "reports:dashboard", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, got.Total)

	require.NoError(t, c.DeletePrefix(ctx, "reports:"))

	hit, err = c.Get(ctx, "reports:analytics:30", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = c.Get(ctx, "other:key", &got)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestRedisCache_IncrCounter(t *testing.T) {
	ctx := context.Background()
	c := newIntegrationCache(t)

	var gen int64
	hit, err := c.Get(ctx, "reportgen", &gen)
	require.NoError(t, err)
	assert.False(t, hit)

	n, err := c.Incr(ctx, "reportgen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "reportgen")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	hit, err = c.Get(ctx, "reportgen", &gen)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(2), gen)
}

func TestRedisCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := newIntegrationCache(t)

	require.NoError(t, c.Set(ctx, "reports:short", 1, 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)

	var v int
	hit, err := c.Get(ctx, "reports:short", &v)
	require.NoError(t, err)
	assert.False(t, hit)
}
