package cache

import (
	"context"
	"testing"
	"time"

	"metronix/internal/config"
	"metronix/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	var c Cache = NopCache{}

	require.NoError(t, c.Set(ctx, "reports:dashboard", map[string]int{"a": 1}, time.Minute))

	var out map[string]int
	hit, err := c.Get(ctx, "reports:dashboard", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, out)

	assert.NoError(t, c.DeletePrefix(ctx, "reports:"))

	n, err := c.Incr(ctx, "reportgen")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNew_DisabledReturnsNop(t *testing.T) {
	c := New(context.Background(), config.RedisConfig{Enabled: false}, observability.NewNopLogger())
	assert.IsType(t, NopCache{}, c)
}

func TestNew_UnreachableFallsBackToNop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Port 1 is never a redis server
	c := New(ctx, config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}, observability.NewNopLogger())
	assert.IsType(t, NopCache{}, c)
}
