// Package cache provides the short-lived report cache backed by Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"metronix/internal/config"
	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// Cache stores JSON-encoded values under string keys
type Cache interface {
	// Get decodes the value under key into dest. It returns false on a miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error
	// Incr atomically increments the counter under key and returns the new value.
	// A missing counter starts from zero. Get reads a counter into an int64.
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisCache implements Cache on a go-redis client
type RedisCache struct {
	client    *redis.Client
	namespace string
	logger    *observability.Logger
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = NopCache{}
)

// NewRedisClient opens a client for cfg and pings it
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "failed to connect to redis at %s: %v", cfg.Addr, err)
	}
	return rdb, nil
}

// NewRedisCache namespaces all keys under "metronix:"
func NewRedisCache(client *redis.Client, logger *observability.Logger) *RedisCache {
	return &RedisCache{client: client, namespace: "metronix:", logger: logger}
}

// New returns a RedisCache when redis is enabled and reachable, otherwise a NopCache.
// An unreachable redis is logged and does not stop the caller.
func New(ctx context.Context, cfg config.RedisConfig, logger *observability.Logger) Cache {
	if !cfg.Enabled {
		return NopCache{}
	}
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn(ctx, "Redis unavailable, report cache disabled", map[string]interface{}{
			"addr":  cfg.Addr,
			"error": err.Error(),
		})
		return NopCache{}
	}
	logger.Info(ctx, "Report cache enabled", map[string]interface{}{"addr": cfg.Addr, "db": cfg.DB})
	return NewRedisCache(client, logger)
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (hit bool, err error) {
	ctx, span := observability.TraceFunction(ctx, "cache", "get", attribute.String("cache.key", key))
	defer observability.FinishSpan(span, &err)

	raw, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return false, nil
	}
	if err != nil {
		return false, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "cache get %s: %v", key, err)
	}
	if err = json.Unmarshal(raw, dest); err != nil {
		return false, contextutils.WrapErrorf(contextutils.ErrInternalError, "cache decode %s: %v", key, err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return true, nil
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) (err error) {
	ctx, span := observability.TraceFunction(ctx, "cache", "set", attribute.String("cache.key", key))
	defer observability.FinishSpan(span, &err)

	raw, err := json.Marshal(value)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInternalError, "cache encode %s: %v", key, err)
	}
	if err = c.client.Set(ctx, c.namespace+key, raw, ttl).Err(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "cache set %s: %v", key, err)
	}
	return nil
}

// DeletePrefix implements Cache using SCAN so large keyspaces are not blocked
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) (err error) {
	ctx, span := observability.TraceFunction(ctx, "cache", "delete_prefix", attribute.String("cache.prefix", prefix))
	defer observability.FinishSpan(span, &err)

	var keys []string
	iter := c.client.Scan(ctx, 0, c.namespace+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err = iter.Err(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "cache scan %s: %v", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err = c.client.Del(ctx, keys...).Err(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "cache delete %s: %v", prefix, err)
	}
	span.SetAttributes(attribute.Int("cache.deleted", len(keys)))
	return nil
}

// Incr implements Cache with INCR. Counters never expire.
func (c *RedisCache) Incr(ctx context.Context, key string) (n int64, err error) {
	ctx, span := observability.TraceFunction(ctx, "cache", "incr", attribute.String("cache.key", key))
	defer observability.FinishSpan(span, &err)

	n, err = c.client.Incr(ctx, c.namespace+key).Result()
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "cache incr %s: %v", key, err)
	}
	return n, nil
}

// Close releases the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NopCache never stores anything
type NopCache struct{}

// Get always misses
func (NopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }

// Set discards the value
func (NopCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

// DeletePrefix does nothing
func (NopCache) DeletePrefix(context.Context, string) error { return nil }

// Incr always reports zero
func (NopCache) Incr(context.Context, string) (int64, error) { return 0, nil }
