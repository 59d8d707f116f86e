package cache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/hrygo/homesense/plugin/ai/timeout"
)

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	DefaultTTL time.Duration
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		KeyPrefix:  "homesense:",
		DefaultTTL: 5 * time.Minute,
	}
}

// RedisCache is a CacheService shared by every instance pointing at the same
// Redis database.
type RedisCache struct {
	rdb        *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultRedisConfig().DefaultTTL
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout.CachePingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "failed to ping redis at %s", cfg.Addr)
	}

	return &RedisCache{rdb: rdb, prefix: cfg.KeyPrefix, defaultTTL: cfg.DefaultTTL}, nil
}

// Get implements CacheService. Backend errors are logged and read as a miss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set implements CacheService.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.rdb.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set %s", key)
	}
	return nil
}

// Invalidate implements CacheService. Prefix patterns are resolved with SCAN.
func (r *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard {
		return errors.Wrapf(r.rdb.Del(ctx, r.prefix+pattern).Err(), "failed to delete %s", pattern)
	}

	iter := r.rdb.Scan(ctx, 0, r.prefix+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrapf(err, "failed to scan %s", pattern)
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrapf(r.rdb.Del(ctx, keys...).Err(), "failed to delete %d keys", len(keys))
}

// Ping checks that Redis is reachable.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the connection pool.
func (r *RedisCache) Close() error {
	return r.rdb.Close()
}

var _ CacheService = (*RedisCache)(nil)
