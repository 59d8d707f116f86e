package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// TieredCache layers a small in-process cache (L1) over a shared one (L2).
// L1 entries live at most L1TTL so writes from other instances show up
// within that bound.
type TieredCache struct {
	l1       CacheService
	l2       CacheService
	maxL1TTL time.Duration
}

// TieredCacheConfig holds the configuration for the tiered cache.
type TieredCacheConfig struct {
	L1TTL time.Duration // Upper bound for L1 entries (default: 30 seconds)
}

// DefaultTieredConfig returns the default tiered cache configuration.
func DefaultTieredConfig() TieredCacheConfig {
	return TieredCacheConfig{L1TTL: 30 * time.Second}
}

// NewTieredCache creates a two-tier cache. l1 may be nil, which makes the
// tiered cache a thin wrapper over l2.
func NewTieredCache(l1, l2 CacheService, cfg TieredCacheConfig) *TieredCache {
	if cfg.L1TTL <= 0 {
		cfg.L1TTL = DefaultTieredConfig().L1TTL
	}
	return &TieredCache{l1: l1, l2: l2, maxL1TTL: cfg.L1TTL}
}

// Get checks L1, then L2. L2 hits are promoted to L1.
func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if t.l1 != nil {
		if value, ok := t.l1.Get(ctx, key); ok {
			return value, true
		}
	}

	value, ok := t.l2.Get(ctx, key)
	if !ok {
		return nil, false
	}
	if t.l1 != nil {
		_ = t.l1.Set(ctx, key, value, t.maxL1TTL)
	}
	return value, true
}

// Set writes L2 first; L1 is only filled once the shared write succeeded.
func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if t.l1 != nil {
		return t.l1.Set(ctx, key, value, t.l1Expiry(ttl))
	}
	return nil
}

func (t *TieredCache) l1Expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > t.maxL1TTL {
		return t.maxL1TTL
	}
	return ttl
}

// Invalidate removes matching keys from both tiers.
func (t *TieredCache) Invalidate(ctx context.Context, pattern string) error {
	if t.l1 != nil {
		if err := t.l1.Invalidate(ctx, pattern); err != nil {
			return errors.Wrap(err, "failed to invalidate l1")
		}
	}
	return t.l2.Invalidate(ctx, pattern)
}

var _ CacheService = (*TieredCache)(nil)
