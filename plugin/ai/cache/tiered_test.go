package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCache is a map-backed CacheService remembering the ttl of each Set.
type recordingCache struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	setErr error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *recordingCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := r.data[key]
	return v, ok
}

func (r *recordingCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if r.setErr != nil {
		return r.setErr
	}
	r.data[key] = value
	r.ttls[key] = ttl
	return nil
}

func (r *recordingCache) Invalidate(_ context.Context, pattern string) error {
	delete(r.data, pattern)
	return nil
}

func TestTieredCache_SetWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	l1, l2 := newRecordingCache(), newRecordingCache()
	tc := NewTieredCache(l1, l2, TieredCacheConfig{L1TTL: 10 * time.Second})

	require.NoError(t, tc.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, time.Minute, l2.ttls["k"])
	assert.Equal(t, 10*time.Second, l1.ttls["k"])

	require.NoError(t, tc.Set(ctx, "short", []byte("v"), time.Second))
	assert.Equal(t, time.Second, l1.ttls["short"])
}

func TestTieredCache_PromotesL2Hits(t *testing.T) {
	ctx := context.Background()
	l1, l2 := newRecordingCache(), newRecordingCache()
	tc := NewTieredCache(l1, l2, DefaultTieredConfig())

	l2.data["k"] = []byte("shared")
	v, ok := tc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("shared"), v)
	assert.Equal(t, []byte("shared"), l1.data["k"])
	assert.Equal(t, 30*time.Second, l1.ttls["k"])

	_, ok = tc.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestTieredCache_L2FailureSkipsL1(t *testing.T) {
	ctx := context.Background()
	l1, l2 := newRecordingCache(), newRecordingCache()
	l2.setErr = errors.New("redis down")
	tc := NewTieredCache(l1, l2, DefaultTieredConfig())

	assert.Error(t, tc.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Empty(t, l1.data)
}

func TestTieredCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	l1 := NewService(DefaultServiceConfig())
	defer l1.Close()
	l2 := newRecordingCache()
	tc := NewTieredCache(l1, l2, DefaultTieredConfig())

	require.NoError(t, tc.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, tc.Invalidate(ctx, "k"))

	_, ok := tc.Get(ctx, "k")
	assert.False(t, ok)
}

func TestTieredCache_WithoutL1(t *testing.T) {
	ctx := context.Background()
	l2 := newRecordingCache()
	tc := NewTieredCache(nil, l2, TieredCacheConfig{})

	require.NoError(t, tc.Set(ctx, "k", []byte("v"), 0))
	v, ok := tc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}
