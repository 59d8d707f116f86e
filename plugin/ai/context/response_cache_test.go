package context

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/homesense/plugin/ai/cache"
	"github.com/hrygo/homesense/plugin/ai/memory"
)

func newCachedService(t *testing.T) (*Service, *MockHistory, *fakeClock, *memory.ResponseLog) {
	t.Helper()
	backend := cache.NewService(cache.ServiceConfig{Capacity: 100, DefaultTTL: time.Hour, SweepInterval: time.Hour})
	t.Cleanup(backend.Close)
	log := memory.NewResponseLog(5, time.Hour)
	t.Cleanup(log.Close)

	clock := newFakeClock()
	history := &MockHistory{Changes: map[string][]StateChange{
		"light.kitchen": {{State: "on", LastChanged: testNow.Add(-time.Minute)}},
	}}
	svc := NewService(kitchenCatalog(), DefaultConfig()).
		WithClock(clock.Now).
		WithHistory(history).
		WithResponseLog(log).
		WithCache(backend)
	return svc, history, clock, log
}

func TestBuildCached_HitWithinTTL(t *testing.T) {
	svc, history, clock, log := newCachedService(t)
	ctx := context.Background()

	first, err := svc.BuildCached(ctx, "session-1", false, 5*time.Minute, "kitchen light", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, first.SummaryOnly)
	assert.Nil(t, first.Entities)
	assert.Empty(t, first.RecentSuggestions)

	log.Add("session-1", memory.Response{Content: "Turn off the kitchen light at 23:00?"})
	clock.Advance(4 * time.Minute)

	second, err := svc.BuildCached(ctx, "session-1", false, 5*time.Minute, "kitchen light", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, history.Calls())
	assert.True(t, second.GeneratedAt.Equal(first.GeneratedAt))
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.RecentChanges, second.RecentChanges)
	assert.Equal(t, []string{"Turn off the kitchen light at 23:00?"}, second.RecentSuggestions)
	assert.Equal(t, int64(1), svc.GetStats().CacheHits)
}

func TestBuildCached_ExpiredEntryRebuilds(t *testing.T) {
	svc, history, clock, _ := newCachedService(t)
	ctx := context.Background()

	first, err := svc.BuildCached(ctx, "session-1", false, 5*time.Minute, "kitchen", DefaultOptions())
	require.NoError(t, err)

	clock.Advance(5*time.Minute + time.Second)
	second, err := svc.BuildCached(ctx, "session-1", false, 5*time.Minute, "kitchen", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, history.Calls())
	assert.True(t, second.GeneratedAt.After(first.GeneratedAt))
}

func TestBuildCached_SessionsAreIsolated(t *testing.T) {
	svc, history, _, _ := newCachedService(t)
	ctx := context.Background()

	_, err := svc.BuildCached(ctx, "session-1", false, time.Minute, "kitchen", DefaultOptions())
	require.NoError(t, err)
	_, err = svc.BuildCached(ctx, "session-2", false, time.Minute, "kitchen", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, history.Calls())
}

func TestBuildCached_Incognito(t *testing.T) {
	svc, history, _, log := newCachedService(t)
	ctx := context.Background()
	log.Add("private", memory.Response{Content: "earlier answer"})

	for i := 0; i < 2; i++ {
		payload, err := svc.BuildCached(ctx, "private", true, time.Minute, "kitchen", DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, payload.RecentSuggestions)
	}
	assert.Equal(t, 2, history.Calls())

	// Nothing was written, so the first regular call still builds.
	_, err := svc.BuildCached(ctx, "private", false, time.Minute, "kitchen", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, history.Calls())
	assert.Equal(t, int64(0), svc.GetStats().CacheHits)
}

func TestBuildCached_WithoutCache(t *testing.T) {
	history := &MockHistory{}
	svc := newTestService(kitchenCatalog()).WithHistory(history)

	for i := 0; i < 2; i++ {
		payload, err := svc.BuildCached(context.Background(), "s", false, time.Minute, "kitchen", DefaultOptions())
		require.NoError(t, err)
		assert.True(t, payload.SummaryOnly)
	}
	assert.Equal(t, 2, history.Calls())
}

func TestBuildCached_BuildErrorNotCached(t *testing.T) {
	catalog := kitchenCatalog()
	catalog.StatesErr = assert.AnError
	backend := cache.NewService(cache.DefaultServiceConfig())
	defer backend.Close()
	svc := NewService(catalog, DefaultConfig()).WithCache(backend)

	_, err := svc.BuildCached(context.Background(), "s", false, time.Minute, "kitchen", DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, 0, backend.Size())
}

func TestResponseCache_ConcurrentReaders(t *testing.T) {
	backend := cache.NewService(cache.DefaultServiceConfig())
	defer backend.Close()
	rc := NewResponseCache(backend, nil, 3)

	var mu sync.Mutex
	builds := 0
	build := func(ctx context.Context) (*Payload, error) {
		mu.Lock()
		builds++
		mu.Unlock()
		return &Payload{GeneratedAt: time.Now(), Summary: "- light.kitchen: on (Kitchen Light)", RecentChanges: []string{}, SummaryOnly: true}, nil
	}

	var wg sync.WaitGroup
	results := make([]*Payload, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := rc.GetOrBuild(context.Background(), "shared", time.Minute, false, build)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	buildCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return builds
	}
	assert.GreaterOrEqual(t, buildCount(), 1)
	assert.LessOrEqual(t, buildCount(), len(results))
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, "- light.kitchen: on (Kitchen Light)", p.Summary)
	}

	// Once populated, later reads are served from the cache.
	before := buildCount()
	_, err := rc.GetOrBuild(context.Background(), "shared", time.Minute, false, build)
	require.NoError(t, err)
	assert.Equal(t, before, buildCount())
}

func TestResponseCache_CanceledCallerDoesNotFailWaiters(t *testing.T) {
	backend := cache.NewService(cache.DefaultServiceConfig())
	defer backend.Close()
	rc := NewResponseCache(backend, nil, 3)

	started := make(chan struct{})
	release := make(chan struct{})
	build := func(ctx context.Context) (*Payload, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &Payload{GeneratedAt: time.Now(), Summary: "- light.kitchen: on", RecentChanges: []string{}, SummaryOnly: true}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := rc.GetOrBuild(firstCtx, "shared", time.Minute, false, build)
		firstErr <- err
	}()
	<-started

	type result struct {
		payload *Payload
		err     error
	}
	second := make(chan result, 1)
	go func() {
		p, err := rc.GetOrBuild(context.Background(), "shared", time.Minute, false, func(context.Context) (*Payload, error) {
			return nil, assert.AnError
		})
		second <- result{p, err}
	}()

	cancelFirst()
	err := <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "- light.kitchen: on", res.payload.Summary)

	// The shared build completed and was stored.
	cached, err := rc.GetOrBuild(context.Background(), "shared", time.Minute, false, func(context.Context) (*Payload, error) {
		return nil, assert.AnError
	})
	require.NoError(t, err)
	assert.Equal(t, "- light.kitchen: on", cached.Summary)
}

func TestResponseCache_CorruptEntryIsMiss(t *testing.T) {
	backend := cache.NewService(cache.DefaultServiceConfig())
	defer backend.Close()
	rc := NewResponseCache(backend, nil, 3)
	require.NoError(t, backend.Set(context.Background(), cache.Key("context", "s"), []byte("not json"), time.Minute))

	calls := 0
	p, err := rc.GetOrBuild(context.Background(), "s", time.Minute, false, func(ctx context.Context) (*Payload, error) {
		calls++
		return &Payload{Summary: "fresh", SummaryOnly: true}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "fresh", p.Summary)
}
