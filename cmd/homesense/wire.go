package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/homesense/internal/observability"
	"github.com/hrygo/homesense/internal/profile"
	"github.com/hrygo/homesense/plugin/ai/cache"
	hscontext "github.com/hrygo/homesense/plugin/ai/context"
	"github.com/hrygo/homesense/plugin/ai/memory"
	"github.com/hrygo/homesense/plugin/homeassistant"
	"github.com/hrygo/homesense/server/runner/probe"
	"github.com/hrygo/homesense/store/recorder"
	"github.com/hrygo/homesense/store/snapshot"
)

// runtime is the wired context service with everything it needs closed.
type runtime struct {
	service *hscontext.Service
	metrics *observability.Metrics
	pinger  probe.Pinger

	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

type sources struct {
	catalog hscontext.Catalog
	history hscontext.HistorySource
	logbook hscontext.LogbookSource
}

// newRuntime wires the context service for prof. ctx bounds background
// watchers.
func newRuntime(ctx context.Context, prof *profile.Profile) (*runtime, error) {
	rt := &runtime{metrics: observability.NewMetrics(1000)}

	src, err := rt.openSources(ctx, prof)
	if err != nil {
		rt.Close()
		return nil, err
	}

	backend, err := rt.openCache(ctx, prof)
	if err != nil {
		rt.Close()
		return nil, err
	}

	responses := memory.NewResponseLog(10, time.Hour)
	rt.closers = append(rt.closers, responses.Close)

	rt.service = hscontext.NewService(src.catalog, hscontext.Config{
		CacheTTL:        prof.CacheTTL,
		SuggestionLimit: prof.SuggestionLimit,
	}).
		WithHistory(src.history).
		WithLogbook(src.logbook).
		WithMetrics(rt.metrics).
		WithResponseLog(responses).
		WithCache(backend)
	return rt, nil
}

func (rt *runtime) openSources(ctx context.Context, prof *profile.Profile) (*sources, error) {
	if prof.UsesSnapshot() {
		snap, err := snapshot.Load(prof.Snapshot)
		if err != nil {
			return nil, err
		}
		slog.Info("serving snapshot", "path", prof.Snapshot)
		return &sources{catalog: snap, history: snap, logbook: snap}, nil
	}

	client := homeassistant.NewClient(&homeassistant.Config{
		URL:     prof.HAURL,
		Token:   prof.HAToken,
		Timeout: prof.HATimeout,
	})
	rt.pinger = client
	src := &sources{catalog: homeassistant.NewCatalog(client, nil), history: client, logbook: client}

	if prof.StorageDir != "" {
		registry, err := homeassistant.NewRegistry(prof.StorageDir)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load registries")
		}
		if prof.WatchStore {
			if err := registry.Watch(ctx); err != nil {
				slog.Warn("registry reload disabled", "error", err)
			}
		}
		src.catalog = homeassistant.NewCatalog(client, registry)
	}

	if prof.Recorder != "" {
		rec, err := recorder.Open(prof.Recorder)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() {
			if err := rec.Close(); err != nil {
				slog.Warn("failed to close recorder", "error", err)
			}
		})
		src.history, src.logbook = rec, rec
	}
	return src, nil
}

func (rt *runtime) openCache(ctx context.Context, prof *profile.Profile) (cache.CacheService, error) {
	if prof.UsesRedis() {
		cfg := cache.DefaultRedisConfig()
		cfg.Addr = prof.RedisAddr
		cfg.Password = prof.RedisPassword
		cfg.DB = prof.RedisDB
		cfg.DefaultTTL = prof.CacheTTL

		rdb, err := cache.NewRedisCache(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() {
			if err := rdb.Close(); err != nil {
				slog.Warn("failed to close redis", "error", err)
			}
		})

		// A small local tier keeps repeated reads off the network.
		l1 := cache.NewService(cache.ServiceConfig{Capacity: 100, Reporter: rt.metrics})
		rt.closers = append(rt.closers, l1.Close)
		return cache.NewTieredCache(l1, rdb, cache.DefaultTieredConfig()), nil
	}

	lru := cache.NewService(cache.ServiceConfig{
		Capacity:   prof.CacheCapacity,
		DefaultTTL: prof.CacheTTL,
		Reporter:   rt.metrics,
	})
	rt.closers = append(rt.closers, lru.Close)
	return lru, nil
}
