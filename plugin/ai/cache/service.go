package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SweepReporter receives the outcome of every expiry sweep.
// observability.Metrics satisfies it.
type SweepReporter interface {
	RecordCacheSweep(expired, entries int)
}

// ServiceConfig configures the in-process context cache.
type ServiceConfig struct {
	Capacity      int           // Maximum stored contexts (default: 1000)
	DefaultTTL    time.Duration // Used when Set gets no ttl (default: 5 minutes)
	SweepInterval time.Duration // Expiry sweep period (default: 1 minute)
	Reporter      SweepReporter // Optional
}

// DefaultServiceConfig returns the default in-process cache configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Capacity:      1000,
		DefaultTTL:    5 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Service is the single-process CacheService used when no shared cache is
// configured, and as the local tier in front of one.
type Service struct {
	entries  *LRUCache
	reporter SweepReporter
	interval time.Duration

	stop chan struct{}
	once sync.Once
	done sync.WaitGroup
}

// NewService starts an in-process cache and its expiry sweeper.
// Close stops the sweeper.
func NewService(cfg ServiceConfig) *Service {
	defaults := DefaultServiceConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaults.DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}

	s := &Service{
		entries:  NewLRUCache(cfg.Capacity, cfg.DefaultTTL),
		reporter: cfg.Reporter,
		interval: cfg.SweepInterval,
		stop:     make(chan struct{}),
	}
	s.done.Add(1)
	go s.sweepLoop()
	return s
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Service) Close() {
	s.once.Do(func() { close(s.stop) })
	s.done.Wait()
}

func (s *Service) Get(_ context.Context, key string) ([]byte, bool) {
	return s.entries.Get(key)
}

func (s *Service) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.entries.Set(key, value, ttl)
	return nil
}

func (s *Service) Invalidate(_ context.Context, pattern string) error {
	s.entries.Invalidate(pattern)
	return nil
}

// Size returns the number of stored entries, expired ones included until
// the next sweep.
func (s *Service) Size() int {
	return s.entries.Size()
}

// Stats returns the hit, miss and eviction counters.
func (s *Service) Stats() LRUStats {
	return s.entries.Stats()
}

// Sweep drops expired entries, reports the result and returns how many were
// dropped.
func (s *Service) Sweep() int {
	expired := s.entries.CleanupExpired()
	if s.reporter != nil {
		s.reporter.RecordCacheSweep(expired, s.entries.Size())
	}
	if expired > 0 {
		slog.Debug("expired contexts dropped from cache", "count", expired, "remaining", s.entries.Size())
	}
	return expired
}

func (s *Service) sweepLoop() {
	defer s.done.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

var _ CacheService = (*Service)(nil)
