package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process counters for context builds. An instance is
// owned by whoever wires the service; there is no global collector.
type Metrics struct {
	mu sync.Mutex

	buildTotal  atomic.Int64
	buildFailed atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	cacheExpired atomic.Int64
	cacheEntries atomic.Int64

	adapterFailures map[string]*atomic.Int64

	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector keeping the last maxDurations samples.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		adapterFailures: make(map[string]*atomic.Int64),
		durations:       make([]time.Duration, 0, maxDurations),
		maxDurations:    maxDurations,
	}
}

// RecordBuild records a finished build and its duration.
func (m *Metrics) RecordBuild(duration time.Duration, success bool) {
	m.buildTotal.Add(1)
	if !success {
		m.buildFailed.Add(1)
	}

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// RecordCache records a response cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
		return
	}
	m.cacheMisses.Add(1)
}

// RecordCacheSweep records an expiry sweep of the local context cache.
func (m *Metrics) RecordCacheSweep(expired, entries int) {
	m.cacheExpired.Add(int64(expired))
	m.cacheEntries.Store(int64(entries))
}

// RecordAdapterFailure records a degraded history or logbook retrieval.
func (m *Metrics) RecordAdapterFailure(source string) {
	m.mu.Lock()
	counter, ok := m.adapterFailures[source]
	if !ok {
		counter = &atomic.Int64{}
		m.adapterFailures[source] = counter
	}
	m.mu.Unlock()
	counter.Add(1)
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	failures := make(map[string]int64, len(m.adapterFailures))
	for source, counter := range m.adapterFailures {
		failures[source] = counter.Load()
	}

	return &MetricsSnapshot{
		BuildTotal:      m.buildTotal.Load(),
		BuildFailed:     m.buildFailed.Load(),
		CacheHits:       m.cacheHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
		CacheExpired:    m.cacheExpired.Load(),
		CacheEntries:    m.cacheEntries.Load(),
		AdapterFailures: failures,
		LatencyP50:      percentile(m.durations, 0.50),
		LatencyP95:      percentile(m.durations, 0.95),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	BuildTotal      int64            `json:"build_total"`
	BuildFailed     int64            `json:"build_failed"`
	CacheHits       int64            `json:"cache_hits"`
	CacheMisses     int64            `json:"cache_misses"`
	CacheExpired    int64            `json:"cache_expired"`
	CacheEntries    int64            `json:"cache_entries"`
	AdapterFailures map[string]int64 `json:"adapter_failures"`
	LatencyP50      time.Duration    `json:"latency_p50"`
	LatencyP95      time.Duration    `json:"latency_p95"`
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
