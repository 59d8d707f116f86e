package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MetricsOverviewResponse represents the overview of context build metrics.
type MetricsOverviewResponse struct {
	TotalBuilds     int64            `json:"total_builds"`
	FailedBuilds    int64            `json:"failed_builds"`
	SuccessRate     float64          `json:"success_rate"`
	CacheHits       int64            `json:"cache_hits"`
	CacheMisses     int64            `json:"cache_misses"`
	CacheHitRate    float64          `json:"cache_hit_rate"`
	CachedContexts  int64            `json:"cached_contexts"`
	CacheExpired    int64            `json:"cache_expired"`
	AvgBuildMs      int64            `json:"avg_build_ms"`
	P50LatencyMs    int64            `json:"p50_latency_ms"`
	P95LatencyMs    int64            `json:"p95_latency_ms"`
	AdapterFailures map[string]int64 `json:"adapter_failures"`
}

// GetMetricsOverview returns the context build metrics.
// GET /api/v1/system/metrics
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	stats := s.ContextService.GetStats()
	resp := MetricsOverviewResponse{
		TotalBuilds:     stats.TotalBuilds,
		CacheHits:       stats.CacheHits,
		AvgBuildMs:      stats.AverageBuildTime.Milliseconds(),
		AdapterFailures: map[string]int64{},
	}

	if s.Metrics != nil {
		snap := s.Metrics.Snapshot()
		resp.FailedBuilds = snap.BuildFailed
		resp.CacheMisses = snap.CacheMisses
		resp.CachedContexts = snap.CacheEntries
		resp.CacheExpired = snap.CacheExpired
		resp.P50LatencyMs = snap.LatencyP50.Milliseconds()
		resp.P95LatencyMs = snap.LatencyP95.Milliseconds()
		resp.AdapterFailures = snap.AdapterFailures
	}

	if resp.TotalBuilds > 0 {
		resp.SuccessRate = float64(resp.TotalBuilds-resp.FailedBuilds) / float64(resp.TotalBuilds)
	}
	if lookups := resp.CacheHits + resp.CacheMisses; lookups > 0 {
		resp.CacheHitRate = float64(resp.CacheHits) / float64(lookups)
	}
	return c.JSON(http.StatusOK, resp)
}
