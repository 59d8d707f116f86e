package context

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/hrygo/homesense/internal/errors"
	"github.com/hrygo/homesense/internal/observability"
	"github.com/hrygo/homesense/plugin/ai/cache"
	"github.com/hrygo/homesense/plugin/ai/memory"
	"github.com/hrygo/homesense/plugin/ai/redact"
)

// Service implements ContextBuilder over a host catalog.
type Service struct {
	catalog Catalog

	// Optional subsystems; nil means the host does not provide them.
	history HistorySource
	logbook LogbookSource

	responses   *ResponseCache
	responseLog *memory.ResponseLog
	logger      *slog.Logger
	metrics     *observability.Metrics
	now         func() time.Time

	cfg   Config
	stats *serviceStats
}

type serviceStats struct {
	totalBuilds     int64
	cacheHits       int64
	historyFailures int64
	logbookFailures int64
	totalBuildMs    int64
}

// Config configures the context builder service.
type Config struct {
	CacheTTL        time.Duration // Response cache TTL (default: 5 minutes)
	SuggestionLimit int           // Recent suggestions added to cached payloads (default: 3)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:        5 * time.Minute,
		SuggestionLimit: 3,
	}
}

// NewService creates a new context builder service.
func NewService(catalog Catalog, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = 3
	}

	return &Service{
		catalog: catalog,
		logger:  slog.Default(),
		now:     time.Now,
		cfg:     cfg,
		stats:   &serviceStats{},
	}
}

// WithHistory sets the state history source.
func (s *Service) WithHistory(h HistorySource) *Service {
	s.history = h
	return s
}

// WithLogbook sets the logbook source.
func (s *Service) WithLogbook(l LogbookSource) *Service {
	s.logbook = l
	return s
}

// WithCache enables the response cache on top of the given backend.
func (s *Service) WithCache(c cache.CacheService) *Service {
	s.responses = NewResponseCache(c, s.responseLog, s.cfg.SuggestionLimit).withClock(s.now)
	return s
}

// WithResponseLog sets the response log used to augment cached payloads.
func (s *Service) WithResponseLog(l *memory.ResponseLog) *Service {
	s.responseLog = l
	if s.responses != nil {
		s.responses.log = l
	}
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithMetrics sets the metrics collector.
func (s *Service) WithMetrics(m *observability.Metrics) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
		if s.responses != nil {
			s.responses.withClock(now)
		}
	}
	return s
}

// Build constructs a fresh context payload for the query.
func (s *Service) Build(ctx context.Context, query string, opts Options) (*Payload, error) {
	start := time.Now()
	atomic.AddInt64(&s.stats.totalBuilds, 1)

	reqCtx, ok := observability.FromContext(ctx)
	if !ok {
		reqCtx = observability.NewRequestContext(s.logger, "context.build")
		ctx = observability.WithRequestContext(ctx, reqCtx)
	}

	payload, err := s.build(ctx, reqCtx, query, opts.normalized())

	elapsed := time.Since(start)
	atomic.AddInt64(&s.stats.totalBuildMs, elapsed.Milliseconds())
	if s.metrics != nil {
		s.metrics.RecordBuild(elapsed, err == nil)
	}
	if err != nil {
		reqCtx.Error("context build failed", err)
		return nil, err
	}

	reqCtx.Debug("context built",
		slog.Int("entities", len(payload.Entities)),
		slog.Int("summary_bytes", len(payload.Summary)),
		slog.Int64(observability.LogFieldDuration, elapsed.Milliseconds()),
	)
	return payload, nil
}

// BuildCached builds a summary-only payload through the response cache.
// Incognito sessions bypass the cache. A non-positive ttl uses the configured one.
func (s *Service) BuildCached(ctx context.Context, sessionKey string, incognito bool, ttl time.Duration, query string, opts Options) (*Payload, error) {
	opts.SummaryOnly = true
	build := func(ctx context.Context) (*Payload, error) {
		return s.Build(ctx, query, opts)
	}
	if s.responses == nil {
		return build(ctx)
	}
	if ttl <= 0 {
		ttl = s.cfg.CacheTTL
	}

	payload, hit, err := s.responses.getOrBuild(ctx, sessionKey, ttl, incognito, build)
	if err != nil {
		return nil, err
	}
	if !incognito && s.metrics != nil {
		s.metrics.RecordCache(hit)
	}
	if hit {
		atomic.AddInt64(&s.stats.cacheHits, 1)
	}
	return payload, nil
}

// RecordResponse logs an assistant response so later cached payloads can
// carry it as a recent suggestion.
func (s *Service) RecordResponse(sessionKey, content string) {
	if s.responseLog == nil {
		return
	}
	s.responseLog.Add(sessionKey, memory.Response{Content: content, Timestamp: s.now()})
}

func (s *Service) build(ctx context.Context, reqCtx *observability.RequestContext, query string, opts Options) (*Payload, error) {
	var filter *EntityFilter
	if opts.Filter != "" {
		f, err := CompileFilter(opts.Filter)
		if err != nil {
			return nil, apperrors.InvalidArgument("invalid entity filter", err)
		}
		filter = f
	}

	states, err := s.catalog.ListAllStates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list entity states")
	}
	metadata := s.loadMetadata(ctx, reqCtx, states)

	policy := NewPolicy(opts)
	selected := s.selectEntities(query, opts, policy, filter, states, metadata)

	now := s.now()
	windowStart := now.Add(-time.Duration(opts.HistoryWindowHours) * time.Hour)

	var recent []string
	if opts.IncludeHistory || opts.RecentMode {
		recent = s.recentChanges(ctx, reqCtx, policy, windowStart, now)
	}

	summary := summarize(selected, metadata, recent)
	payload := &Payload{
		GeneratedAt:   now,
		Summary:       summary,
		RecentChanges: nonNil(recent),
		SummaryOnly:   opts.SummaryOnly,
	}
	if opts.SummaryOnly {
		return payload, nil
	}

	payload.Entities = make([]*SerializedState, 0, len(selected))
	for _, st := range selected {
		payload.Entities = append(payload.Entities, serializeState(st, opts.IncludeAttributes))
	}
	payload.Logbook = []string{}
	if opts.IncludeLogbook {
		payload.Logbook = s.logbookLines(ctx, reqCtx, policy, windowStart, now)
	}
	return payload, nil
}

// loadMetadata joins the registries. A failing registry only loses its names.
func (s *Service) loadMetadata(ctx context.Context, reqCtx *observability.RequestContext, states []*EntityState) map[string]*EntityMetadata {
	areas, err := s.catalog.ListAreas(ctx)
	if err != nil {
		reqCtx.Warn("failed to list areas", slog.String("error", err.Error()))
	}
	devices, err := s.catalog.ListDevices(ctx)
	if err != nil {
		reqCtx.Warn("failed to list devices", slog.String("error", err.Error()))
	}
	entries, err := s.catalog.ListEntities(ctx)
	if err != nil {
		reqCtx.Warn("failed to list entity registry", slog.String("error", err.Error()))
	}
	return JoinMetadata(states, areas, devices, entries)
}

// selectEntities filters, ranks and caps the entities, then backfills by area.
// When nothing matched at all the most recently changed entities are used.
func (s *Service) selectEntities(query string, opts Options, policy *Policy, filter *EntityFilter, states []*EntityState, metadata map[string]*EntityMetadata) []*EntityState {
	limit := opts.MaxContextEntities

	permitted := make([]*EntityState, 0, len(states))
	for _, st := range states {
		meta := metadata[st.EntityID]
		if meta != nil && meta.Disabled {
			continue
		}
		if !policy.Allowed(st.EntityID) {
			continue
		}
		if filter != nil && !filter.Match(st, meta) {
			continue
		}
		permitted = append(permitted, st)
	}

	ranked := NewScorer(query, opts.FocusAreas, opts.FocusEntities).Rank(permitted, metadata)
	selected := make([]*EntityState, 0, limit)
	chosen := make(map[string]struct{}, limit)
	for _, c := range ranked {
		if len(selected) >= limit {
			break
		}
		selected = append(selected, c.State)
		chosen[c.State.EntityID] = struct{}{}
	}

	if len(selected) > 0 && len(selected) < limit {
		areas := make(map[string]struct{})
		for _, st := range selected {
			if meta := metadata[st.EntityID]; meta != nil && meta.AreaID != "" {
				areas[meta.AreaID] = struct{}{}
			}
		}
		for _, st := range permitted {
			if len(selected) >= limit {
				break
			}
			if _, dup := chosen[st.EntityID]; dup {
				continue
			}
			meta := metadata[st.EntityID]
			if meta == nil || meta.AreaID == "" {
				continue
			}
			if _, ok := areas[meta.AreaID]; ok {
				selected = append(selected, st)
				chosen[st.EntityID] = struct{}{}
			}
		}
	}

	if len(selected) == 0 {
		recent := append([]*EntityState(nil), permitted...)
		sort.SliceStable(recent, func(i, j int) bool {
			return recent[i].LastChanged.After(recent[j].LastChanged)
		})
		if len(recent) > limit {
			recent = recent[:limit]
		}
		selected = recent
	}
	return selected
}

func summarize(selected []*EntityState, metadata map[string]*EntityMetadata, recent []string) string {
	var sb strings.Builder
	for i, st := range selected {
		if i > 0 {
			sb.WriteByte('\n')
		}
		name := ""
		if meta := metadata[st.EntityID]; meta != nil {
			name = meta.DisplayName
		}
		fmt.Fprintf(&sb, "- %s: %s (%s)", st.EntityID, redact.Text(st.State), redact.Text(name))
	}
	if len(recent) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Recent changes:\n")
		sb.WriteString(strings.Join(recent, "\n"))
	}
	return truncateSummary(sb.String(), MaxContextChars)
}

func serializeState(st *EntityState, includeAttributes bool) *SerializedState {
	out := &SerializedState{
		EntityID:    st.EntityID,
		State:       redact.Redact(st.State),
		LastChanged: formatTime(st.LastChanged),
		LastUpdated: formatTime(st.LastUpdated),
	}
	if includeAttributes && len(st.Attributes) > 0 {
		if attrs, ok := redact.Redact(st.Attributes).(map[string]any); ok {
			out.Attributes = attrs
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// GetStats returns context building statistics.
func (s *Service) GetStats() *ContextStats {
	builds := atomic.LoadInt64(&s.stats.totalBuilds)
	if builds == 0 {
		return &ContextStats{CacheHits: atomic.LoadInt64(&s.stats.cacheHits)}
	}

	return &ContextStats{
		TotalBuilds:      builds,
		CacheHits:        atomic.LoadInt64(&s.stats.cacheHits),
		HistoryFailures:  atomic.LoadInt64(&s.stats.historyFailures),
		LogbookFailures:  atomic.LoadInt64(&s.stats.logbookFailures),
		AverageBuildTime: time.Duration(atomic.LoadInt64(&s.stats.totalBuildMs)/builds) * time.Millisecond,
	}
}

// Ensure Service implements ContextBuilder
var _ ContextBuilder = (*Service)(nil)
