package context

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/hrygo/homesense/internal/errors"
	"github.com/hrygo/homesense/internal/observability"
	"github.com/hrygo/homesense/plugin/ai/redact"
)

const (
	sourceHistory = "history"
	sourceLogbook = "logbook"
)

type latestChange struct {
	entityID string
	change   StateChange
}

// recentChanges returns one line per permitted entity for its latest change in
// the window, newest first. An absent or failing history source yields nil.
func (s *Service) recentChanges(ctx context.Context, reqCtx *observability.RequestContext, policy *Policy, start, end time.Time) []string {
	if s.history == nil {
		s.adapterAbsent(reqCtx, sourceHistory)
		return nil
	}

	byEntity, err := s.history.GetSignificantStates(ctx, start, end)
	if err != nil {
		atomic.AddInt64(&s.stats.historyFailures, 1)
		s.adapterFailed(reqCtx, sourceHistory, err)
		return nil
	}

	latest := make([]latestChange, 0, len(byEntity))
	for entityID, changes := range byEntity {
		if len(changes) == 0 || !policy.Allowed(entityID) {
			continue
		}
		last := changes[0]
		for _, c := range changes[1:] {
			if c.LastChanged.After(last.LastChanged) {
				last = c
			}
		}
		latest = append(latest, latestChange{entityID: entityID, change: last})
	}

	sort.Slice(latest, func(i, j int) bool {
		ti, tj := latest[i].change.LastChanged, latest[j].change.LastChanged
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return latest[i].entityID < latest[j].entityID
	})
	if len(latest) > MaxRecentChanges {
		latest = latest[:MaxRecentChanges]
	}

	lines := make([]string, 0, len(latest))
	for _, l := range latest {
		lines = append(lines, fmt.Sprintf("- %s changed to %s at %s",
			l.entityID, redact.Text(l.change.State), l.change.LastChanged.UTC().Format(time.RFC3339)))
	}
	return lines
}

// logbookLines returns redacted logbook lines for the window. Events tied to
// an entity must pass the policy. An absent or failing logbook yields an
// empty list.
func (s *Service) logbookLines(ctx context.Context, reqCtx *observability.RequestContext, policy *Policy, start, end time.Time) []string {
	lines := []string{}
	if s.logbook == nil {
		s.adapterAbsent(reqCtx, sourceLogbook)
		return lines
	}

	events, err := s.logbook.GetEvents(ctx, start, end)
	if err != nil {
		atomic.AddInt64(&s.stats.logbookFailures, 1)
		s.adapterFailed(reqCtx, sourceLogbook, err)
		return lines
	}

	for _, ev := range events {
		if len(lines) >= MaxLogbookEntries {
			break
		}
		if ev == nil {
			continue
		}
		if ev.EntityID != "" && !policy.Allowed(ev.EntityID) {
			continue
		}
		lines = append(lines, formatLogbookEvent(ev))
	}
	return lines
}

func formatLogbookEvent(ev *LogbookEvent) string {
	var sb strings.Builder
	sb.WriteString("- ")
	if !ev.When.IsZero() {
		sb.WriteString(ev.When.UTC().Format(time.RFC3339))
		sb.WriteString(": ")
	}
	sb.WriteString(strings.TrimSpace(redact.Text(ev.Name) + " " + redact.Text(ev.Message)))
	if ev.EntityID != "" {
		fmt.Fprintf(&sb, " (%s)", ev.EntityID)
	}
	return sb.String()
}

func (s *Service) adapterAbsent(reqCtx *observability.RequestContext, source string) {
	reqCtx.Debug("subsystem not available",
		slog.String(observability.LogFieldSource, source),
		slog.String(observability.LogFieldErrorCode, string(apperrors.ErrCodeAdapterUnavailable)),
	)
}

func (s *Service) adapterFailed(reqCtx *observability.RequestContext, source string, err error) {
	if s.metrics != nil {
		s.metrics.RecordAdapterFailure(source)
	}
	reqCtx.Warn("failed to fetch "+source,
		slog.String(observability.LogFieldSource, source),
		slog.String(observability.LogFieldErrorCode, string(apperrors.GetCodeFromError(err, apperrors.ErrCodeAdapterFailed))),
		slog.String("error", err.Error()),
	)
}
