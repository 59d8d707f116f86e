// Package context builds the bounded, redacted home context that is placed in
// a language-model prompt. It ranks entities against the question, expands by
// area, adds recent history and logbook lines and caps the summary size.
package context

import (
	"context"
	"encoding/json"
	"time"
)

// ContextBuilder builds context payloads for a question.
type ContextBuilder interface {
	// Build constructs a fresh payload for the query.
	Build(ctx context.Context, query string, opts Options) (*Payload, error)

	// GetStats returns context building statistics.
	GetStats() *ContextStats
}

// Payload is the context handed to the prompt. It is never modified after
// it has been returned.
type Payload struct {
	GeneratedAt       time.Time
	Summary           string
	Entities          []*SerializedState
	RecentChanges     []string
	Logbook           []string
	RecentSuggestions []string

	// SummaryOnly payloads carry no entity or logbook arrays.
	SummaryOnly bool
}

type payloadJSON struct {
	GeneratedAt       time.Time           `json:"generated_at"`
	Summary           string              `json:"summary"`
	Entities          *[]*SerializedState `json:"entities,omitempty"`
	RecentChanges     []string            `json:"recent_changes"`
	Logbook           *[]string           `json:"logbook,omitempty"`
	RecentSuggestions []string            `json:"recent_suggestions,omitempty"`
}

// MarshalJSON always emits generated_at, summary and recent_changes; entities
// and logbook are present unless the payload is summary-only.
func (p *Payload) MarshalJSON() ([]byte, error) {
	out := payloadJSON{
		GeneratedAt:       p.GeneratedAt.UTC(),
		Summary:           p.Summary,
		RecentChanges:     nonNil(p.RecentChanges),
		RecentSuggestions: p.RecentSuggestions,
	}
	if !p.SummaryOnly {
		entities := p.Entities
		if entities == nil {
			entities = []*SerializedState{}
		}
		logbook := nonNil(p.Logbook)
		out.Entities = &entities
		out.Logbook = &logbook
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var in payloadJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Payload{
		GeneratedAt:       in.GeneratedAt,
		Summary:           in.Summary,
		RecentChanges:     nonNil(in.RecentChanges),
		RecentSuggestions: in.RecentSuggestions,
		SummaryOnly:       in.Entities == nil,
	}
	if in.Entities != nil {
		p.Entities = *in.Entities
	}
	if in.Logbook != nil {
		p.Logbook = *in.Logbook
	}
	return nil
}

// SerializedState is the redacted form of an entity state.
type SerializedState struct {
	EntityID    string         `json:"entity_id"`
	State       any            `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged string         `json:"last_changed,omitempty"`
	LastUpdated string         `json:"last_updated,omitempty"`
}

// ContextStats tracks context building metrics.
type ContextStats struct {
	TotalBuilds      int64
	CacheHits        int64
	HistoryFailures  int64
	LogbookFailures  int64
	AverageBuildTime time.Duration
}

// clone returns a shallow copy with its own slices.
func (p *Payload) clone() *Payload {
	cp := *p
	cp.Entities = append([]*SerializedState(nil), p.Entities...)
	cp.RecentChanges = append([]string{}, p.RecentChanges...)
	cp.Logbook = append([]string(nil), p.Logbook...)
	cp.RecentSuggestions = append([]string(nil), p.RecentSuggestions...)
	return &cp
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
