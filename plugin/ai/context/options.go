package context

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Default option values.
const (
	DefaultHistoryWindowHours = 24
	DefaultMaxContextEntities = 25
)

// Options is the resolved configuration of a single context build.
// Deny lists always win over allow lists; an empty allow list permits everything.
type Options struct {
	IncludeHistory     bool     `mapstructure:"include_history" json:"include_history"`
	IncludeLogbook     bool     `mapstructure:"include_logbook" json:"include_logbook"`
	HistoryWindowHours int      `mapstructure:"history_window_hours" json:"history_window_hours"`
	AllowlistDomains   []string `mapstructure:"allowlist_domains" json:"allowlist_domains,omitempty"`
	DenylistDomains    []string `mapstructure:"denylist_domains" json:"denylist_domains,omitempty"`
	AllowlistEntities  []string `mapstructure:"allowlist_entities" json:"allowlist_entities,omitempty"`
	DenylistEntities   []string `mapstructure:"denylist_entities" json:"denylist_entities,omitempty"`
	MaxContextEntities int      `mapstructure:"max_context_entities" json:"max_context_entities"`
	IncludeAttributes  bool     `mapstructure:"include_attributes" json:"include_attributes"`
	FocusAreas         []string `mapstructure:"focus_areas" json:"focus_areas,omitempty"`
	FocusEntities      []string `mapstructure:"focus_entities" json:"focus_entities,omitempty"`
	SummaryOnly        bool     `mapstructure:"summary_only" json:"summary_only"`
	RecentMode         bool     `mapstructure:"recent_mode" json:"recent_mode"`

	// Filter is an optional CEL expression evaluated per entity after the
	// allow and deny lists, e.g. `domain == "light" && area != ""`.
	Filter string `mapstructure:"filter" json:"filter,omitempty"`
}

// DefaultOptions returns the options used when the caller sets nothing.
func DefaultOptions() Options {
	return Options{
		IncludeHistory:     true,
		IncludeLogbook:     true,
		HistoryWindowHours: DefaultHistoryWindowHours,
		MaxContextEntities: DefaultMaxContextEntities,
		IncludeAttributes:  true,
	}
}

// DecodeOptions decodes a loosely typed option mapping on top of the defaults.
// Scalars are weakly typed ("true", 1) and comma separated strings become lists.
// Unknown keys are ignored.
func DecodeOptions(raw map[string]any) (Options, error) {
	opts := DefaultOptions()
	if len(raw) == 0 {
		return opts, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return Options{}, errors.Wrap(err, "failed to create options decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return Options{}, errors.Wrap(err, "failed to decode context options")
	}

	return opts.normalized(), nil
}

// normalized replaces out-of-range numbers with defaults and cleans list items.
func (o Options) normalized() Options {
	if o.HistoryWindowHours <= 0 {
		o.HistoryWindowHours = DefaultHistoryWindowHours
	}
	if o.MaxContextEntities <= 0 {
		o.MaxContextEntities = DefaultMaxContextEntities
	}
	o.AllowlistDomains = cleanList(o.AllowlistDomains)
	o.DenylistDomains = cleanList(o.DenylistDomains)
	o.AllowlistEntities = cleanList(o.AllowlistEntities)
	o.DenylistEntities = cleanList(o.DenylistEntities)
	o.FocusAreas = cleanList(o.FocusAreas)
	o.FocusEntities = cleanList(o.FocusEntities)
	o.Filter = strings.TrimSpace(o.Filter)
	return o
}

func cleanList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
