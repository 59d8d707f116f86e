// Package snapshot serves a frozen home from a YAML or JSON document. It
// backs the CLI when no live instance is reachable and doubles as a fixture
// format for tests.
package snapshot

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	hscontext "github.com/hrygo/homesense/plugin/ai/context"
)

type stateDoc struct {
	EntityID    string         `yaml:"entity_id"`
	State       string         `yaml:"state"`
	Attributes  map[string]any `yaml:"attributes"`
	LastChanged string         `yaml:"last_changed"`
	LastUpdated string         `yaml:"last_updated"`
}

type changeDoc struct {
	State       string `yaml:"state"`
	LastChanged string `yaml:"last_changed"`
}

type eventDoc struct {
	When     string `yaml:"when"`
	Name     string `yaml:"name"`
	Message  string `yaml:"message"`
	EntityID string `yaml:"entity_id"`
}

// document is the on-disk layout. JSON is accepted since it parses as YAML.
type document struct {
	States   []stateDoc               `yaml:"states"`
	Areas    []*hscontext.Area        `yaml:"areas"`
	Devices  []*hscontext.Device      `yaml:"devices"`
	Entities []*hscontext.EntityEntry `yaml:"entities"`
	History  map[string][]changeDoc   `yaml:"history"`
	Logbook  []eventDoc               `yaml:"logbook"`
}

// Snapshot is an immutable catalog with history and logbook.
type Snapshot struct {
	states   []*hscontext.EntityState
	areas    []*hscontext.Area
	devices  []*hscontext.Device
	entities []*hscontext.EntityEntry
	history  map[string][]hscontext.StateChange
	logbook  []*hscontext.LogbookEvent
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read snapshot %s", path)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid snapshot %s", path)
	}
	return snap, nil
}

// Parse decodes a snapshot document.
func Parse(data []byte) (*Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode snapshot")
	}

	snap := &Snapshot{
		areas:    doc.Areas,
		devices:  doc.Devices,
		entities: doc.Entities,
		history:  make(map[string][]hscontext.StateChange, len(doc.History)),
	}

	for i, s := range doc.States {
		if s.EntityID == "" {
			return nil, errors.Errorf("state %d has no entity_id", i)
		}
		changed, err := parseTime(s.LastChanged)
		if err != nil {
			return nil, errors.Wrapf(err, "state %s: last_changed", s.EntityID)
		}
		updated, err := parseTime(s.LastUpdated)
		if err != nil {
			return nil, errors.Wrapf(err, "state %s: last_updated", s.EntityID)
		}
		if updated.IsZero() {
			updated = changed
		}
		snap.states = append(snap.states, &hscontext.EntityState{
			EntityID:    s.EntityID,
			State:       s.State,
			Attributes:  s.Attributes,
			LastChanged: changed,
			LastUpdated: updated,
		})
	}

	for entityID, changes := range doc.History {
		for _, c := range changes {
			when, err := parseTime(c.LastChanged)
			if err != nil {
				return nil, errors.Wrapf(err, "history %s", entityID)
			}
			snap.history[entityID] = append(snap.history[entityID], hscontext.StateChange{
				State:       c.State,
				LastChanged: when,
			})
		}
	}

	for _, e := range doc.Logbook {
		when, err := parseTime(e.When)
		if err != nil {
			return nil, errors.Wrapf(err, "logbook entry %q", e.Name)
		}
		snap.logbook = append(snap.logbook, &hscontext.LogbookEvent{
			When:     when,
			Name:     e.Name,
			Message:  e.Message,
			EntityID: e.EntityID,
			Domain:   hscontext.DomainOf(e.EntityID),
		})
	}
	sort.SliceStable(snap.logbook, func(i, j int) bool {
		return snap.logbook[i].When.After(snap.logbook[j].When)
	})

	return snap, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timestamp %q", s)
	}
	return t.UTC(), nil
}

// ListAllStates returns the snapshot states.
func (s *Snapshot) ListAllStates(ctx context.Context) ([]*hscontext.EntityState, error) {
	return s.states, nil
}

// ListAreas returns the area registry.
func (s *Snapshot) ListAreas(ctx context.Context) ([]*hscontext.Area, error) {
	return s.areas, nil
}

// ListDevices returns the device registry.
func (s *Snapshot) ListDevices(ctx context.Context) ([]*hscontext.Device, error) {
	return s.devices, nil
}

// ListEntities returns the entity registry.
func (s *Snapshot) ListEntities(ctx context.Context) ([]*hscontext.EntityEntry, error) {
	return s.entities, nil
}

// GetSignificantStates returns the recorded changes inside [start, end].
func (s *Snapshot) GetSignificantStates(ctx context.Context, start, end time.Time) (map[string][]hscontext.StateChange, error) {
	result := make(map[string][]hscontext.StateChange)
	for entityID, changes := range s.history {
		for _, c := range changes {
			if c.LastChanged.Before(start) || c.LastChanged.After(end) {
				continue
			}
			result[entityID] = append(result[entityID], c)
		}
	}
	return result, nil
}

// GetEvents returns the logbook entries inside [start, end], newest first.
// Undated entries are always included.
func (s *Snapshot) GetEvents(ctx context.Context, start, end time.Time) ([]*hscontext.LogbookEvent, error) {
	var events []*hscontext.LogbookEvent
	for _, e := range s.logbook {
		if !e.When.IsZero() && (e.When.Before(start) || e.When.After(end)) {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

var (
	_ hscontext.Catalog       = (*Snapshot)(nil)
	_ hscontext.HistorySource = (*Snapshot)(nil)
	_ hscontext.LogbookSource = (*Snapshot)(nil)
)
