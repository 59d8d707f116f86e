package context

import (
	"context"
	"strings"
	"time"
)

// EntityState is a read-only snapshot of one entity as reported by the host.
type EntityState struct {
	EntityID    string
	State       string
	Attributes  map[string]any
	LastChanged time.Time
	LastUpdated time.Time
}

// Domain returns the identifier prefix before the first dot.
func (s *EntityState) Domain() string {
	return DomainOf(s.EntityID)
}

// DomainOf returns the domain part of an entity identifier.
func DomainOf(entityID string) string {
	domain, _, _ := strings.Cut(entityID, ".")
	return domain
}

// Area is an area registry entry.
type Area struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Device is a device registry entry.
type Device struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	AreaID string `json:"area_id" yaml:"area_id"`
}

// EntityEntry is an entity registry entry.
type EntityEntry struct {
	EntityID string `json:"entity_id" yaml:"entity_id"`
	Name     string `json:"name" yaml:"name"`
	DeviceID string `json:"device_id" yaml:"device_id"`
	AreaID   string `json:"area_id" yaml:"area_id"`
	Platform string `json:"platform" yaml:"platform"`
	Disabled bool   `json:"disabled" yaml:"disabled"`
}

// StateChange is one recorded transition in the state history.
type StateChange struct {
	State       string
	LastChanged time.Time
}

// LogbookEvent is a human-readable log entry.
type LogbookEvent struct {
	When     time.Time
	Name     string
	Message  string
	EntityID string
	Domain   string
}

// Catalog provides current entity states and registry metadata.
type Catalog interface {
	ListAllStates(ctx context.Context) ([]*EntityState, error)
	ListAreas(ctx context.Context) ([]*Area, error)
	ListDevices(ctx context.Context) ([]*Device, error)
	ListEntities(ctx context.Context) ([]*EntityEntry, error)
}

// HistorySource provides significant state changes over a time window.
type HistorySource interface {
	GetSignificantStates(ctx context.Context, start, end time.Time) (map[string][]StateChange, error)
}

// LogbookSource provides logbook events over a time window.
type LogbookSource interface {
	GetEvents(ctx context.Context, start, end time.Time) ([]*LogbookEvent, error)
}

// EntityMetadata is the per-request join of an entity with its registries.
type EntityMetadata struct {
	EntityID    string
	DisplayName string
	DeviceID    string
	AreaID      string
	AreaName    string
	DeviceName  string
	Platform    string
	Disabled    bool
}

// JoinMetadata joins states with the area, device and entity registries.
// Registry names win over the friendly_name attribute; an entity without its
// own area inherits the area of its device.
func JoinMetadata(states []*EntityState, areas []*Area, devices []*Device, entries []*EntityEntry) map[string]*EntityMetadata {
	areaNames := make(map[string]string, len(areas))
	for _, a := range areas {
		areaNames[a.ID] = a.Name
	}
	deviceByID := make(map[string]*Device, len(devices))
	for _, d := range devices {
		deviceByID[d.ID] = d
	}
	entryByID := make(map[string]*EntityEntry, len(entries))
	for _, e := range entries {
		entryByID[e.EntityID] = e
	}

	result := make(map[string]*EntityMetadata, len(states))
	for _, s := range states {
		meta := &EntityMetadata{EntityID: s.EntityID}
		if entry, ok := entryByID[s.EntityID]; ok {
			meta.DisplayName = entry.Name
			meta.DeviceID = entry.DeviceID
			meta.AreaID = entry.AreaID
			meta.Platform = entry.Platform
			meta.Disabled = entry.Disabled
		}
		if meta.DisplayName == "" {
			if name, ok := s.Attributes["friendly_name"].(string); ok {
				meta.DisplayName = name
			}
		}
		if meta.DisplayName == "" {
			_, objectID, _ := strings.Cut(s.EntityID, ".")
			meta.DisplayName = objectID
		}
		if device, ok := deviceByID[meta.DeviceID]; ok {
			meta.DeviceName = device.Name
			if meta.AreaID == "" {
				meta.AreaID = device.AreaID
			}
		}
		meta.AreaName = areaNames[meta.AreaID]
		result[s.EntityID] = meta
	}
	return result
}
