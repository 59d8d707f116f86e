package context

import (
	"context"
	"sync"
	"time"
)

// MockCatalog is an in-memory Catalog for testing.
type MockCatalog struct {
	States   []*EntityState
	Areas    []*Area
	Devices  []*Device
	Entities []*EntityEntry

	StatesErr   error
	RegistryErr error
}

// ListAllStates returns the configured states.
func (m *MockCatalog) ListAllStates(ctx context.Context) ([]*EntityState, error) {
	if m.StatesErr != nil {
		return nil, m.StatesErr
	}
	return m.States, nil
}

// ListAreas returns the configured areas.
func (m *MockCatalog) ListAreas(ctx context.Context) ([]*Area, error) {
	if m.RegistryErr != nil {
		return nil, m.RegistryErr
	}
	return m.Areas, nil
}

// ListDevices returns the configured devices.
func (m *MockCatalog) ListDevices(ctx context.Context) ([]*Device, error) {
	if m.RegistryErr != nil {
		return nil, m.RegistryErr
	}
	return m.Devices, nil
}

// ListEntities returns the configured entity registry.
func (m *MockCatalog) ListEntities(ctx context.Context) ([]*EntityEntry, error) {
	if m.RegistryErr != nil {
		return nil, m.RegistryErr
	}
	return m.Entities, nil
}

// MockHistory is a HistorySource for testing that records its calls.
type MockHistory struct {
	mu      sync.Mutex
	Changes map[string][]StateChange
	Err     error
	calls   int
}

// GetSignificantStates returns the configured changes or error.
func (m *MockHistory) GetSignificantStates(ctx context.Context, start, end time.Time) (map[string][]StateChange, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Changes, nil
}

// Calls returns how often the history was queried.
func (m *MockHistory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockLogbook is a LogbookSource for testing.
type MockLogbook struct {
	Events []*LogbookEvent
	Err    error
}

// GetEvents returns the configured events or error.
func (m *MockLogbook) GetEvents(ctx context.Context, start, end time.Time) ([]*LogbookEvent, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Events, nil
}

var (
	_ Catalog       = (*MockCatalog)(nil)
	_ HistorySource = (*MockHistory)(nil)
	_ LogbookSource = (*MockLogbook)(nil)
)
