package homeassistant

import (
	"context"

	hscontext "github.com/hrygo/homesense/plugin/ai/context"
)

// StateLister lists current entity states.
type StateLister interface {
	ListAllStates(ctx context.Context) ([]*hscontext.EntityState, error)
}

// RegistryReader lists registry metadata.
type RegistryReader interface {
	ListAreas(ctx context.Context) ([]*hscontext.Area, error)
	ListDevices(ctx context.Context) ([]*hscontext.Device, error)
	ListEntities(ctx context.Context) ([]*hscontext.EntityEntry, error)
}

// Catalog combines live states with registry metadata. Without a registry
// the metadata lists are empty.
type Catalog struct {
	StateLister
	registry RegistryReader
}

// NewCatalog creates a catalog. registry may be nil.
func NewCatalog(states StateLister, registry RegistryReader) *Catalog {
	return &Catalog{StateLister: states, registry: registry}
}

// ListAreas implements context.Catalog.
func (c *Catalog) ListAreas(ctx context.Context) ([]*hscontext.Area, error) {
	if c.registry == nil {
		return nil, nil
	}
	return c.registry.ListAreas(ctx)
}

// ListDevices implements context.Catalog.
func (c *Catalog) ListDevices(ctx context.Context) ([]*hscontext.Device, error) {
	if c.registry == nil {
		return nil, nil
	}
	return c.registry.ListDevices(ctx)
}

// ListEntities implements context.Catalog.
func (c *Catalog) ListEntities(ctx context.Context) ([]*hscontext.EntityEntry, error) {
	if c.registry == nil {
		return nil, nil
	}
	return c.registry.ListEntities(ctx)
}

var (
	_ hscontext.Catalog       = (*Catalog)(nil)
	_ hscontext.HistorySource = (*Client)(nil)
	_ hscontext.LogbookSource = (*Client)(nil)
	_ RegistryReader          = (*Registry)(nil)
)
