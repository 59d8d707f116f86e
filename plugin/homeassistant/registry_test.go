package homeassistant

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hscontext "github.com/hrygo/homesense/plugin/ai/context"
)

const areaRegistryJSON = `{"version": 1, "key": "core.area_registry", "data": {"areas": [
	{"id": "kitchen", "name": "Kitchen"}
]}}`

const deviceRegistryJSON = `{"version": 1, "key": "core.device_registry", "data": {"devices": [
	{"id": "dev_kettle", "name": "Smart Plug", "name_by_user": "Kettle", "area_id": "kitchen"},
	{"id": "dev_hub", "name": "Hub", "name_by_user": null, "area_id": null}
]}}`

const entityRegistryJSON = `{"version": 1, "key": "core.entity_registry", "data": {"entities": [
	{"entity_id": "light.kitchen", "name": null, "original_name": "Ceiling", "device_id": null, "area_id": "kitchen", "platform": "hue", "disabled_by": null},
	{"entity_id": "switch.kettle", "name": "Kettle Switch", "device_id": "dev_kettle", "area_id": null, "platform": "tplink", "disabled_by": null},
	{"entity_id": "sensor.hub_cpu", "name": null, "original_name": null, "device_id": "dev_hub", "platform": "hub", "disabled_by": "integration"}
]}}`

func writeRegistries(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AreaRegistryFile), []byte(areaRegistryJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DeviceRegistryFile), []byte(deviceRegistryJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, EntityRegistryFile), []byte(entityRegistryJSON), 0o600))
}

func TestRegistry_Load(t *testing.T) {
	dir := t.TempDir()
	writeRegistries(t, dir)

	reg, err := NewRegistry(dir)
	require.NoError(t, err)
	ctx := context.Background()

	areas, _ := reg.ListAreas(ctx)
	assert.Equal(t, []*hscontext.Area{{ID: "kitchen", Name: "Kitchen"}}, areas)

	devices, _ := reg.ListDevices(ctx)
	require.Len(t, devices, 2)
	assert.Equal(t, &hscontext.Device{ID: "dev_kettle", Name: "Kettle", AreaID: "kitchen"}, devices[0])
	assert.Equal(t, "", devices[1].AreaID)

	entities, _ := reg.ListEntities(ctx)
	require.Len(t, entities, 3)
	assert.Equal(t, "Ceiling", entities[0].Name)
	assert.Equal(t, "Kettle Switch", entities[1].Name)
	assert.Equal(t, "dev_kettle", entities[1].DeviceID)
	assert.False(t, entities[1].Disabled)
	assert.True(t, entities[2].Disabled)
}

func TestRegistry_MissingFiles(t *testing.T) {
	reg, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	areas, err := reg.ListAreas(context.Background())
	require.NoError(t, err)
	assert.Empty(t, areas)
}

func TestRegistry_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AreaRegistryFile), []byte("{"), 0o600))

	_, err := NewRegistry(dir)
	assert.Error(t, err)
}

func TestRegistry_Watch(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistry(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, reg.Watch(ctx))

	writeRegistries(t, dir)

	assert.Eventually(t, func() bool {
		entities, _ := reg.ListEntities(context.Background())
		return len(entities) == 3
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	writeRegistries(t, dir)
	reg, err := NewRegistry(dir)
	require.NoError(t, err)

	states := &hscontext.MockCatalog{States: []*hscontext.EntityState{{EntityID: "light.kitchen", State: "on"}}}
	catalog := NewCatalog(states, reg)
	ctx := context.Background()

	got, err := catalog.ListAllStates(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	areas, _ := catalog.ListAreas(ctx)
	assert.Len(t, areas, 1)

	bare := NewCatalog(states, nil)
	entities, err := bare.ListEntities(ctx)
	assert.NoError(t, err)
	assert.Empty(t, entities)
}
