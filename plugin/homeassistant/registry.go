package homeassistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	hscontext "github.com/hrygo/homesense/plugin/ai/context"
)

// Registry file names under the .storage directory.
const (
	AreaRegistryFile   = "core.area_registry"
	DeviceRegistryFile = "core.device_registry"
	EntityRegistryFile = "core.entity_registry"
)

type storageFile[T any] struct {
	Version int `json:"version"`
	Data    T   `json:"data"`
}

type areaData struct {
	Areas []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"areas"`
}

type deviceData struct {
	Devices []struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		NameByUser *string `json:"name_by_user"`
		AreaID     *string `json:"area_id"`
	} `json:"devices"`
}

type entityData struct {
	Entities []struct {
		EntityID     string  `json:"entity_id"`
		Name         *string `json:"name"`
		OriginalName *string `json:"original_name"`
		DeviceID     *string `json:"device_id"`
		AreaID       *string `json:"area_id"`
		Platform     string  `json:"platform"`
		DisabledBy   *string `json:"disabled_by"`
	} `json:"entities"`
}

// Registry serves area, device and entity registries read from a Home
// Assistant .storage directory. A missing file yields an empty registry.
type Registry struct {
	dir string

	mu       sync.RWMutex
	areas    []*hscontext.Area
	devices  []*hscontext.Device
	entities []*hscontext.EntityEntry
}

// NewRegistry loads the registries from dir.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{dir: dir}
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load re-reads all registry files.
func (r *Registry) Load() error {
	var areas storageFile[areaData]
	if err := readStorage(filepath.Join(r.dir, AreaRegistryFile), &areas); err != nil {
		return err
	}
	var devices storageFile[deviceData]
	if err := readStorage(filepath.Join(r.dir, DeviceRegistryFile), &devices); err != nil {
		return err
	}
	var entities storageFile[entityData]
	if err := readStorage(filepath.Join(r.dir, EntityRegistryFile), &entities); err != nil {
		return err
	}

	loadedAreas := make([]*hscontext.Area, 0, len(areas.Data.Areas))
	for _, a := range areas.Data.Areas {
		loadedAreas = append(loadedAreas, &hscontext.Area{ID: a.ID, Name: a.Name})
	}

	loadedDevices := make([]*hscontext.Device, 0, len(devices.Data.Devices))
	for _, d := range devices.Data.Devices {
		name := d.Name
		if d.NameByUser != nil && *d.NameByUser != "" {
			name = *d.NameByUser
		}
		loadedDevices = append(loadedDevices, &hscontext.Device{ID: d.ID, Name: name, AreaID: deref(d.AreaID)})
	}

	loadedEntities := make([]*hscontext.EntityEntry, 0, len(entities.Data.Entities))
	for _, e := range entities.Data.Entities {
		name := deref(e.Name)
		if name == "" {
			name = deref(e.OriginalName)
		}
		loadedEntities = append(loadedEntities, &hscontext.EntityEntry{
			EntityID: e.EntityID,
			Name:     name,
			DeviceID: deref(e.DeviceID),
			AreaID:   deref(e.AreaID),
			Platform: e.Platform,
			Disabled: e.DisabledBy != nil,
		})
	}

	r.mu.Lock()
	r.areas, r.devices, r.entities = loadedAreas, loadedDevices, loadedEntities
	r.mu.Unlock()

	slog.Debug("registries loaded",
		"dir", r.dir,
		"areas", len(loadedAreas),
		"devices", len(loadedDevices),
		"entities", len(loadedEntities),
	)
	return nil
}

// ListAreas returns the area registry.
func (r *Registry) ListAreas(ctx context.Context) ([]*hscontext.Area, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*hscontext.Area(nil), r.areas...), nil
}

// ListDevices returns the device registry.
func (r *Registry) ListDevices(ctx context.Context) ([]*hscontext.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*hscontext.Device(nil), r.devices...), nil
}

// ListEntities returns the entity registry.
func (r *Registry) ListEntities(ctx context.Context) ([]*hscontext.EntityEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*hscontext.EntityEntry(nil), r.entities...), nil
}

// Watch reloads the registries whenever one of the files changes, until ctx
// is done. Home Assistant replaces the files atomically, so the directory is
// watched rather than the files. Failed reloads keep the previous data.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create registry watcher")
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "failed to watch %s", r.dir)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isRegistryFile(event.Name) || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if err := r.Load(); err != nil {
					slog.Warn("failed to reload registries", "file", event.Name, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("registry watcher error", "error", err)
			}
		}
	}()
	return nil
}

func isRegistryFile(path string) bool {
	switch filepath.Base(path) {
	case AreaRegistryFile, DeviceRegistryFile, EntityRegistryFile:
		return true
	default:
		return false
	}
}

func readStorage(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
