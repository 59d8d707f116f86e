package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SUPERVISOR_TOKEN", "")

	p, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "demo", p.Mode)
	assert.Equal(t, 8099, p.Port)
	assert.Equal(t, "http://homeassistant.local:8123", p.HAURL)
	assert.Equal(t, 15*time.Second, p.HATimeout)
	assert.Equal(t, 5*time.Minute, p.CacheTTL)
	assert.Equal(t, 1000, p.CacheCapacity)
	assert.Equal(t, 3, p.SuggestionLimit)
	assert.True(t, p.WatchStore)
	assert.False(t, p.UsesRedis())
	assert.False(t, p.UsesSnapshot())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOMESENSE_MODE", "prod")
	t.Setenv("HOMESENSE_PORT", "9000")
	t.Setenv("HOMESENSE_HA_TOKEN", "abc")
	t.Setenv("HOMESENSE_CACHE_TTL", "90s")
	t.Setenv("HOMESENSE_REDIS_ADDR", "redis:6379")

	p, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "prod", p.Mode)
	assert.False(t, p.IsDev())
	assert.Equal(t, 9000, p.Port)
	assert.Equal(t, "abc", p.HAToken)
	assert.Equal(t, 90*time.Second, p.CacheTTL)
	assert.True(t, p.UsesRedis())
}

func TestLoad_SupervisorToken(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOMESENSE_HA_TOKEN", "")
	t.Setenv("SUPERVISOR_TOKEN", "supervisor")

	p, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, "supervisor", p.HAToken)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "homesense.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: dev
port: 8123
ha_url: http://ha:8123
context_options:
  max_context_entities: 10
  denylist_domains: [camera]
`), 0o600))

	p, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "dev", p.Mode)
	assert.Equal(t, 8123, p.Port)
	assert.Equal(t, "http://ha:8123", p.HAURL)
	assert.EqualValues(t, 10, p.ContextOptions["max_context_entities"])
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func validProfile() *Profile {
	return &Profile{
		Mode:          "dev",
		Port:          8099,
		HAURL:         "http://ha:8123",
		CacheTTL:      time.Minute,
		CacheCapacity: 10,
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "home.yaml")
	require.NoError(t, os.WriteFile(snapshot, []byte("states: []"), 0o600))

	tests := []struct {
		name    string
		mutate  func(*Profile)
		wantErr bool
	}{
		{"valid", func(p *Profile) {}, false},
		{"unknown mode falls back to demo", func(p *Profile) { p.Mode = "staging" }, false},
		{"bad port", func(p *Profile) { p.Port = 0 }, true},
		{"bad ttl", func(p *Profile) { p.CacheTTL = 0 }, true},
		{"bad capacity", func(p *Profile) { p.CacheCapacity = -1 }, true},
		{"no source", func(p *Profile) { p.HAURL = "" }, true},
		{"prod without token", func(p *Profile) { p.Mode = "prod" }, true},
		{"storage dir exists", func(p *Profile) { p.StorageDir = dir }, false},
		{"storage dir missing", func(p *Profile) { p.StorageDir = filepath.Join(dir, "missing") }, true},
		{"storage dir is a file", func(p *Profile) { p.StorageDir = snapshot }, true},
		{"recorder missing", func(p *Profile) { p.Recorder = filepath.Join(dir, "missing.db") }, true},
		{"snapshot", func(p *Profile) { p.HAURL = ""; p.Snapshot = snapshot }, false},
		{"snapshot missing", func(p *Profile) { p.Snapshot = filepath.Join(dir, "x.yaml") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate_NormalizesMode(t *testing.T) {
	p := validProfile()
	p.Mode = "staging"
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
	assert.True(t, p.IsDev())
}
