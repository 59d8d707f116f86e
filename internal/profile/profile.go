package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hrygo/homesense/plugin/ai/timeout"
)

// Profile is the configuration to start the context server and CLI.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string `mapstructure:"mode"`
	// Addr is the binding address for server
	Addr string `mapstructure:"addr"`
	// Port is the binding port for server
	Port int `mapstructure:"port"`
	// Version is the current version of server
	Version string `mapstructure:"version"`

	// Home Assistant connection
	HAURL      string        `mapstructure:"ha_url"`        // HOMESENSE_HA_URL (default: http://homeassistant.local:8123)
	HAToken    string        `mapstructure:"ha_token"`      // HOMESENSE_HA_TOKEN
	HATimeout  time.Duration `mapstructure:"ha_timeout"`    // HOMESENSE_HA_TIMEOUT (default: 15s)
	StorageDir string        `mapstructure:"storage_dir"`   // HOMESENSE_STORAGE_DIR, the .storage directory holding the registries
	Recorder   string        `mapstructure:"recorder"`      // HOMESENSE_RECORDER, path to home-assistant_v2.db
	Snapshot   string        `mapstructure:"snapshot"`      // HOMESENSE_SNAPSHOT, static home document; replaces HA when set
	WatchStore bool          `mapstructure:"watch_storage"` // HOMESENSE_WATCH_STORAGE (default: true)

	// Response cache
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`        // HOMESENSE_CACHE_TTL (default: 5m)
	CacheCapacity   int           `mapstructure:"cache_capacity"`   // HOMESENSE_CACHE_CAPACITY (default: 1000)
	RedisAddr       string        `mapstructure:"redis_addr"`       // HOMESENSE_REDIS_ADDR, enables the Redis backend
	RedisPassword   string        `mapstructure:"redis_password"`   // HOMESENSE_REDIS_PASSWORD
	RedisDB         int           `mapstructure:"redis_db"`         // HOMESENSE_REDIS_DB
	SuggestionLimit int           `mapstructure:"suggestion_limit"` // HOMESENSE_SUGGESTION_LIMIT (default: 3)

	// HTTP rate limiting per client IP
	RateLimit float64 `mapstructure:"rate_limit"` // HOMESENSE_RATE_LIMIT, requests per second (default: 10)
	RateBurst int     `mapstructure:"rate_burst"` // HOMESENSE_RATE_BURST (default: 20)

	// ContextOptions are default context options merged under each request.
	ContextOptions map[string]any `mapstructure:"context_options"`
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// UsesSnapshot reports whether the home is served from a snapshot file.
func (p *Profile) UsesSnapshot() bool {
	return p.Snapshot != ""
}

// UsesRedis reports whether the response cache lives in Redis.
func (p *Profile) UsesRedis() bool {
	return p.RedisAddr != ""
}

// SetDefaults registers the default values on v. Every key needs one so
// AutomaticEnv picks it up during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "demo")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8099)
	v.SetDefault("version", "")
	v.SetDefault("ha_url", "http://homeassistant.local:8123")
	v.SetDefault("ha_token", "")
	v.SetDefault("ha_timeout", timeout.HostRequestTimeout)
	v.SetDefault("storage_dir", "")
	v.SetDefault("recorder", "")
	v.SetDefault("snapshot", "")
	v.SetDefault("watch_storage", true)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("cache_capacity", 1000)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("suggestion_limit", 3)
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)
}

// NewViper returns a viper instance reading HOMESENSE_* environment variables
// and an optional homesense.yaml from the working directory or
// $HOME/.homesense.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigName("homesense")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.homesense")
	v.SetEnvPrefix("homesense")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file if present and decodes v into a profile.
// An explicit configFile must exist.
func Load(v *viper.Viper, configFile string) (*Profile, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	p := &Profile{}
	if err := v.Unmarshal(p); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	// Supervisor add-ons get their token injected.
	if p.HAToken == "" {
		p.HAToken = os.Getenv("SUPERVISOR_TOKEN")
	}
	return p, nil
}

func checkPath(kind, path string, wantDir bool) (string, error) {
	abs, err := filepath.Abs(strings.TrimRight(path, "\\/"))
	if err != nil {
		return "", errors.Wrapf(err, "invalid %s path %s", kind, path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.Wrapf(err, "unable to access %s %s", kind, abs)
	}
	if info.IsDir() != wantDir {
		return "", errors.Errorf("%s %s has the wrong file type", kind, abs)
	}
	return abs, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.CacheTTL <= 0 {
		return errors.Errorf("cache ttl must be positive, got %s", p.CacheTTL)
	}
	if p.CacheCapacity <= 0 {
		return errors.Errorf("cache capacity must be positive, got %d", p.CacheCapacity)
	}

	if p.UsesSnapshot() {
		snapshot, err := checkPath("snapshot", p.Snapshot, false)
		if err != nil {
			slog.Error("failed to check snapshot", slog.String("snapshot", p.Snapshot), slog.String("error", err.Error()))
			return err
		}
		p.Snapshot = snapshot
		return nil
	}

	if p.HAURL == "" {
		return errors.New("either a snapshot or a Home Assistant URL is required")
	}
	if p.Mode == "prod" && p.HAToken == "" {
		return errors.New("a Home Assistant token is required in prod mode")
	}
	if p.StorageDir != "" {
		dir, err := checkPath("storage directory", p.StorageDir, true)
		if err != nil {
			slog.Error("failed to check storage directory", slog.String("storage_dir", p.StorageDir), slog.String("error", err.Error()))
			return err
		}
		p.StorageDir = dir
	}
	if p.Recorder != "" {
		db, err := checkPath("recorder database", p.Recorder, false)
		if err != nil {
			slog.Error("failed to check recorder database", slog.String("recorder", p.Recorder), slog.String("error", err.Error()))
			return err
		}
		p.Recorder = db
	}
	return nil
}
