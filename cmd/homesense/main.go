package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hrygo/homesense/internal/profile"
)

// version is set at build time.
var version = "dev"

var (
	v          = profile.NewViper()
	configFile string

	rootCmd = &cobra.Command{
		Use:   "homesense",
		Short: "Relevance-ranked Home Assistant context for language model prompts",
		Long: `homesense selects the entities, history and logbook lines of a Home Assistant
instance that matter for a question, redacts secrets and returns a compact,
size-bounded context payload.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: ./homesense.yaml or $HOME/.homesense/homesense.yaml)")
	flags.String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("ha-url", "http://homeassistant.local:8123", "Home Assistant base URL")
	flags.String("ha-token", "", "Home Assistant long-lived access token")
	flags.String("storage", "", "Home Assistant .storage directory with the registries")
	flags.String("recorder", "", "recorder database (home-assistant_v2.db) for history and logbook")
	flags.String("snapshot", "", "serve a static home from a YAML or JSON snapshot instead of Home Assistant")
	flags.String("redis-addr", "", "Redis address for the shared response cache")

	// Flags win over env and file values.
	for flag, key := range map[string]string{
		"mode":       "mode",
		"ha-url":     "ha_url",
		"ha-token":   "ha_token",
		"storage":    "storage_dir",
		"recorder":   "recorder",
		"snapshot":   "snapshot",
		"redis-addr": "redis_addr",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(newContextCmd(), newServeCmd(), newValidateCmd(), newNotificationCmd())
}

// loadProfile reads and validates the profile and configures logging.
func loadProfile() (*profile.Profile, error) {
	prof, err := profile.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	prof.Version = version
	if err := prof.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if prof.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return prof, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
