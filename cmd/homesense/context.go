package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	hscontext "github.com/hrygo/homesense/plugin/ai/context"
)

func newContextCmd() *cobra.Command {
	var (
		options     []string
		summaryOnly bool
		prompt      bool
	)

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Build the context payload for a query and print it",
		Example: `  homesense context "is the kitchen light on" --snapshot home.yaml
  homesense context "who is home" --option denylist_domains=camera,lock --summary-only`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := loadProfile()
			if err != nil {
				return err
			}

			raw, err := parseOptionFlags(prof.ContextOptions, options)
			if err != nil {
				return err
			}
			if summaryOnly {
				raw["summary_only"] = true
			}
			opts, err := hscontext.DecodeOptions(raw)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd.Context(), prof)
			if err != nil {
				return err
			}
			defer rt.Close()

			query := strings.Join(args, " ")
			payload, err := rt.service.Build(cmd.Context(), query, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if prompt {
				text, err := hscontext.FormatPrompt(query, payload)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, text)
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}

	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "context option as key=value, repeatable")
	cmd.Flags().BoolVar(&summaryOnly, "summary-only", false, "omit entity and logbook arrays")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "print the framed prompt instead of the JSON payload")
	return cmd
}

// parseOptionFlags overlays key=value flags on the configured defaults.
func parseOptionFlags(defaults map[string]any, flags []string) (map[string]any, error) {
	raw := make(map[string]any, len(defaults)+len(flags))
	for k, val := range defaults {
		raw[k] = val
	}
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("invalid option %q, want key=value", f)
		}
		raw[key] = value
	}
	return raw, nil
}
