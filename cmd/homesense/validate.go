package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/homesense/plugin/ai/automation"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-automation <file|->",
		Short: "Validate automation YAML and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return errors.Wrap(err, "failed to read automation")
			}

			result := automation.ValidateYAML(string(data))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Valid {
				return errors.Errorf("automation is invalid: %d error(s)", len(result.Errors))
			}
			return nil
		},
	}
}

func newNotificationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notification [event]",
		Short: "Print the notification template for a household event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(args) == 0 {
				return enc.Encode(automation.EventTypes())
			}
			tmpl, ok := automation.NotificationTemplate(args[0])
			if !ok {
				return errors.Errorf("unknown event type %q", args[0])
			}
			return enc.Encode(tmpl)
		},
	}
}
