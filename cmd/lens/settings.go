package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lingua-lens/lens/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change translation settings",
	}
	cmd.AddCommand(newSettingsShowCommand(ctx))
	cmd.AddCommand(newSettingsSetCommand(ctx))
	cmd.AddCommand(newSettingsResetCommand(ctx))
	return cmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			return ctx.withSettings(func(store *settings.Store) error {
				current, err := store.Load(cmd.Context())
				if err != nil {
					return err
				}
				current = current.Redacted()
				if ok, err := writeStructured(cmd.OutOrStdout(), format, current); ok {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSettings(current))
				return nil
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "set KEY VALUE",
		Short:     "Change one setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: settings.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSettings(func(store *settings.Store) error {
				if err := store.Set(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])
				return nil
			})
		},
	}
}

func newSettingsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore every setting to its default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSettings(func(store *settings.Store) error {
				if err := store.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults")
				return nil
			})
		},
	}
}

func renderSettings(s settings.Settings) string {
	key := s.CloudAPIKey
	if key == "" {
		key = "-"
	}
	return renderTable(
		[]string{"Setting", "Value"},
		[][]string{
			{"enabled", yesNo(s.Enabled)},
			{"sourceLanguage", s.SourceLanguage},
			{"targetLanguage", s.TargetLanguage},
			{"selectedModel", s.SelectedModel},
			{"cloudApiUrl", s.CloudAPIURL},
			{"cloudApiKey", key},
			{"useCloudFallback", yesNo(s.UseCloudFallback)},
		},
		nil,
	)
}
