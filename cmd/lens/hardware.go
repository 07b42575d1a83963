package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHardwareCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "hardware",
		Short: "Profile this machine and show the recommended model",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := zap.NewNop()
			profile := newProfiler(newRuntime(cfg, logger), logger).Detect(cmd.Context())
			if ok, err := writeStructured(cmd.OutOrStdout(), format, profile); ok {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPairs(hardwarePairs(profile)))
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}
