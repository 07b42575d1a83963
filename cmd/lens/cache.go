package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/pkg/protocol"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the host's translation cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached translation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := ctx.client().Do(cmd.Context(), protocol.ClearCache{})
			if err != nil {
				return err
			}
			if e, ok := reply.(protocol.Error); ok {
				return errors.User(errors.CodeTranslationFailed, e.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	})
	return cmd
}
