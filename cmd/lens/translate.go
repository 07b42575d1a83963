package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lingua-lens/lens/pkg/protocol"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var from, to, output string

	cmd := &cobra.Command{
		Use:   "translate TEXT...",
		Short: "Translate a subtitle line through the running host",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			resp, err := ctx.client().Translate(cmd.Context(), protocol.TranslateRequest{
				Text:       strings.Join(args, " "),
				SourceLang: from,
				TargetLang: to,
			})
			if err != nil {
				return err
			}
			if ok, err := writeStructured(cmd.OutOrStdout(), format, resp); ok {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTranslation(resp))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source language (default from settings)")
	cmd.Flags().StringVar(&to, "to", "", "Target language (default from settings)")
	addOutputFlag(cmd, &output)
	return cmd
}

func renderTranslation(resp protocol.TranslateResponse) string {
	r := resp.Result
	pairs := [][2]string{{"Translation", r.Translation}}
	for _, p := range [][2]string{
		{"Meaning", r.Meaning},
		{"Key phrase", r.KeyPhrase},
		{"Pronunciation", r.Pronunciation},
		{"Usage", r.UsageNote},
	} {
		if p[1] != "" {
			pairs = append(pairs, p)
		}
	}
	pairs = append(pairs, [2]string{"Source", string(resp.Source)})
	return renderPairs(pairs)
}
