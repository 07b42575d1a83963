package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lingua-lens/lens/internal/stats"
	"github.com/lingua-lens/lens/pkg/protocol"
)

type statusView struct {
	Status protocol.StatusResponse `json:"status" yaml:"status"`
	Stats  *stats.Stats            `json:"stats,omitempty" yaml:"stats,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine, hardware and routing status of the running host",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			c := ctx.client()
			status, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			view := statusView{Status: status}
			if st, err := c.Stats(cmd.Context()); err == nil {
				view.Stats = st
			}
			if ok, err := writeStructured(cmd.OutOrStdout(), format, view); ok {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(view))
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func renderStatus(v statusView) string {
	model := v.Status.ModelID
	if model == "" {
		model = "-"
	}
	pairs := [][2]string{
		{"Engine ready", yesNo(v.Status.EngineReady)},
		{"Model", model},
	}
	if hw := v.Status.Hardware; hw != nil {
		pairs = append(pairs, hardwarePairs(*hw)...)
	}
	if st := v.Stats; st != nil {
		pairs = append(pairs,
			[2]string{"Uptime", st.Uptime},
			[2]string{"Routes", strconv.FormatInt(st.Routes, 10)},
			[2]string{"Cache hits", strconv.FormatInt(st.CacheHits, 10)},
			[2]string{"Local routes", strconv.FormatInt(st.LocalRoutes, 10)},
			[2]string{"Cloud routes", strconv.FormatInt(st.CloudRoutes, 10)},
			[2]string{"Failures (local/cloud)", fmt.Sprintf("%d/%d", st.LocalFailures, st.CloudFailures)},
			[2]string{"Exhausted", strconv.FormatInt(st.Exhaustions, 10)},
			[2]string{"Avg latency", fmt.Sprintf("%.1f ms", st.AvgLatencyMs)},
			[2]string{"Cache entries", strconv.Itoa(st.CacheEntries)},
		)
		if u := st.Usage; u != nil {
			pairs = append(pairs,
				[2]string{"Tokens today (local/cloud)", fmt.Sprintf("%d/%d", u.LocalTokens, u.CloudTokens)},
				[2]string{"Served locally", fmt.Sprintf("%.0f%%", u.LocalRate)},
				[2]string{"Est. cloud cost", fmt.Sprintf("$%.4f", u.CloudCost)},
				[2]string{"Est. savings", fmt.Sprintf("$%.4f", u.Savings)},
			)
		}
	}
	return renderPairs(pairs)
}

func hardwarePairs(hw protocol.HardwareProfile) [][2]string {
	memory := "-"
	if hw.EstimatedMemoryMB > 0 {
		memory = fmt.Sprintf("%d MB", hw.EstimatedMemoryMB)
	}
	return [][2]string{
		{"Vendor", hw.Vendor},
		{"Accelerated compute", yesNo(hw.HasAcceleratedCompute)},
		{"Portable runtime", yesNo(hw.HasPortableRuntime)},
		{"Memory", memory},
		{"Can run local", yesNo(hw.CanRunLocal)},
		{"Recommended model", hw.RecommendedModel},
	}
}
