package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/deps"
	"reelforge/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check ffmpeg, ffprobe, and the filters the synthesizer uses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg, nil)
			if asJSON {
				return writeJSON(cmd, api.FromDependencies(statuses))
			}

			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "ready"
				if !s.Available {
					state = "missing"
					if s.Optional {
						state = "missing (optional)"
					}
				}
				detail := s.Detail
				if s.Available && s.Command != "" {
					detail = s.Command
				}
				rows = append(rows, []string{s.Name, state, dashIfEmpty(detail)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Dependency", "State", "Detail"}, rows, nil))
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies unavailable", len(missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
