package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/logging"
	"reelforge/internal/transcode"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var assetsDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan <descriptor>",
		Short: "Print the ffmpeg invocation a descriptor synthesizes to, without rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			session, err := openLocalSession(runCtx, cfg, logging.NewNop(), args[0], assetsDir)
			if err != nil {
				return err
			}
			defer session.close(runCtx)
			if err := session.upload(runCtx); err != nil {
				return err
			}

			plan, missing, err := session.engine.Registry.Plan(runCtx, session.id)
			if err != nil {
				return err
			}
			settings := session.engine.Invoker.Settings()
			argv := transcode.BuildArgs(plan, settings, filepath.Join(settings.OutputDir, session.id+".mp4"))
			resp := api.FromPlan(session.id, plan, missing, argv, transcode.CommandLine(settings.Binary, argv))
			if asJSON {
				return writeJSON(cmd, resp)
			}
			printPlan(cmd, resp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&assetsDir, "assets", "a", "", "Directory holding the referenced asset files")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printPlan(cmd *cobra.Command, plan api.PlanResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Resolution: %s, %s total\n", plan.Resolution, formatSeconds(plan.TotalSeconds))
	if len(plan.Missing) > 0 {
		fmt.Fprintf(out, "Missing:    %s (shown as placeholders)\n", strings.Join(plan.Missing, ", "))
	}

	rows := make([][]string, 0, len(plan.Inputs))
	for _, in := range plan.Inputs {
		duration := "-"
		if in.Looped {
			duration = formatSeconds(in.DurationSeconds)
		}
		rows = append(rows, []string{fmt.Sprintf("%d", in.Index), in.Name, yesNo(in.Looped), duration, in.Path})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Asset", "Looped", "Length", "Path"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	))

	fmt.Fprintln(out, "Filter graph:")
	fmt.Fprintf(out, "  %s\n", plan.FilterComplex)
	audio := "(none)"
	if plan.AudioLabel != "" {
		audio = "[" + plan.AudioLabel + "]"
	}
	fmt.Fprintf(out, "Maps: video [%s], audio %s\n", plan.VideoLabel, audio)
	fmt.Fprintln(out, "Command:")
	fmt.Fprintf(out, "  %s\n", plan.CommandLine)
}
