package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelforge/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines     int
		follow    bool
		projectID string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logs.CurrentPath(cfg.Paths.LogDir)
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("no daemon log at %s; has `reelforge daemon` run?", path)
				}
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			return logs.Follow(runCtx, path, logs.Options{
				Lines:  lines,
				Follow: follow,
				Filter: logs.MatchProject(projectID),
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Only show lines for this project")
	return cmd
}
