package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the composition daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.resolvedLogLevel(cfg),
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in log output")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and project status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *apiClient) error {
				st, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, st)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				printSection := func(title string, lines []string) {
					for _, line := range renderSectionHeader(title, colorize) {
						fmt.Fprintln(stdout, line)
					}
					for _, line := range lines {
						fmt.Fprintln(stdout, line)
					}
					fmt.Fprintln(stdout)
				}

				daemonLine := renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d, started %s)", st.PID, relativeTime(st.StartedAt)), colorize)
				if !st.Running {
					daemonLine = renderStatusLine("Daemon", statusWarn, "Not running", colorize)
				}
				system := append([]string{daemonLine}, checkLines(st.Checks, colorize)...)
				system = append(system, renderStatusLine("History", statusInfo, dashIfEmpty(st.HistoryDBPath), colorize))
				printSection("System Status", system)
				printSection("Dependencies", dependencyLines(st.Dependencies, colorize))
				printSection("Host", hostLines(st.Host, colorize))

				for _, line := range renderSectionHeader("Projects", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildPhaseRows(st.Projects)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "No projects")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"Phase", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
