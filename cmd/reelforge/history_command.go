package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var projectID string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent assembly attempts from the history ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			attempts, err := store.ListAttempts(cmd.Context(), strings.TrimSpace(projectID), limit)
			if err != nil {
				return err
			}
			summary, err := store.Summarize(cmd.Context())
			if err != nil {
				return err
			}
			resp := api.FromHistory(attempts, summary)
			if asJSON {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d projects, %d attempts (%d completed, %d failed, %d running)\n",
				summary.Projects, summary.Attempts, summary.Completed, summary.Failed, summary.Running)
			if len(resp.Attempts) == 0 {
				fmt.Fprintln(out, "No attempts recorded")
				return nil
			}
			rows := make([][]string, 0, len(resp.Attempts))
			for _, a := range resp.Attempts {
				detail := a.OutputPath
				if a.State == string(history.AttemptFailed) {
					detail = a.ErrorMessage
					if a.ErrorKind != "" {
						detail = a.ErrorKind + ": " + detail
					}
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", a.ID),
					a.ProjectID,
					titleCase(a.State),
					relativeTime(a.StartedAt),
					formatSeconds(a.ElapsedSeconds),
					formatBytes(a.OutputBytes),
					dashIfEmpty(detail),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Project", "State", "Started", "Elapsed", "Size", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Only attempts for this project")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum attempts to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
