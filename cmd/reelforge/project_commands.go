package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/fileutil"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects on a running daemon",
	}
	projectCmd.AddCommand(
		newProjectCreateCommand(ctx),
		newProjectListCommand(ctx),
		newProjectStatusCommand(ctx),
		newProjectUploadCommand(ctx),
		newProjectAssembleCommand(ctx),
		newProjectPlanCommand(ctx),
		newProjectDownloadCommand(ctx),
		newProjectDeleteCommand(ctx),
	)
	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "create <descriptor.yaml|descriptor.json>",
		Short: "Submit a scene descriptor and print the new project ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				st, err := client.CreateProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, st)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Project %s created (%d assets required)\n", st.ID, st.Required)
				for _, name := range st.Missing {
					fmt.Fprintf(out, "  missing: %s\n", name)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects known to the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *apiClient) error {
				items, err := client.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					if items == nil {
						items = []api.ProjectStatus{}
					}
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No projects")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Phase", "Assets", "Progress", "Updated"},
					projectRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func projectRows(items []api.ProjectStatus) [][]string {
	rows := make([][]string, 0, len(items))
	for _, st := range items {
		progress := fmt.Sprintf("%d%%", st.Percentage)
		if st.Render != nil {
			progress = progressText(st.Render.Percent)
		}
		rows = append(rows, []string{
			st.ID,
			titleCase(st.Phase),
			fmt.Sprintf("%d/%d", st.Uploaded, st.Required),
			progress,
			relativeTime(st.UpdatedAt),
		})
	}
	return rows
}

func newProjectStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show readiness for one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				st, err := client.GetProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, st)
				}
				printProjectStatus(cmd, st)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printProjectStatus(cmd *cobra.Command, st api.ProjectStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project:      %s\n", st.ID)
	fmt.Fprintf(out, "Phase:        %s\n", titleCase(st.Phase))
	fmt.Fprintf(out, "Assets:       %d/%d (%d%%)\n", st.Uploaded, st.Required, st.Percentage)
	fmt.Fprintf(out, "Can assemble: %s\n", yesNo(st.CanAssemble))
	if len(st.Missing) > 0 {
		fmt.Fprintf(out, "Missing:      %s\n", strings.Join(st.Missing, ", "))
	}
	if st.Render != nil {
		fmt.Fprintf(out, "Render:       %s at %s (%.2fx)\n", progressText(st.Render.Percent), formatSeconds(st.Render.OutTimeSeconds), st.Render.Speed)
	}
	if st.OutputPath != "" {
		fmt.Fprintf(out, "Output:       %s\n", st.OutputPath)
	}
	if st.LastError != "" {
		fmt.Fprintf(out, "Last error:   %s\n", st.LastError)
	}
	fmt.Fprintf(out, "Updated:      %s\n", relativeTime(st.UpdatedAt))
}

func newProjectUploadCommand(ctx *commandContext) *cobra.Command {
	var name string
	var contentType string
	cmd := &cobra.Command{
		Use:   "upload <project-id> <file>...",
		Short: "Upload asset files; each is stored under its base name unless --name is set",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, files := args[0], args[1:]
			if name != "" && len(files) > 1 {
				return errors.New("--name can only be used with a single file")
			}
			return ctx.withClient(func(client *apiClient) error {
				out := cmd.OutOrStdout()
				for _, path := range files {
					assetName := name
					if assetName == "" {
						assetName = filepath.Base(path)
					}
					resp, err := client.UploadAsset(cmd.Context(), id, assetName, path, contentType)
					if err != nil {
						return fmt.Errorf("upload %s: %w", assetName, err)
					}
					fmt.Fprintf(out, "Uploaded %s (%s, %s) - %d/%d assets\n",
						resp.Asset.Name, formatBytes(resp.Asset.Size), resp.Asset.Category,
						resp.Project.Uploaded, resp.Project.Required)
					if resp.Project.CanAssemble {
						fmt.Fprintf(out, "Project %s is ready to assemble\n", id)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Asset name as referenced by the descriptor")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Declared MIME type (detected when empty)")
	return cmd
}

func newProjectAssembleCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "assemble <project-id>",
		Short: "Render a ready project and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				result, err := client.Assemble(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s (%s, %s of video in %s)\n",
					result.OutputPath, formatBytes(result.Size),
					formatSeconds(result.DurationSeconds), formatSeconds(result.ElapsedSeconds))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newProjectPlanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plan <project-id>",
		Short: "Show the ffmpeg inputs and filter graph the daemon would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				plan, err := client.Plan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, plan)
				}
				printPlan(cmd, plan)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newProjectDownloadCommand(ctx *commandContext) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "download <project-id>",
		Short: "Fetch the rendered MP4 of a completed project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			dest := strings.TrimSpace(target)
			if dest == "" {
				dest = fileutil.SanitizeName(id) + ".mp4"
			}
			tmp := dest + ".part"
			return ctx.withClient(func(client *apiClient) error {
				file, err := os.Create(tmp)
				if err != nil {
					return fmt.Errorf("create %s: %w", tmp, err)
				}
				n, err := client.DownloadOutput(cmd.Context(), id, file)
				closeErr := file.Close()
				if err == nil {
					err = closeErr
				}
				if err != nil {
					_ = os.Remove(tmp)
					return err
				}
				if err := os.Rename(tmp, dest); err != nil {
					return fmt.Errorf("finalize %s: %w", dest, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", dest, formatBytes(n))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&target, "output", "o", "", "Destination file (default <project-id>.mp4)")
	return cmd
}

func newProjectDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <project-id>",
		Aliases: []string{"rm"},
		Short:   "Evict a project and remove its scratch files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				if err := client.DeleteProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %s deleted\n", args[0])
				return nil
			})
		},
	}
}
