package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/fileutil"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/project"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var assetsDir string
	var target string
	var overwrite bool
	var probe bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "render <descriptor>",
		Short: "Render a descriptor in process, reading assets from a directory",
		Long: "Render parses the descriptor, uploads every referenced asset found in --assets\n" +
			"(default: the descriptor's directory) into a private project, and runs ffmpeg\n" +
			"without contacting a daemon.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.cliLogger(cfg)
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			out := cmd.OutOrStdout()

			dest := strings.TrimSpace(target)
			if dest != "" {
				if _, err := os.Stat(dest); err == nil {
					if !overwrite {
						return fmt.Errorf("%s already exists (use --overwrite to replace it)", dest)
					}
					if err := os.Remove(dest); err != nil {
						return fmt.Errorf("remove %s: %w", dest, err)
					}
				}
			}

			session, err := openLocalSession(runCtx, cfg, logger, args[0], assetsDir)
			if err != nil {
				return err
			}
			defer session.close(context.WithoutCancel(runCtx))
			if len(session.missing) > 0 {
				return fmt.Errorf("%w: %s", project.ErrNotReady, strings.Join(session.missing, ", "))
			}

			if probe {
				probes := session.probeAssets(runCtx, ffprobe.New(cfg.FFmpeg.FFprobeBinary, nil))
				for _, p := range probes {
					if p.Err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warn: probe %s: %v\n", p.Name, p.Err)
					}
				}
				for _, line := range session.narrationOverruns(probes) {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: narration trimmed, %s\n", line)
				}
			}

			if err := session.upload(runCtx); err != nil {
				return err
			}

			result, err := assembleWithProgress(runCtx, session, cmd.ErrOrStderr(), shouldColorize(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			if dest != "" {
				if err := fileutil.MoveFile(result.OutputPath, dest); err != nil {
					return fmt.Errorf("move output: %w", err)
				}
				result.OutputPath = dest
			}

			if asJSON {
				return writeJSON(cmd, api.FromResult(result))
			}
			fmt.Fprintf(out, "Rendered %s (%s, %s of video in %s)\n",
				result.OutputPath, formatBytes(result.Size),
				formatSeconds(result.Duration), formatSeconds(result.Elapsed.Seconds()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&assetsDir, "assets", "a", "", "Directory holding the referenced asset files")
	cmd.Flags().StringVarP(&target, "output", "o", "", "Move the rendered MP4 from output_dir to this path")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace --output if it exists")
	cmd.Flags().BoolVar(&probe, "probe", false, "Inspect assets with ffprobe first and warn about overruns")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// assembleWithProgress renders the session's project. On a terminal it
// redraws a progress line from the registry's render status.
func assembleWithProgress(ctx context.Context, session *localSession, progressOut io.Writer, live bool) (project.Result, error) {
	type outcome struct {
		result project.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := session.engine.Registry.Assemble(ctx, session.id)
		done <- outcome{result: result, err: err}
	}()

	if !live {
		o := <-done
		return o.result, o.err
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case o := <-done:
			fmt.Fprint(progressOut, "\r\x1b[K")
			return o.result, o.err
		case <-ticker.C:
			st, err := session.engine.Registry.Status(session.id)
			if errors.Is(err, project.ErrUnknownProject) {
				continue
			}
			if st.Render == nil {
				continue
			}
			fmt.Fprintf(progressOut, "\r\x1b[KRendering %s  %s / %s  %.2fx",
				progressText(st.Render.Percent),
				formatSeconds(st.Render.OutTime.Seconds()),
				formatSeconds(session.desc.TotalDuration()),
				st.Render.Speed)
		}
	}
}
