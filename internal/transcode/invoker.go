package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/fileutil"
	"reelforge/internal/filtergraph"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// ErrTranscodeFailed marks every failed render.
var ErrTranscodeFailed = fmt.Errorf("%w: transcode failed", services.ErrExternalTool)

const diagnosticTailLines = 40

// Verifier confirms a rendered file is playable.
type Verifier interface {
	VerifyVideo(ctx context.Context, path string) error
}

// Failure describes a render that did not produce a usable artifact.
type Failure struct {
	Reason   string
	Err      error
	Tail     []string
	TimedOut bool
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("transcode failed")
	if f.Reason != "" {
		b.WriteString(": " + f.Reason)
	}
	if f.Err != nil {
		b.WriteString(": " + f.Err.Error())
	}
	if len(f.Tail) > 0 {
		b.WriteString(": " + f.Tail[len(f.Tail)-1])
	}
	return b.String()
}

// Unwrap exposes the cause alongside the failure markers.
func (f *Failure) Unwrap() []error {
	errs := []error{ErrTranscodeFailed}
	if f.TimedOut {
		errs = append(errs, services.ErrTimeout)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// Diagnostics joins the captured ffmpeg output.
func (f *Failure) Diagnostics() string {
	return strings.Join(f.Tail, "\n")
}

// Request is one render job.
type Request struct {
	ProjectID string
	Plan      filtergraph.Plan
	// Progress, when set, receives every parsed progress block.
	Progress func(Progress)
}

// Result describes a successful render.
type Result struct {
	OutputPath string
	Size       int64
	Elapsed    time.Duration
	Args       []string
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithExecutor replaces the subprocess runner (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(i *Invoker) {
		if exec != nil {
			i.exec = exec
		}
	}
}

// WithVerifier enables post-render verification.
func WithVerifier(v Verifier) Option {
	return func(i *Invoker) {
		i.verifier = v
	}
}

// WithLogger sets the invoker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Invoker renders plans with ffmpeg.
type Invoker struct {
	settings Settings
	exec     Executor
	verifier Verifier
	logger   *slog.Logger
}

// New constructs an invoker.
func New(settings Settings, opts ...Option) (*Invoker, error) {
	settings.Binary = strings.TrimSpace(settings.Binary)
	if settings.Binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "init", "ffmpeg binary required", nil)
	}
	if strings.TrimSpace(settings.OutputDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "init", "output directory required", nil)
	}
	inv := &Invoker{
		settings: settings,
		exec:     commandExecutor{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	inv.logger = logging.NewComponentLogger(inv.logger, "transcode")
	return inv, nil
}

// Settings returns the encoder settings in use.
func (i *Invoker) Settings() Settings {
	return i.settings
}

// OutputPath allocates a unique artifact path for a project.
func (i *Invoker) OutputPath(projectID string) string {
	base := fileutil.SanitizeName(projectID)
	if base == "" {
		base = "render"
	}
	return filepath.Join(i.settings.OutputDir, base+"-"+uuid.NewString()+".mp4")
}

// Transcode renders req.Plan and returns the artifact location.
func (i *Invoker) Transcode(ctx context.Context, req Request) (Result, error) {
	if len(req.Plan.Inputs) == 0 || req.Plan.FilterComplex == "" {
		return Result{}, &Failure{Reason: "empty plan"}
	}
	if err := os.MkdirAll(i.settings.OutputDir, 0o755); err != nil {
		return Result{}, &Failure{Reason: "create output directory", Err: err}
	}

	runCtx := ctx
	if i.settings.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.settings.Timeout)
		defer cancel()
	}

	output := i.OutputPath(req.ProjectID)
	args := BuildArgs(req.Plan, i.settings, output)
	logger := logging.WithContext(ctx, i.logger)
	logger.Info("launching ffmpeg",
		logging.String("command", CommandLine(i.settings.Binary, args)),
		logging.Int("inputs", len(req.Plan.Inputs)),
		logging.Float64("planned_seconds", req.Plan.TotalDuration),
		logging.String("output", output),
	)

	parser := newProgressParser(time.Duration(req.Plan.TotalDuration * float64(time.Second)))
	diag := newTail(diagnosticTailLines)
	lastLogged := -1
	started := time.Now()
	runErr := i.exec.Run(runCtx, i.settings.Binary, args, func(line string) {
		update, complete, isProgress := parser.feed(line)
		if !isProgress {
			diag.add(line)
			logger.Debug("ffmpeg output", logging.String("line", line))
			return
		}
		if !complete {
			return
		}
		if req.Progress != nil {
			req.Progress(update)
		}
		if step := int(update.Percent) / 25; update.Percent >= 0 && step > lastLogged {
			lastLogged = step
			logger.Info("render progress",
				logging.Float64("percent", update.Percent),
				logging.Duration("out_time", update.OutTime),
				logging.Float64("speed", update.Speed),
			)
		}
	})
	elapsed := time.Since(started)

	if runErr != nil {
		i.discard(logger, output)
		failure := &Failure{Err: runErr, Tail: diag.snapshot()}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			failure.TimedOut = true
			failure.Reason = fmt.Sprintf("exceeded %s", i.settings.Timeout)
		} else if ctx.Err() != nil {
			failure.Reason = "canceled"
		} else {
			failure.Reason = "ffmpeg exited with error"
		}
		return Result{}, failure
	}

	info, err := os.Stat(output)
	switch {
	case err != nil:
		i.discard(logger, output)
		return Result{}, &Failure{Reason: "no output file produced", Err: err, Tail: diag.snapshot()}
	case info.Size() == 0:
		i.discard(logger, output)
		return Result{}, &Failure{Reason: "output file is empty", Tail: diag.snapshot()}
	}

	if i.verifier != nil {
		if err := i.verifier.VerifyVideo(ctx, output); err != nil {
			i.discard(logger, output)
			return Result{}, &Failure{Reason: "output verification failed", Err: err, Tail: diag.snapshot()}
		}
	}

	logger.Info("ffmpeg finished",
		logging.String("output", output),
		logging.Int64("size_bytes", info.Size()),
		logging.Duration("elapsed", elapsed),
	)
	return Result{OutputPath: output, Size: info.Size(), Elapsed: elapsed, Args: args}, nil
}

func (i *Invoker) discard(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove partial output", "transcode_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually"),
			logging.String(logging.FieldImpact, "partial artifact remains in the output directory"),
		)
	}
}
