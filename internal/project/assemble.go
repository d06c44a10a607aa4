package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reelforge/internal/filtergraph"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/notifications"
	"reelforge/internal/scene"
	"reelforge/internal/services"
	"reelforge/internal/transcode"
)

// Assemble synthesizes the filter graph and renders the project. Only one
// assembly per project runs at a time; a concurrent call fails fast.
func (r *Registry) Assemble(ctx context.Context, id string) (Result, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	switch {
	case e.evicted:
		e.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownProject, id)
	case e.state == StateAssembling:
		e.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %q", ErrAlreadyAssembling, id)
	case e.state == StateCompleted:
		e.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %q rendered %s", ErrCompleted, id, e.output)
	}
	st := e.status()
	if !st.CanAssemble {
		e.mu.Unlock()
		return Result{}, fmt.Errorf("%w: missing %s", ErrNotReady, strings.Join(st.Missing, ", "))
	}
	e.state = StateAssembling
	e.updatedAt = r.now()
	e.lastErr = ""
	e.render = &RenderProgress{}
	desc := e.desc
	paths := e.paths()
	e.mu.Unlock()

	ctx = services.WithProjectID(ctx, id)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("assembly started", logging.Int("inputs", len(paths)), logging.Float64("planned_seconds", desc.TotalDuration()))
	r.record(ctx, logger, "update state", func(rec Recorder) error {
		return rec.UpdateProjectState(ctx, id, string(StateAssembling))
	})
	var attemptID int64
	r.record(ctx, logger, "begin attempt", func(rec Recorder) error {
		var err error
		attemptID, err = rec.BeginAttempt(ctx, id)
		return err
	})

	started := time.Now()
	result, runErr := r.run(ctx, e, desc, paths)
	elapsed := time.Since(started)

	e.mu.Lock()
	scratch := e.paths()
	e.assets = make(map[string]Asset)
	e.render = nil
	e.updatedAt = r.now()
	if runErr != nil {
		e.state = StateFailed
		e.lastErr = runErr.Error()
	} else {
		e.state = StateCompleted
		e.output = result.OutputPath
		e.completedAt = e.updatedAt
	}
	finalState := e.state
	e.mu.Unlock()

	for _, path := range scratch {
		r.removeFile(logger, path)
	}
	r.finishAttempt(ctx, logger, attemptID, runErr, result, elapsed)
	r.record(ctx, logger, "update state", func(rec Recorder) error {
		return rec.UpdateProjectState(ctx, id, string(finalState))
	})

	r.notify(ctx, logger, id, runErr, result, elapsed)

	if runErr != nil {
		logging.ErrorWithContext(logger, "assembly failed", "assembly_failed",
			logging.Error(runErr),
			logging.String("error_kind", services.Kind(runErr)),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, assemblyHint(runErr)),
		)
		return Result{}, runErr
	}
	logger.Info("assembly completed",
		logging.String("output", result.OutputPath),
		logging.Int64("size_bytes", result.Size),
		logging.Duration("elapsed", elapsed),
	)
	return Result{
		ProjectID:  id,
		OutputPath: result.OutputPath,
		Size:       result.Size,
		Elapsed:    elapsed,
		Duration:   desc.TotalDuration(),
	}, nil
}

func (r *Registry) run(ctx context.Context, e *entry, desc scene.Descriptor, paths map[string]string) (transcode.Result, error) {
	plan, err := filtergraph.Synthesize(desc, paths, r.synth)
	if err != nil {
		return transcode.Result{}, fmt.Errorf("synthesize filter graph: %w", err)
	}
	return r.transcoder.Transcode(ctx, transcode.Request{
		ProjectID: e.id,
		Plan:      plan,
		Progress: func(p transcode.Progress) {
			e.mu.Lock()
			if e.render != nil {
				e.render.Percent = p.Percent
				e.render.OutTime = p.OutTime
				e.render.Speed = p.Speed
			}
			e.mu.Unlock()
		},
	})
}

func (r *Registry) finishAttempt(ctx context.Context, logger *slog.Logger, attemptID int64, runErr error, result transcode.Result, elapsed time.Duration) {
	if attemptID == 0 {
		return
	}
	out := history.Outcome{State: history.AttemptCompleted, OutputPath: result.OutputPath, OutputBytes: result.Size, Elapsed: elapsed}
	if runErr != nil {
		out = history.Outcome{
			State:        history.AttemptFailed,
			ErrorKind:    services.Kind(runErr),
			ErrorMessage: runErr.Error(),
			Elapsed:      elapsed,
		}
		var failure *transcode.Failure
		if errors.As(runErr, &failure) {
			out.Diagnostics = failure.Diagnostics()
		}
	}
	r.record(ctx, logger, "finish attempt", func(rec Recorder) error {
		return rec.FinishAttempt(ctx, attemptID, out)
	})
}

func (r *Registry) notify(ctx context.Context, logger *slog.Logger, id string, runErr error, result transcode.Result, elapsed time.Duration) {
	if r.notifier == nil {
		return
	}
	event := notifications.EventAssemblyCompleted
	payload := notifications.Payload{
		"projectID":  id,
		"outputPath": result.OutputPath,
		"sizeBytes":  result.Size,
		"elapsed":    elapsed,
	}
	if runErr != nil {
		event = notifications.EventAssemblyFailed
		payload = notifications.Payload{
			"projectID": id,
			"error":     runErr.Error(),
			"errorKind": services.Kind(runErr),
		}
	}
	// A daemon shutdown cancels ctx; the outcome should still go out.
	if err := r.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func assemblyHint(err error) string {
	switch {
	case errors.Is(err, services.ErrTimeout):
		return "raise ffmpeg.timeout_seconds or shorten the project"
	case errors.Is(err, filtergraph.ErrInvalidSceneDuration):
		return "fix the scene durations in the descriptor and create a new project"
	case errors.Is(err, transcode.ErrTranscodeFailed):
		return "inspect the ffmpeg diagnostics in the assembly history"
	default:
		return "check logs for details"
	}
}

// Plan runs synthesis without rendering. Assets not yet uploaded are given
// placeholder paths so the graph can be previewed early.
func (r *Registry) Plan(ctx context.Context, id string) (filtergraph.Plan, []string, error) {
	e, err := r.lookup(id)
	if err != nil {
		return filtergraph.Plan{}, nil, err
	}
	e.mu.Lock()
	if e.evicted {
		e.mu.Unlock()
		return filtergraph.Plan{}, nil, fmt.Errorf("%w: %q", ErrUnknownProject, id)
	}
	desc := e.desc
	paths := e.paths()
	missing := e.status().Missing
	e.mu.Unlock()

	for _, name := range missing {
		paths[name] = "<pending:" + name + ">"
	}
	plan, err := filtergraph.Synthesize(desc, paths, r.synth)
	if err != nil {
		return filtergraph.Plan{}, missing, err
	}
	r.log(ctx, id).Debug("plan synthesized", logging.Int("nodes", len(plan.Graph.Nodes)), logging.Int("missing", len(missing)))
	return plan, missing, nil
}

// paths must be called with e.mu held.
func (e *entry) paths() map[string]string {
	out := make(map[string]string, len(e.assets))
	for name, a := range e.assets {
		out[name] = a.Path
	}
	return out
}
