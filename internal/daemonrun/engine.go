package daemonrun

import (
	"fmt"
	"log/slog"

	"reelforge/internal/asset"
	"reelforge/internal/config"
	"reelforge/internal/filtergraph"
	"reelforge/internal/logging"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/notifications"
	"reelforge/internal/project"
	"reelforge/internal/transcode"
)

// Engine bundles the registry with the invoker that renders its projects.
type Engine struct {
	Registry *project.Registry
	Invoker  *transcode.Invoker
	// FontFile is the drawtext font picked from composition.font_candidates,
	// empty when none is installed.
	FontFile string
}

// NewEngine wires the validator, synthesizer options, invoker, notifier and
// optional ffprobe verification into a registry. recorder may be nil.
func NewEngine(cfg *config.Config, logger *slog.Logger, recorder project.Recorder, extra ...project.Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	invokerOpts := []transcode.Option{transcode.WithLogger(logger)}
	if cfg.FFmpeg.VerifyOutput {
		invokerOpts = append(invokerOpts, transcode.WithVerifier(ffprobe.New(cfg.FFmpeg.FFprobeBinary, nil)))
	}
	invoker, err := transcode.New(transcode.SettingsFromConfig(cfg), invokerOpts...)
	if err != nil {
		return nil, fmt.Errorf("create invoker: %w", err)
	}

	font := filtergraph.ResolveFont(cfg.Composition.FontCandidates, nil)
	if font == "" && len(cfg.Composition.FontCandidates) > 0 {
		logging.WarnWithContext(logger, "no subtitle font candidate found", "font_missing",
			logging.Int("candidates", len(cfg.Composition.FontCandidates)),
			logging.String(logging.FieldImpact, "drawtext falls back to the ffmpeg default font"),
			logging.String(logging.FieldErrorHint, "install a TTF font or set composition.font_candidates"),
		)
	}

	opts := []project.Option{
		project.WithLogger(logger),
		project.WithValidator(asset.NewValidator(cfg.Assets.MaxBytes)),
		project.WithSynthOptions(filtergraph.OptionsFromConfig(cfg, font)),
		project.WithContentSniffing(cfg.Assets.SniffContent),
		project.WithTTL(cfg.ProjectTTL()),
		project.WithNotifier(notifications.NewService(cfg)),
	}
	if recorder != nil {
		opts = append(opts, project.WithRecorder(recorder))
	}
	opts = append(opts, extra...)
	registry, err := project.New(cfg.Paths.WorkDir, invoker, opts...)
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}
	return &Engine{Registry: registry, Invoker: invoker, FontFile: font}, nil
}
