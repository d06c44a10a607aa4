package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"reelforge/internal/config"
	"reelforge/internal/daemonrun"
	"reelforge/internal/logging"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/project"
	"reelforge/internal/scene"
)

// localSession is a single project on an in-process registry, used by the
// render and plan commands so they work without a daemon.
type localSession struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *daemonrun.Engine
	desc     scene.Descriptor
	req      scene.Requirements
	id       string
	found    map[string]string
	missing  []string
	uploaded int
}

func openLocalSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, descriptorPath, assetsDir string) (*localSession, error) {
	desc, err := scene.ParseFile(descriptorPath, scene.DefaultsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	engine, err := daemonrun.NewEngine(cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	st, err := engine.Registry.Create(ctx, desc)
	if err != nil {
		return nil, err
	}
	if assetsDir == "" {
		assetsDir = filepath.Dir(descriptorPath)
	}
	s := &localSession{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		desc:   desc,
		req:    scene.Extract(desc),
		id:     st.ID,
		found:  make(map[string]string),
	}
	for _, name := range s.req.Names() {
		path := filepath.Join(assetsDir, name)
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist), err == nil && info.IsDir():
			s.missing = append(s.missing, name)
		case err != nil:
			s.close(ctx)
			return nil, fmt.Errorf("inspect asset %s: %w", name, err)
		default:
			s.found[name] = path
		}
	}
	return s, nil
}

// upload feeds every located asset into the registry in requirement order.
func (s *localSession) upload(ctx context.Context) error {
	for _, name := range s.req.Names() {
		path, ok := s.found[name]
		if !ok {
			continue
		}
		if err := s.uploadOne(ctx, name, path); err != nil {
			return err
		}
		s.uploaded++
	}
	return nil
}

func (s *localSession) uploadOne(ctx context.Context, name, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open asset %s: %w", name, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat asset %s: %w", name, err)
	}
	if _, err := s.engine.Registry.AcceptAsset(ctx, s.id, project.Upload{
		Name:        name,
		ContentType: declaredContentType(name, path),
		Size:        info.Size(),
		Body:        file,
	}); err != nil {
		return fmt.Errorf("asset %s: %w", name, err)
	}
	return nil
}

func (s *localSession) close(ctx context.Context) {
	if err := s.engine.Registry.Evict(ctx, s.id); err != nil {
		logging.WarnWithContext(s.logger, "failed to clean up local project", "local_cleanup_failed",
			logging.String(logging.FieldProjectID, s.id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "scratch files may remain under work_dir"),
		)
	}
}

// assetProbe is what ffprobe reported for one local asset.
type assetProbe struct {
	Name     string
	Duration float64
	Width    int
	Height   int
	Streams  int
	Err      error
}

// probeAssets inspects every located asset concurrently, bounded by the
// CPU count. Individual failures are reported per asset, not returned.
func (s *localSession) probeAssets(ctx context.Context, prober *ffprobe.Prober) []assetProbe {
	names := make([]string, 0, len(s.found))
	for _, name := range s.req.Names() {
		if _, ok := s.found[name]; ok {
			names = append(names, name)
		}
	}
	results := make([]assetProbe, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range names {
		g.Go(func() error {
			probe := assetProbe{Name: name}
			report, err := prober.Inspect(gctx, s.found[name])
			if err != nil {
				probe.Err = err
			} else {
				probe.Duration = report.DurationSeconds()
				if math.IsNaN(probe.Duration) {
					probe.Duration = 0
				}
				probe.Width, probe.Height, _ = report.Dimensions()
				probe.Streams = len(report.Streams)
			}
			results[i] = probe
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// narrationOverruns lists narration clips longer than the scene that plays
// them; the renderer trims those to the scene length.
func (s *localSession) narrationOverruns(probes []assetProbe) []string {
	durations := make(map[string]float64, len(probes))
	for _, p := range probes {
		if p.Err == nil {
			durations[p.Name] = p.Duration
		}
	}
	var out []string
	for i, sc := range s.desc.Scenes {
		if sc.TTS == "" {
			continue
		}
		if d, ok := durations[sc.TTS]; ok && d > sc.Duration+0.05 {
			out = append(out, fmt.Sprintf("scene %d: %s runs %.2fs, scene is %.2fs", i+1, sc.TTS, d, sc.Duration))
		}
	}
	return out
}
