package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"reelforge/internal/config"
	"reelforge/internal/deps"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/preflight"
	"reelforge/internal/project"
	"reelforge/internal/scene"
	"reelforge/internal/services"
	"reelforge/internal/transcode"
)

// History is the ledger surface the daemon reads and repairs.
type History interface {
	Path() string
	FailInterrupted(ctx context.Context) (int64, error)
	ListAttempts(ctx context.Context, projectID string, limit int) ([]history.Attempt, error)
	Summarize(ctx context.Context) (history.Summary, error)
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithHistory attaches the assembly ledger.
func WithHistory(h History) Option {
	return func(d *Daemon) {
		d.history = h
	}
}

// WithDependencyRunner overrides how the ffmpeg filter probe executes.
func WithDependencyRunner(run deps.RunFunc) Option {
	return func(d *Daemon) {
		d.depsRun = run
	}
}

// Daemon coordinates the API server and sweeper and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *project.Registry
	history  History
	settings transcode.Settings
	defaults scene.Defaults
	depsRun  deps.RunFunc

	lockPath string
	lock     *flock.Flock
	server   *apiServer
	sweeper  *cron.Cron

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	depsMu sync.Mutex
	deps   []deps.Status
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	Projects      []project.Status
	HistoryDBPath string
	LockFilePath  string
	Dependencies  []deps.Status
	Checks        []preflight.Result
	Host          preflight.HostSnapshot
}

// New constructs a daemon around an already wired registry.
func New(cfg *config.Config, registry *project.Registry, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || registry == nil {
		return nil, errors.New("daemon requires config and registry")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		registry: registry,
		settings: transcode.SettingsFromConfig(cfg),
		defaults: scene.DefaultsFromConfig(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	sweeper, err := d.newSweeper()
	if err != nil {
		return nil, err
	}
	d.sweeper = sweeper
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, repairs interrupted ledger rows, and binds
// the API listener. Serving begins in Run.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConflict, "daemon", "lock", "another reelforge daemon instance is already running", nil)
	}

	if d.history != nil {
		repaired, err := d.history.FailInterrupted(ctx)
		if err != nil {
			logging.WarnWithContext(d.logger, "failed to close interrupted attempts", "history_repair_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale attempts stay marked running in history"),
			)
		} else if repaired > 0 {
			d.logger.Info("interrupted attempts closed", logging.Int64("attempts", repaired))
		}
	}
	d.refreshDependencies(ctx)

	if err := d.server.listen(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("reelforge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.addr()),
	)
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled or the API server
// fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	g, gctx := errgroup.WithContext(d.ctx)
	g.Go(func() error {
		return d.server.serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		d.server.shutdown()
		return nil
	})
	if d.sweeper != nil {
		g.Go(func() error {
			d.sweeper.Start()
			<-gctx.Done()
			<-d.sweeper.Stop().Done()
			return nil
		})
	}
	return g.Wait()
}

// Stop cancels in-flight work and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.shutdown()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next start may report a running instance"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("reelforge daemon stopped")
}

// Addr reports the bound API address once started.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		Projects:     d.registry.List(),
		LockFilePath: d.lockPath,
		Dependencies: d.dependencies(ctx),
		Checks:       preflight.RunAll(ctx, d.cfg),
		Host:         preflight.ProbeHost(ctx, d.cfg.Paths.WorkDir, d.cfg.Paths.OutputDir),
	}
	if d.history != nil {
		st.HistoryDBPath = d.history.Path()
	}
	return st
}

func (d *Daemon) refreshDependencies(ctx context.Context) {
	statuses := preflight.CheckSystemDeps(ctx, d.cfg, d.depsRun)
	for _, s := range deps.Missing(statuses) {
		logging.WarnWithContext(d.logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", s.Name),
			logging.String("detail", s.Detail),
			logging.String(logging.FieldImpact, "assembly will fail until the dependency is installed"),
			logging.String(logging.FieldErrorHint, "run reelforge deps"),
		)
	}
	d.depsMu.Lock()
	d.deps = statuses
	d.depsMu.Unlock()
}

func (d *Daemon) dependencies(ctx context.Context) []deps.Status {
	d.depsMu.Lock()
	cached := d.deps
	d.depsMu.Unlock()
	if cached == nil {
		d.refreshDependencies(ctx)
		d.depsMu.Lock()
		cached = d.deps
		d.depsMu.Unlock()
	}
	return cached
}

// assemblyContext detaches an assembly from the request that started it
// while keeping it bound to the daemon lifetime.
func (d *Daemon) assemblyContext(reqCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(reqCtx))
	if d.ctx == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(d.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
