package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/asset"
	"reelforge/internal/filtergraph"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/notifications"
	"reelforge/internal/scene"
	"reelforge/internal/services"
	"reelforge/internal/transcode"
)

// Transcoder renders a synthesized plan.
type Transcoder interface {
	Transcode(ctx context.Context, req transcode.Request) (transcode.Result, error)
}

// Recorder persists project and attempt history. Failures are logged only.
type Recorder interface {
	RecordProject(ctx context.Context, p history.Project) error
	UpdateProjectState(ctx context.Context, id, state string) error
	MarkEvicted(ctx context.Context, id string) error
	BeginAttempt(ctx context.Context, projectID string) (int64, error)
	FinishAttempt(ctx context.Context, id int64, out history.Outcome) error
}

// Notifier publishes assembly outcomes. Failures are logged only.
type Notifier interface {
	Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithValidator replaces the default uncapped validator.
func WithValidator(v *asset.Validator) Option {
	return func(r *Registry) {
		if v != nil {
			r.validator = v
		}
	}
}

// WithSynthOptions sets renderer options passed to the synthesizer.
func WithSynthOptions(opts filtergraph.Options) Option {
	return func(r *Registry) {
		r.synth = opts
	}
}

// WithRecorder attaches a history ledger.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// WithNotifier publishes completed and failed assemblies.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		r.notifier = n
	}
}

// WithContentSniffing enables content type detection for undeclared uploads.
func WithContentSniffing(enabled bool) Option {
	return func(r *Registry) {
		r.sniff = enabled
	}
}

// WithTTL sets the idle age after which SweepExpired evicts a project.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

// WithClock overrides time.Now (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry is the in-memory project table.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*entry

	workDir    string
	transcoder Transcoder
	validator  *asset.Validator
	synth      filtergraph.Options
	recorder   Recorder
	notifier   Notifier
	sniff      bool
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

type entry struct {
	mu sync.Mutex

	id          string
	dir         string
	desc        scene.Descriptor
	req         scene.Requirements
	assets      map[string]Asset
	state       State
	evicted     bool
	createdAt   time.Time
	updatedAt   time.Time
	completedAt time.Time
	output      string
	lastErr     string
	render      *RenderProgress
}

// New constructs a registry that keeps scratch files under workDir.
func New(workDir string, transcoder Transcoder, opts ...Option) (*Registry, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "init", "work directory required", nil)
	}
	if transcoder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "registry", "init", "transcoder required", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	r := &Registry{
		projects:   make(map[string]*entry),
		workDir:    workDir,
		transcoder: transcoder,
		validator:  asset.NewValidator(0),
		synth:      filtergraph.DefaultOptions(),
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "registry")
	return r, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.projects[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProject, id)
	}
	return e, nil
}

func (r *Registry) log(ctx context.Context, id string) *slog.Logger {
	return logging.WithContext(services.WithProjectID(ctx, id), r.logger)
}

// Create registers a project for desc and returns its initial status.
func (r *Registry) Create(ctx context.Context, desc scene.Descriptor) (Status, error) {
	if len(desc.Scenes) == 0 {
		return Status{}, scene.ErrEmptyDescriptor
	}
	for i, s := range desc.Scenes {
		if !(s.Duration > 0) {
			return Status{}, fmt.Errorf("%w: scenes[%d] has duration %v", filtergraph.ErrInvalidSceneDuration, i, s.Duration)
		}
	}
	id := uuid.NewString()
	dir := filepath.Join(r.workDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Status{}, fmt.Errorf("create project scratch dir: %w", err)
	}
	now := r.now()
	e := &entry{
		id:        id,
		dir:       dir,
		desc:      desc,
		req:       scene.Extract(desc),
		assets:    make(map[string]Asset),
		state:     StateCreated,
		createdAt: now,
		updatedAt: now,
	}

	r.mu.Lock()
	r.projects[id] = e
	r.mu.Unlock()

	logger := r.log(ctx, id)
	logger.Info("project created",
		logging.Int("scenes", len(desc.Scenes)),
		logging.Int("required_assets", e.req.Len()),
		logging.Float64("planned_seconds", desc.TotalDuration()),
	)
	r.record(ctx, logger, "record project", func(rec Recorder) error {
		return rec.RecordProject(ctx, history.Project{
			ID:            id,
			CreatedAt:     now,
			SceneCount:    len(desc.Scenes),
			RequiredCount: e.req.Len(),
			TotalSeconds:  desc.TotalDuration(),
			State:         string(StateCreated),
		})
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status(), nil
}

// Status reports readiness for a project.
func (r *Registry) Status(id string) (Status, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Status{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return Status{}, fmt.Errorf("%w: %q", ErrUnknownProject, id)
	}
	return e.status(), nil
}

// Get returns a detached snapshot of a project.
func (r *Registry) Get(id string) (Snapshot, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownProject, id)
	}
	snap := Snapshot{
		Status:       e.status(),
		Descriptor:   e.desc,
		Requirements: e.req.Items(),
		CompletedAt:  e.completedAt,
	}
	for _, name := range e.req.Names() {
		if a, ok := e.assets[name]; ok {
			snap.Assets = append(snap.Assets, a)
		}
	}
	return snap, nil
}

// List returns the status of every project, oldest first.
func (r *Registry) List() []Status {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.projects))
	for _, e := range r.projects {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.evicted {
			out = append(out, e.status())
		}
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Status) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Evict removes a project and its scratch directory. Rendered artifacts in
// the output directory are left in place.
func (r *Registry) Evict(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.projects[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownProject, id)
	}
	e.mu.Lock()
	if e.state == StateAssembling {
		e.mu.Unlock()
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot evict %q", ErrAlreadyAssembling, id)
	}
	e.evicted = true
	e.assets = nil
	e.mu.Unlock()
	delete(r.projects, id)
	r.mu.Unlock()

	logger := r.log(ctx, id)
	r.removeAll(logger, e.dir)
	r.record(ctx, logger, "mark evicted", func(rec Recorder) error {
		return rec.MarkEvicted(ctx, id)
	})
	logger.Info("project evicted")
	return nil
}

// SweepExpired evicts projects idle for longer than the configured TTL.
// Assembling projects are skipped. It returns the number evicted.
func (r *Registry) SweepExpired(ctx context.Context, now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-r.ttl)
	var expired []string
	r.mu.RLock()
	for id, e := range r.projects {
		e.mu.Lock()
		if e.state != StateAssembling && e.updatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
		e.mu.Unlock()
	}
	r.mu.RUnlock()

	evicted := 0
	for _, id := range expired {
		if err := r.Evict(ctx, id); err != nil {
			if !errors.Is(err, ErrUnknownProject) && !errors.Is(err, ErrAlreadyAssembling) {
				logging.WarnWithContext(r.log(ctx, id), "failed to evict expired project", "project_sweep_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "scratch files remain until the next sweep"),
				)
			}
			continue
		}
		evicted++
	}
	if evicted > 0 {
		r.logger.Info("expired projects swept", logging.Int("evicted", evicted), logging.Duration("ttl", r.ttl))
	}
	return evicted
}

// status must be called with e.mu held.
func (e *entry) status() Status {
	required := e.req.Len()
	var missing []string
	for _, name := range e.req.Names() {
		if _, ok := e.assets[name]; !ok {
			missing = append(missing, name)
		}
	}
	uploaded := required - len(missing)
	pct := 100
	if required > 0 {
		pct = uploaded * 100 / required
	}
	st := Status{
		ID:          e.id,
		State:       e.state,
		Uploaded:    uploaded,
		Required:    required,
		Percentage:  pct,
		Missing:     missing,
		CanAssemble: len(missing) == 0,
		OutputPath:  e.output,
		LastError:   e.lastErr,
		CreatedAt:   e.createdAt,
		UpdatedAt:   e.updatedAt,
		Phase:       Phase(e.state),
	}
	if e.state == StateCreated || (e.state == StateFailed && uploaded > 0) {
		switch {
		case len(missing) == 0:
			st.Phase = PhaseReady
		case uploaded > 0:
			st.Phase = PhaseCollecting
		default:
			st.Phase = PhaseCreated
		}
	}
	if e.render != nil {
		progress := *e.render
		st.Render = &progress
	}
	return st
}

func (r *Registry) record(ctx context.Context, logger *slog.Logger, op string, fn func(Recorder) error) {
	if r.recorder == nil {
		return
	}
	if err := fn(r.recorder); err != nil {
		logging.WarnWithContext(logger, "history ledger write failed", "history_write_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the history database path and disk space"),
			logging.String(logging.FieldImpact, "history is incomplete; the project itself is unaffected"),
		)
	}
}

func (r *Registry) removeFile(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove scratch file", "scratch_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file manually"),
			logging.String(logging.FieldImpact, "scratch space is not reclaimed"),
		)
	}
}

func (r *Registry) removeAll(logger *slog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logging.WarnWithContext(logger, "failed to remove project scratch dir", "scratch_cleanup_failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "scratch space is not reclaimed"),
		)
	}
}
