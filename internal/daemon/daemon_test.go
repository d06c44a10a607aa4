package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelforge/internal/api"
	"reelforge/internal/config"
	"reelforge/internal/history"
	"reelforge/internal/project"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
	"reelforge/internal/transcode"
)

type stubTranscoder struct {
	mu     sync.Mutex
	calls  int
	outDir string
}

func (s *stubTranscoder) Transcode(_ context.Context, req transcode.Request) (transcode.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	out := filepath.Join(s.outDir, req.ProjectID+".mp4")
	if err := os.WriteFile(out, []byte("rendered"), 0o644); err != nil {
		return transcode.Result{}, err
	}
	return transcode.Result{OutputPath: out, Size: 8}, nil
}

func noFilters(context.Context, string, ...string) ([]byte, error) {
	return nil, errors.New("not probed in tests")
}

type harness struct {
	cfg    *config.Config
	daemon *Daemon
	ledger *history.Store
	tr     *stubTranscoder
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	ledger := testsupport.MustOpenHistory(t, cfg)
	tr := &stubTranscoder{outDir: cfg.Paths.OutputDir}
	reg, err := project.New(cfg.Paths.WorkDir, tr, project.WithRecorder(ledger))
	if err != nil {
		t.Fatalf("project.New: %v", err)
	}
	d, err := New(cfg, reg, nil, WithHistory(ledger), WithDependencyRunner(noFilters))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{cfg: cfg, daemon: d, ledger: ledger, tr: tr}
}

func (h *harness) do(t *testing.T, method, path, contentType string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.daemon.server.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

const descriptorJSON = `{
  "scenes": [
    {"image": "img1.png", "tts": "tts1.mp3", "duration": 2, "subtitle": {"text": "Hi: there"}},
    {"image": "img2.png", "duration": 2}
  ],
  "bgm": "bgm.mp3",
  "global": {"resolution": "640x360"}
}`

func (h *harness) createProject(t *testing.T) api.ProjectStatus {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/projects", "application/json", []byte(descriptorJSON))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[api.ProjectStatus](t, w)
}

func (h *harness) upload(t *testing.T, id, name, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(t, http.MethodPut, "/api/projects/"+id+"/assets/"+name, contentType, []byte("data-"+name))
}

func TestProjectLifecycle(t *testing.T) {
	h := newHarness(t)
	st := h.createProject(t)
	if st.Required != 4 || st.Percentage != 0 || st.Phase != "created" {
		t.Fatalf("unexpected initial status %+v", st)
	}

	w := h.do(t, http.MethodPost, "/api/projects/"+st.ID+"/assemble", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("assemble before uploads: expected 409, got %d", w.Code)
	}
	if kind := decode[api.ErrorResponse](t, w).Kind; kind != "conflict" {
		t.Fatalf("unexpected error kind %q", kind)
	}

	uploads := []struct{ name, ctype string }{
		{"img1.png", "image/png"},
		{"tts1.mp3", "audio/mpeg"},
		{"img2.png", "image/png"},
		{"bgm.mp3", "audio/mpeg"},
	}
	for i, up := range uploads {
		w := h.upload(t, st.ID, up.name, up.ctype)
		if w.Code != http.StatusCreated {
			t.Fatalf("upload %s: expected 201, got %d: %s", up.name, w.Code, w.Body.String())
		}
		resp := decode[api.AssetResponse](t, w)
		if want := (i + 1) * 100 / len(uploads); resp.Project.Percentage != want {
			t.Fatalf("after %s percentage = %d, want %d", up.name, resp.Project.Percentage, want)
		}
		if resp.Asset.SHA256 == "" {
			t.Fatal("expected asset checksum")
		}
	}

	w = h.do(t, http.MethodGet, "/api/projects/"+st.ID+"/plan", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("plan: expected 200, got %d", w.Code)
	}
	plan := decode[api.PlanResponse](t, w)
	if len(plan.Inputs) != 4 || len(plan.Missing) != 0 || !strings.Contains(plan.CommandLine, "-filter_complex") {
		t.Fatalf("unexpected plan %+v", plan)
	}

	w = h.do(t, http.MethodPost, "/api/projects/"+st.ID+"/assemble", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("assemble: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := decode[api.AssembleResponse](t, w)
	if result.DurationSeconds != 4 || result.OutputPath == "" {
		t.Fatalf("unexpected result %+v", result)
	}

	w = h.do(t, http.MethodGet, "/api/projects/"+st.ID+"/output", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "rendered" {
		t.Fatalf("output: got %d %q", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodGet, "/api/history?project="+st.ID, "", nil)
	hist := decode[api.HistoryResponse](t, w)
	if len(hist.Attempts) != 1 || hist.Attempts[0].State != "completed" || hist.Summary.Completed != 1 {
		t.Fatalf("unexpected history %+v", hist)
	}

	w = h.do(t, http.MethodDelete, "/api/projects/"+st.ID, "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	w = h.do(t, http.MethodGet, "/api/projects/"+st.ID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status after delete: expected 404, got %d", w.Code)
	}
}

func TestCreateProjectYAMLAndErrors(t *testing.T) {
	h := newHarness(t)
	yamlDoc := "scenes:\n  - image: a.png\n    duration: 1\n"
	w := h.do(t, http.MethodPost, "/api/projects", "application/yaml", []byte(yamlDoc))
	if w.Code != http.StatusCreated {
		t.Fatalf("yaml create: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	cases := []struct {
		name string
		body string
	}{
		{"malformed", `{"scenes": [`},
		{"empty", `{"scenes": []}`},
		{"unknown field", `{"scenes": [{"image": "a.png", "colour": "red"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/projects", "application/json", []byte(tc.body))
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
			}
			if kind := decode[api.ErrorResponse](t, w).Kind; kind != "validation" {
				t.Fatalf("unexpected kind %q", kind)
			}
		})
	}
}

func TestUploadErrorsMapToStatus(t *testing.T) {
	h := newHarness(t)
	st := h.createProject(t)

	if w := h.upload(t, "missing", "img1.png", "image/png"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown project: expected 404, got %d", w.Code)
	}
	if w := h.upload(t, st.ID, "other.png", "image/png"); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unrequired asset: expected 422, got %d", w.Code)
	}
	if w := h.upload(t, st.ID, "img1.png", "audio/mpeg"); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("category mismatch: expected 422, got %d", w.Code)
	}
}

func TestUploadRateLimit(t *testing.T) {
	h := newHarness(t)
	h.daemon.server.limiter.SetLimit(0)
	h.daemon.server.limiter.SetBurst(1)
	st := h.createProject(t)

	if w := h.upload(t, st.ID, "img1.png", "image/png"); w.Code != http.StatusCreated {
		t.Fatalf("first upload: expected 201, got %d", w.Code)
	}
	w := h.upload(t, st.ID, "img2.png", "image/png")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if kind := decode[api.ErrorResponse](t, w).Kind; kind != "rate_limited" {
		t.Fatalf("unexpected kind %q", kind)
	}
}

func TestAuthAndRequestID(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIToken("secret"))

	w := h.do(t, http.MethodGet, "/api/projects", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}

	w = h.do(t, http.MethodGet, "/api/projects", "", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	w = h.do(t, http.MethodGet, "/api/projects", "", nil, "Authorization", "Bearer secret", requestIDHeader, "req-42")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/api/history?limit=abc", "", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestOutputBeforeCompletion(t *testing.T) {
	h := newHarness(t)
	st := h.createProject(t)
	w := h.do(t, http.MethodGet, "/api/projects/"+st.ID+"/output", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestRunServesAndReleasesLock(t *testing.T) {
	h := newHarness(t)
	stale := history.Project{ID: "stale", CreatedAt: time.Now(), SceneCount: 1, RequiredCount: 1, State: "assembling"}
	if err := h.ledger.RecordProject(context.Background(), stale); err != nil {
		t.Fatalf("RecordProject: %v", err)
	}
	attemptID, err := h.ledger.BeginAttempt(context.Background(), "stale")
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.daemon.Run(ctx) }()

	var addr string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.daemon.running.Load() {
			addr = h.daemon.Addr()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("daemon did not start")
	}

	second, err := New(h.cfg, h.daemon.registry, nil, WithDependencyRunner(noFilters))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(context.Background()); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected lock conflict, got %v", err)
	}

	resp, err := http.Get("http://" + addr + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	var st api.DaemonStatus
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Running || st.PID != os.Getpid() || st.LockFilePath != h.cfg.LockPath() {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(st.Checks) == 0 || st.Host.LogicalCPUs == 0 {
		t.Fatalf("expected preflight and host data, got %+v", st)
	}

	attempts, err := h.ledger.ListAttempts(context.Background(), "stale", 0)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].ID != attemptID || attempts[0].State != history.AttemptFailed {
		t.Fatalf("expected interrupted attempt to be failed, got %+v", attempts)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("lock should be free after stop: %v", err)
	}
	second.Stop()
}

func TestNewRejectsBadSweepSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Registry.SweepSchedule = "not a schedule"
	reg, err := project.New(cfg.Paths.WorkDir, &stubTranscoder{outDir: t.TempDir()})
	if err != nil {
		t.Fatalf("project.New: %v", err)
	}
	if _, err := New(cfg, reg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSweepEvictsExpiredProjects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	now := time.Now().Add(-48 * time.Hour)
	reg, err := project.New(cfg.Paths.WorkDir, &stubTranscoder{outDir: t.TempDir()},
		project.WithTTL(time.Hour),
		project.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("project.New: %v", err)
	}
	d, err := New(cfg, reg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.sweeper == nil {
		t.Fatal("expected sweeper with default schedule")
	}
	h := &harness{cfg: cfg, daemon: d}
	st := h.createProject(t)

	d.sweep()
	if _, err := reg.Status(st.ID); !errors.Is(err, project.ErrUnknownProject) {
		t.Fatalf("expected sweep to evict %s, got %v", st.ID, err)
	}
}

