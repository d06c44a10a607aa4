package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelforge/internal/api"
	"reelforge/internal/history"
	"reelforge/internal/project"
	"reelforge/internal/testsupport"
)

func TestProjectWorkflowOverAPI(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "project", "create", "--json", filepath.Join(env.assetsDir, "story.yaml"))
	if err != nil {
		t.Fatalf("project create: %v", err)
	}
	var created api.ProjectStatus
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode create output %q: %v", out, err)
	}
	if created.Required != 2 || len(created.Missing) != 2 {
		t.Fatalf("unexpected new project %+v", created)
	}
	id := created.ID

	out, _, err = env.run(t, "project", "upload", id,
		filepath.Join(env.assetsDir, "intro.png"),
		filepath.Join(env.assetsDir, "intro.mp3"))
	if err != nil {
		t.Fatalf("project upload: %v", err)
	}
	requireContains(t, out, "Uploaded intro.png")
	requireContains(t, out, "is ready to assemble")

	out, _, err = env.run(t, "project", "status", id)
	if err != nil {
		t.Fatalf("project status: %v", err)
	}
	requireContains(t, out, "Can assemble: yes")
	requireContains(t, out, "2/2 (100%)")

	out, _, err = env.run(t, "project", "plan", id)
	if err != nil {
		t.Fatalf("project plan: %v", err)
	}
	requireContains(t, out, "intro.png")
	requireContains(t, out, "-filter_complex")

	out, _, err = env.run(t, "project", "assemble", id)
	if err != nil {
		t.Fatalf("project assemble: %v", err)
	}
	requireContains(t, out, "Rendered")
	if env.tr.calls != 1 {
		t.Fatalf("expected one transcode, got %d", env.tr.calls)
	}

	dest := filepath.Join(t.TempDir(), "final.mp4")
	if _, _, err := env.run(t, "project", "download", id, "-o", dest); err != nil {
		t.Fatalf("project download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "rendered" {
		t.Fatalf("downloaded file: %q, %v", data, err)
	}

	out, _, err = env.run(t, "project", "list")
	if err != nil {
		t.Fatalf("project list: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "Completed")

	if _, _, err := env.run(t, "project", "delete", id); err != nil {
		t.Fatalf("project delete: %v", err)
	}
	_, _, err = env.run(t, "project", "status", id)
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != 404 || apiErr.Kind != "not_found" {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestUploadRejectionSurfacesKind(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "project", "create", "--json", filepath.Join(env.assetsDir, "story.yaml"))
	if err != nil {
		t.Fatalf("project create: %v", err)
	}
	var created api.ProjectStatus
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	_, _, err = env.run(t, "project", "upload", created.ID, "--name", "stray.png", filepath.Join(env.assetsDir, "intro.png"))
	if err == nil {
		t.Fatal("expected an unreferenced asset name to be rejected")
	}
	requireContains(t, err.Error(), "422")
	requireContains(t, err.Error(), "validation")

	_, _, err = env.run(t, "project", "assemble", created.ID)
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != 409 {
		t.Fatalf("expected 409 for an incomplete project, got %v", err)
	}
}

func TestWrongTokenIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, "--config", env.configPath, "--server", env.server, "--token", "nope", "project", "list")
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "No projects")

	out, _, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var st api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Running || st.PID != os.Getpid() {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestDaemonUnreachable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "reelforge.toml")
	writeTestConfig(t, configPath, cfg)
	_, _, err := runCLI(t, "--config", configPath, "--server", "http://127.0.0.1:1", "project", "list")
	if err == nil {
		t.Fatal("expected connection error")
	}
	requireContains(t, err.Error(), "reelforge daemon")
}

func TestPlanCommandShowsPlaceholders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "reelforge.toml")
	writeTestConfig(t, configPath, cfg)
	dir := t.TempDir()
	writeDescriptor(t, filepath.Join(dir, "story.yaml"))
	writePNG(t, filepath.Join(dir, "intro.png"))

	out, _, err := runCLI(t, "--config", configPath, "plan", filepath.Join(dir, "story.yaml"))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "Missing:    intro.mp3")
	requireContains(t, out, "<pending:")
	requireContains(t, out, "drawtext")
	requireContains(t, out, "640x360")

	entries, err := os.ReadDir(cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected plan to leave no scratch dirs, found %d", len(entries))
	}
}

func TestRenderRequiresEveryAsset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "reelforge.toml")
	writeTestConfig(t, configPath, cfg)
	dir := t.TempDir()
	writeDescriptor(t, filepath.Join(dir, "story.yaml"))
	writePNG(t, filepath.Join(dir, "intro.png"))

	_, _, err := runCLI(t, "--config", configPath, "render", filepath.Join(dir, "story.yaml"))
	if !errors.Is(err, project.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	requireContains(t, err.Error(), "intro.mp3")
}

func TestHistoryCommandReadsLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "reelforge.toml")
	writeTestConfig(t, configPath, cfg)

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	ctx := context.Background()
	if err := store.RecordProject(ctx, history.Project{ID: "p-1", CreatedAt: time.Now(), SceneCount: 1, RequiredCount: 2, State: "failed"}); err != nil {
		t.Fatalf("RecordProject: %v", err)
	}
	attemptID, err := store.BeginAttempt(ctx, "p-1")
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if err := store.FinishAttempt(ctx, attemptID, history.Outcome{
		State:        history.AttemptFailed,
		ErrorKind:    "external_tool",
		ErrorMessage: "ffmpeg exited 1",
		Elapsed:      2 * time.Second,
	}); err != nil {
		t.Fatalf("FinishAttempt: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out, _, err := runCLI(t, "--config", configPath, "history", "--project", "p-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "1 projects, 1 attempts (0 completed, 1 failed, 0 running)")
	requireContains(t, out, "external_tool: ffmpeg exited 1")
}

func TestDepsCommandReportsMissingFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := filepath.Join(testsupport.BaseDir(cfg), "reelforge.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, "--config", configPath, "deps")
	if err == nil {
		t.Fatal("expected stub ffmpeg without filters to fail the check")
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "FFprobe")
	if !strings.Contains(out, "drawtext") {
		t.Fatalf("expected missing filter list, got:\n%s", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}

	out, _, err = runCLI(t, "--config", target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Config path: "+target)
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestLogsCommandFiltersByProject(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "2026-01-01 INFO registry: assembly started [p1]\n2026-01-01 INFO registry: assembly started [p2]\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "reelforged.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err := env.run(t, "logs", "--project", "p1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "[p1]")
	if strings.Contains(out, "[p2]") {
		t.Fatalf("unexpected foreign project line in %q", out)
	}
}
