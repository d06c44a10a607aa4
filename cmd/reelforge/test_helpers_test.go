package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/project"
	"reelforge/internal/testsupport"
	"reelforge/internal/transcode"
)

const testToken = "cli-secret"

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

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	server     string
	assetsDir  string
	tr         *stubTranscoder
}

// setupCLITestEnv writes a config file and serves a daemon backed by a stub
// transcoder on a loopback port.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(testToken))
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))
	t.Setenv("REELFORGE_API_TOKEN", "")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "reelforge.toml")
	writeTestConfig(t, configPath, cfg)

	tr := &stubTranscoder{outDir: cfg.Paths.OutputDir}
	reg, err := project.New(cfg.Paths.WorkDir, tr)
	if err != nil {
		t.Fatalf("project.New: %v", err)
	}
	d, err := daemon.New(cfg, reg, nil, daemon.WithDependencyRunner(noFilters))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	var addr string
	waitFor(t, 5*time.Second, func() bool {
		addr = d.Addr()
		return addr != "" && addr != cfg.Paths.APIBind
	})

	assetsDir := filepath.Join(testsupport.BaseDir(cfg), "assets")
	writePNG(t, filepath.Join(assetsDir, "intro.png"))
	testsupport.WriteAssets(t, assetsDir, "intro.mp3")
	writeDescriptor(t, filepath.Join(assetsDir, "story.yaml"))

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		server:     "http://" + addr,
		assetsDir:  assetsDir,
		tr:         tr,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	flags := []string{"--config", e.configPath, "--server", e.server, "--token", testToken}
	return runCLI(t, append(flags, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nwork_dir = %q\noutput_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n[composition]\nfont_candidates = []\n",
		cfg.Paths.WorkDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := append(append([]byte{}, testsupport.PNGMagic...), bytes.Repeat([]byte{0}, 56)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func writeDescriptor(t *testing.T, path string) {
	t.Helper()
	const descriptor = `scenes:
  - image: intro.png
    tts: intro.mp3
    duration: 2.5
    subtitle:
      text: "Welcome back"
global:
  resolution: 640x360
`
	if err := os.WriteFile(path, []byte(descriptor), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
