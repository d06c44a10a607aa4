package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

func newFileLogger(t *testing.T, format, level string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{Format: format, Level: level, OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("first message", logging.String(logging.FieldComponent, "registry"), logging.Int("scenes", 3))
	logger.Debug("hidden unless debug")
	return path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(data)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, "reelforge.log"))
	if !strings.Contains(content, "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleFormatPromotesComponent(t *testing.T) {
	path := newFileLogger(t, "console", "info")
	content := readLog(t, path)

	if !strings.Contains(content, "INFO registry: first message") {
		t.Fatalf("expected component prefix, got %q", content)
	}
	if !strings.Contains(content, "scenes=3") {
		t.Fatalf("expected key/value field, got %q", content)
	}
	if strings.Contains(content, "hidden unless debug") {
		t.Fatalf("debug line leaked at info level: %q", content)
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("file output must not contain color codes: %q", content)
	}
}

func TestJSONFormatUsesShortKeys(t *testing.T) {
	path := newFileLogger(t, "json", "info")
	line := strings.TrimSpace(strings.SplitN(readLog(t, path), "\n", 2)[0])

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode json line %q: %v", line, err)
	}
	if payload["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload["component"] != "registry" {
		t.Fatalf("expected component field, got %v", payload["component"])
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsProjectField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	base, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithProjectID(context.Background(), "proj-7")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, base).Info("scoped")

	content := readLog(t, path)
	if !strings.Contains(content, `"project_id":"proj-7"`) || !strings.Contains(content, `"correlation_id":"req-9"`) {
		t.Fatalf("expected context fields, got %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "cleanup failed", "scratch_cleanup_failed", logging.String(logging.FieldImpact, "disk space leaks"))

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace([]byte(readLog(t, path))), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["event_type"] != "scratch_cleanup_failed" {
		t.Fatalf("unexpected event_type %v", payload["event_type"])
	}
	if payload["impact"] != "disk space leaks" {
		t.Fatalf("caller impact should be preserved, got %v", payload["impact"])
	}
	if payload["error_hint"] == nil {
		t.Fatal("expected default error_hint")
	}
}

func TestPruneOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "reelforge-old.log")
	current := filepath.Join(dir, "reelforge-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		stale := time.Now().AddDate(0, 0, -10)
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.PruneOldLogs(logging.NewNop(), dir, "reelforge-*.log", 5, current)
	if removed != 1 {
		t.Fatalf("expected one file removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to survive: %v", path, err)
		}
	}
}
