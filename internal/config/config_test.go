package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatalf("expected no config file, got %q", resolved)
	}
	wantWork := filepath.Join(home, ".local", "share", "reelforge", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Composition.Width != 1280 || cfg.Composition.Height != 720 {
		t.Fatalf("unexpected default resolution %dx%d", cfg.Composition.Width, cfg.Composition.Height)
	}
	if cfg.Composition.BGMVolume != 0.3 || cfg.Composition.VoiceVolume != 1.0 {
		t.Fatalf("unexpected default volumes: %+v", cfg.Composition)
	}
	if cfg.Composition.SceneDuration != 3 {
		t.Fatalf("expected default scene duration 3, got %v", cfg.Composition.SceneDuration)
	}
	if cfg.TranscodeTimeout() != 30*time.Minute {
		t.Fatalf("unexpected timeout %v", cfg.TranscodeTimeout())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reelforge.toml")

	type payload struct {
		Paths struct {
			WorkDir   string `toml:"work_dir"`
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		FFmpeg struct {
			TimeoutSeconds int `toml:"timeout_seconds"`
			CRF            int `toml:"crf"`
		} `toml:"ffmpeg"`
		Composition struct {
			Width  int `toml:"width"`
			Height int `toml:"height"`
		} `toml:"composition"`
	}
	custom := payload{}
	custom.Paths.WorkDir = filepath.Join(tempDir, "work")
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.FFmpeg.TimeoutSeconds = 0
	custom.FFmpeg.CRF = 28
	custom.Composition.Width = 1920
	custom.Composition.Height = 1080
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.OutputDir != custom.Paths.OutputDir {
		t.Fatalf("expected output dir from file, got %q", cfg.Paths.OutputDir)
	}
	if cfg.FFmpeg.CRF != 28 {
		t.Fatalf("expected crf 28, got %d", cfg.FFmpeg.CRF)
	}
	if cfg.TranscodeTimeout() != 0 {
		t.Fatalf("expected disabled timeout, got %v", cfg.TranscodeTimeout())
	}
	if cfg.Composition.Width != 1920 {
		t.Fatalf("expected width override, got %d", cfg.Composition.Width)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "reelforge.toml")
	if err := os.WriteFile(configPath, []byte("[ffmpeg]\nbogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvTokenOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "reelforge.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\napi_token = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REELFORGE_API_TOKEN", "from-env")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "from-env" {
		t.Fatalf("expected env token, got %q", cfg.Paths.APIToken)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[composition]") {
		t.Fatalf("sample config missing composition section")
	}
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	mutations := map[string]func(*config.Config){
		"odd width":          func(c *config.Config) { c.Composition.Width = 1279 },
		"bgm volume":         func(c *config.Config) { c.Composition.BGMVolume = 1.5 },
		"font bounds":        func(c *config.Config) { c.Composition.MaxFontSize = 4 },
		"negative timeout":   func(c *config.Config) { c.FFmpeg.TimeoutSeconds = -1 },
		"frame rate":         func(c *config.Config) { c.FFmpeg.FrameRate = 0 },
		"shared dirs":        func(c *config.Config) { c.Paths.OutputDir = c.Paths.WorkDir },
		"bad bind":           func(c *config.Config) { c.Paths.APIBind = "nope" },
		"log format":         func(c *config.Config) { c.Logging.Format = "xml" },
		"burst without rate": func(c *config.Config) { c.API.UploadBurst = 0 },
		"notify timeout":     func(c *config.Config) { c.Notifications.RequestTimeoutSeconds = -5 },
	}
	for name, mutate := range mutations {
		cfg := config.Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
