package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// FFmpeg contains the transcoding toolchain and fixed output settings.
type FFmpeg struct {
	Binary         string `toml:"binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	VideoCodec     string `toml:"video_codec"`
	Preset         string `toml:"preset"`
	CRF            int    `toml:"crf"`
	PixelFormat    string `toml:"pixel_format"`
	FrameRate      int    `toml:"frame_rate"`
	AudioCodec     string `toml:"audio_codec"`
	AudioBitrate   string `toml:"audio_bitrate"`
	VerifyOutput   bool   `toml:"verify_output"`
}

// Composition holds the defaults applied to descriptors at ingestion and the
// subtitle rendering limits used by the synthesizer.
type Composition struct {
	Width           int      `toml:"width"`
	Height          int      `toml:"height"`
	SceneDuration   float64  `toml:"scene_duration"`
	BGMVolume       float64  `toml:"bgm_volume"`
	VoiceVolume     float64  `toml:"voice_volume"`
	DefaultFontSize int      `toml:"default_font_size"`
	MinFontSize     int      `toml:"min_font_size"`
	MaxFontSize     int      `toml:"max_font_size"`
	FontColor       string   `toml:"font_color"`
	FontCandidates  []string `toml:"font_candidates"`
}

// Assets contains upload acceptance limits.
type Assets struct {
	MaxBytes     int64 `toml:"max_bytes"`
	SniffContent bool  `toml:"sniff_content"`
}

// Registry contains project retention settings.
type Registry struct {
	ProjectTTLHours int    `toml:"project_ttl_hours"`
	SweepSchedule   string `toml:"sweep_schedule"`
}

// API contains HTTP surface limits.
type API struct {
	UploadRate  float64 `toml:"upload_rate"`
	UploadBurst int     `toml:"upload_burst"`
}

// Notifications configures ntfy delivery of assembly outcomes.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	OnSuccess             bool   `toml:"on_success"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reelforge.
//
// Configuration sections by subsystem:
//   - Paths: scratch, output, and log directories plus the API bind address
//   - FFmpeg: binaries, timeout, and fixed codec/container flags
//   - Composition: descriptor defaults and subtitle font handling
//   - Assets: upload size limit and content sniffing
//   - Registry: project TTL and sweep schedule
//   - API: upload rate limiting
//   - Notifications: ntfy topic for render outcomes
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Composition   Composition   `toml:"composition"`
	Assets        Assets        `toml:"assets"`
	Registry      Registry      `toml:"registry"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the scratch, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryDBPath returns the location of the assembly ledger.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "reelforged.lock")
}

// TranscodeTimeout converts the configured ffmpeg timeout. Zero disables it.
func (c *Config) TranscodeTimeout() time.Duration {
	if c.FFmpeg.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.FFmpeg.TimeoutSeconds) * time.Second
}

// ProjectTTL converts the configured project retention window. Zero disables sweeping.
func (c *Config) ProjectTTL() time.Duration {
	if c.Registry.ProjectTTLHours <= 0 {
		return 0
	}
	return time.Duration(c.Registry.ProjectTTLHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
