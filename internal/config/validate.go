package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateComposition(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.WorkDir == c.Paths.OutputDir {
		return errors.New("paths.work_dir and paths.output_dir must differ; scratch cleanup would remove outputs")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.TimeoutSeconds < 0 {
		return errors.New("ffmpeg.timeout_seconds must be >= 0")
	}
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 63 {
		return errors.New("ffmpeg.crf must be between 0 and 63")
	}
	if c.FFmpeg.FrameRate <= 0 || c.FFmpeg.FrameRate > 120 {
		return errors.New("ffmpeg.frame_rate must be between 1 and 120")
	}
	return nil
}

func (c *Config) validateComposition() error {
	comp := c.Composition
	if comp.Width <= 0 || comp.Height <= 0 {
		return errors.New("composition.width and composition.height must be positive")
	}
	if comp.Width%2 != 0 || comp.Height%2 != 0 {
		return errors.New("composition.width and composition.height must be even for yuv420p output")
	}
	if comp.SceneDuration <= 0 {
		return errors.New("composition.scene_duration must be positive")
	}
	if comp.BGMVolume < 0 || comp.BGMVolume > 1 {
		return errors.New("composition.bgm_volume must be between 0 and 1")
	}
	if comp.VoiceVolume < 0 {
		return errors.New("composition.voice_volume must be >= 0")
	}
	if comp.MinFontSize <= 0 || comp.MaxFontSize < comp.MinFontSize {
		return errors.New("composition.min_font_size must be positive and <= max_font_size")
	}
	if comp.DefaultFontSize < comp.MinFontSize || comp.DefaultFontSize > comp.MaxFontSize {
		return errors.New("composition.default_font_size must be within [min_font_size, max_font_size]")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Assets.MaxBytes < 0 {
		return errors.New("assets.max_bytes must be >= 0")
	}
	if c.Registry.ProjectTTLHours < 0 {
		return errors.New("registry.project_ttl_hours must be >= 0")
	}
	if c.API.UploadRate < 0 {
		return errors.New("api.upload_rate must be >= 0")
	}
	if c.API.UploadRate > 0 && c.API.UploadBurst <= 0 {
		return errors.New("api.upload_burst must be positive when api.upload_rate is set")
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
