package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFFmpeg()
	c.normalizeComposition()
	c.normalizeRegistry()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if value, ok := os.LookupEnv("REELFORGE_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIToken = strings.TrimSpace(value)
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
	c.FFmpeg.VideoCodec = strings.TrimSpace(c.FFmpeg.VideoCodec)
	if c.FFmpeg.VideoCodec == "" {
		c.FFmpeg.VideoCodec = defaultVideoCodec
	}
	c.FFmpeg.Preset = strings.TrimSpace(c.FFmpeg.Preset)
	c.FFmpeg.PixelFormat = strings.TrimSpace(c.FFmpeg.PixelFormat)
	if c.FFmpeg.PixelFormat == "" {
		c.FFmpeg.PixelFormat = defaultPixelFormat
	}
	c.FFmpeg.AudioCodec = strings.TrimSpace(c.FFmpeg.AudioCodec)
	if c.FFmpeg.AudioCodec == "" {
		c.FFmpeg.AudioCodec = defaultAudioCodec
	}
	c.FFmpeg.AudioBitrate = strings.TrimSpace(c.FFmpeg.AudioBitrate)
}

func (c *Config) normalizeComposition() {
	c.Composition.FontColor = strings.TrimSpace(c.Composition.FontColor)
	if c.Composition.FontColor == "" {
		c.Composition.FontColor = defaultFontColor
	}
	fonts := make([]string, 0, len(c.Composition.FontCandidates))
	seen := make(map[string]struct{}, len(c.Composition.FontCandidates))
	for _, candidate := range c.Composition.FontCandidates {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		if expanded, err := expandPath(trimmed); err == nil {
			trimmed = expanded
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		fonts = append(fonts, trimmed)
	}
	c.Composition.FontCandidates = fonts
}

func (c *Config) normalizeRegistry() {
	c.Registry.SweepSchedule = strings.TrimSpace(c.Registry.SweepSchedule)
	if c.Registry.SweepSchedule == "" {
		c.Registry.SweepSchedule = defaultSweepSchedule
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
