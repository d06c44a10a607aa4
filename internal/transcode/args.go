package transcode

import (
	"strconv"
	"strings"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/filtergraph"
)

// Settings are the fixed encoder parameters applied to every render.
type Settings struct {
	Binary       string
	OutputDir    string
	Timeout      time.Duration
	VideoCodec   string
	Preset       string
	CRF          int
	PixelFormat  string
	FrameRate    int
	AudioCodec   string
	AudioBitrate string
}

// SettingsFromConfig extracts invoker settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Binary:       cfg.FFmpeg.Binary,
		OutputDir:    cfg.Paths.OutputDir,
		Timeout:      cfg.TranscodeTimeout(),
		VideoCodec:   cfg.FFmpeg.VideoCodec,
		Preset:       cfg.FFmpeg.Preset,
		CRF:          cfg.FFmpeg.CRF,
		PixelFormat:  cfg.FFmpeg.PixelFormat,
		FrameRate:    cfg.FFmpeg.FrameRate,
		AudioCodec:   cfg.FFmpeg.AudioCodec,
		AudioBitrate: cfg.FFmpeg.AudioBitrate,
	}
}

// BuildArgs assembles the ffmpeg argument vector for plan. Inputs appear in
// plan order so the indexes referenced by the filter graph line up.
func BuildArgs(plan filtergraph.Plan, s Settings, outputPath string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-progress", "pipe:1", "-nostats"}
	for _, in := range plan.Inputs {
		if in.LoopedImage {
			args = append(args, "-loop", "1", "-t", strconv.FormatFloat(in.Duration, 'f', -1, 64))
		}
		args = append(args, "-i", in.Path)
	}
	args = append(args, "-filter_complex", plan.FilterComplex)
	args = append(args, "-map", "["+plan.VideoLabel+"]")
	if plan.HasAudio() {
		args = append(args, "-map", "["+plan.AudioLabel+"]")
	}
	args = append(args,
		"-c:v", s.VideoCodec,
		"-preset", s.Preset,
		"-crf", strconv.Itoa(s.CRF),
		"-pix_fmt", s.PixelFormat,
		"-r", strconv.Itoa(s.FrameRate),
	)
	if plan.HasAudio() {
		args = append(args, "-c:a", s.AudioCodec, "-b:a", s.AudioBitrate)
	}
	// The scenes define the output length. Longer audio is cut here and
	// shorter audio simply ends early.
	if plan.TotalDuration > 0 {
		args = append(args, "-t", strconv.FormatFloat(plan.TotalDuration, 'f', -1, 64))
	}
	args = append(args, "-movflags", "+faststart", outputPath)
	return args
}

// CommandLine renders args as a shell-like string for logs and dry runs.
func CommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(binary))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\;[]()*?$&|<>") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
