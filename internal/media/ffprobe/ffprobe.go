package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoVideoStream is returned by VerifyVideo when the file has no video.
var ErrNoVideoStream = errors.New("no video stream")

// Result is the subset of ffprobe output the engine reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes one elementary stream.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

// Format is container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// RunFunc executes ffprobe and returns its stdout.
type RunFunc func(ctx context.Context, binary string, args []string) ([]byte, error)

// Prober runs ffprobe.
type Prober struct {
	binary string
	run    RunFunc
}

// New constructs a prober. An empty binary means "ffprobe" on PATH; a nil run
// executes the real binary.
func New(binary string, run RunFunc) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if run == nil {
		run = execRun
	}
	return &Prober{binary: binary, run: run}
}

func execRun(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Binary returns the configured executable.
func (p *Prober) Binary() string {
	return p.binary
}

// Inspect probes path and decodes the report.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
	output, err := p.run(ctx, p.binary, args)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VerifyVideo fails unless path carries at least one video stream.
func (p *Prober) VerifyVideo(ctx context.Context, path string) error {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		return err
	}
	if result.StreamCount("video") == 0 {
		return fmt.Errorf("%w in %s", ErrNoVideoStream, path)
	}
	return nil
}

// StreamCount counts streams of codecType ("video", "audio").
func (r Result) StreamCount(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration, 0 when absent, or NaN when
// ffprobe reported something unparseable.
func (r Result) DurationSeconds() float64 {
	cleaned := strings.TrimSpace(r.Format.Duration)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.NaN()
	}
	return parsed
}

// Dimensions returns the frame size of the first video stream.
func (r Result) Dimensions() (int, int, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") && stream.Width > 0 && stream.Height > 0 {
			return stream.Width, stream.Height, true
		}
	}
	return 0, 0, false
}
