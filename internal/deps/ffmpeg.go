package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// RequiredFilters lists the ffmpeg filters every synthesized graph may use.
var RequiredFilters = []string{
	"scale", "pad", "setsar", "fps", "trim", "setpts", "concat",
	"drawtext", "aformat", "volume", "amix",
}

// RunFunc executes a binary and returns its combined output.
type RunFunc func(ctx context.Context, binary string, args ...string) ([]byte, error)

func execRun(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

// CheckFFmpegFilters asks ffmpeg for its filter list and reports any of the
// required filters it lacks. drawtext is absent from builds without
// libfreetype, which breaks subtitle burn-in.
func CheckFFmpegFilters(ctx context.Context, binary string, run RunFunc) Status {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	result := Status{
		Name:        "FFmpeg filters",
		Command:     binary,
		Description: "Filters used by synthesized graphs",
	}
	if run == nil {
		run = execRun
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := run(checkCtx, binary, "-hide_banner", "-filters")
	if err != nil {
		result.Detail = fmt.Sprintf("list filters: %v", err)
		return result
	}
	available := parseFilterNames(out)
	var missing []string
	for _, name := range RequiredFilters {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		result.Detail = "missing filters: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// parseFilterNames reads `ffmpeg -filters` output. Filter rows look like
// " TSC drawtext          V->V       Draw text on top of video frames".
func parseFilterNames(out []byte) map[string]struct{} {
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		names[fields[1]] = struct{}{}
	}
	return names
}
