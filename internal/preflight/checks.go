package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"

	"reelforge/internal/config"
	"reelforge/internal/deps"
)

// MinFreeBytes is the free space below which a scratch or output volume is
// reported as failing.
const MinFreeBytes = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace reports whether the volume holding path has at least
// minBytes available.
func CheckFreeSpace(ctx context.Context, name, path string, minBytes uint64) Result {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: usage: %v)", path, err)}
	}
	free := humanize.IBytes(usage.Free)
	if usage.Free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s free on %s, need %s", free, path, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free (%.0f%% used)", free, usage.UsedPercent)}
}

// CheckSystemDeps evaluates the external binaries for the given config. The
// ffmpeg filter check runs only when ffmpeg itself resolves.
func CheckSystemDeps(ctx context.Context, cfg *config.Config, run deps.RunFunc) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpeg.Binary,
			Description: "Required for rendering",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFmpeg.FFprobeBinary,
			Description: "Verifies rendered output",
			Optional:    !cfg.FFmpeg.VerifyOutput,
		},
	}
	statuses := deps.CheckBinaries(requirements)
	if statuses[0].Available {
		statuses = append(statuses, deps.CheckFFmpegFilters(ctx, statuses[0].Command, run))
	}
	return statuses
}
