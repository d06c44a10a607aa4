package preflight

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSnapshot summarizes the machine the renderer runs on. Zero values mean
// the probe was unavailable.
type HostSnapshot struct {
	Hostname      string
	Platform      string
	Uptime        time.Duration
	LogicalCPUs   int
	MemoryTotal   uint64
	MemoryUsedPct float64
	WorkDirFree   uint64
	OutputDirFree uint64
}

// ProbeHost gathers host statistics for status output. Individual probe
// failures leave their fields zeroed.
func ProbeHost(ctx context.Context, workDir, outputDir string) HostSnapshot {
	snap := HostSnapshot{Platform: runtime.GOOS + "/" + runtime.GOARCH}
	if info, err := host.InfoWithContext(ctx); err == nil {
		snap.Hostname = info.Hostname
		snap.Uptime = time.Duration(info.Uptime) * time.Second
		if info.Platform != "" {
			snap.Platform = info.Platform + " " + info.PlatformVersion
		}
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		snap.LogicalCPUs = n
	} else {
		snap.LogicalCPUs = runtime.NumCPU()
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryTotal = vm.Total
		snap.MemoryUsedPct = vm.UsedPercent
	}
	if workDir != "" {
		if usage, err := disk.UsageWithContext(ctx, workDir); err == nil {
			snap.WorkDirFree = usage.Free
		}
	}
	if outputDir != "" {
		if usage, err := disk.UsageWithContext(ctx, outputDir); err == nil {
			snap.OutputDirFree = usage.Free
		}
	}
	return snap
}
