package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"reelforge/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func checkLines(checks []api.CheckResult, colorize bool) []string {
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	var missing []string
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusError, strings.Join(missing, ", ")+" (assembly will fail)", colorize))
	}
	return lines
}

func hostLines(host api.HostStatus, colorize bool) []string {
	name := host.Hostname
	if name == "" {
		name = "unknown"
	}
	return []string{
		renderStatusLine("Host", statusInfo, fmt.Sprintf("%s (%s)", name, host.Platform), colorize),
		renderStatusLine("CPUs", statusInfo, fmt.Sprintf("%d logical", host.LogicalCPUs), colorize),
		renderStatusLine("Memory", statusInfo, fmt.Sprintf("%s total, %.0f%% used", humanize.IBytes(host.MemoryTotal), host.MemoryUsedPct), colorize),
		renderStatusLine("Work volume free", statusInfo, humanize.IBytes(host.WorkDirFree), colorize),
		renderStatusLine("Output volume free", statusInfo, humanize.IBytes(host.OutputDirFree), colorize),
	}
}

var phaseOrder = []string{"created", "collecting", "ready", "assembling", "completed", "failed"}

func buildPhaseRows(counts map[string]int) [][]string {
	rank := make(map[string]int, len(phaseOrder))
	for i, phase := range phaseOrder {
		rank[phase] = i
	}
	phases := make([]string, 0, len(counts))
	for phase, n := range counts {
		if n > 0 {
			phases = append(phases, phase)
		}
	}
	sort.Slice(phases, func(i, j int) bool {
		ri, iok := rank[phases[i]]
		rj, jok := rank[phases[j]]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return phases[i] < phases[j]
	})
	rows := make([][]string, 0, len(phases))
	for _, phase := range phases {
		rows = append(rows, []string{titleCase(phase), fmt.Sprintf("%d", counts[phase])})
	}
	return rows
}
