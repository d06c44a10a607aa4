package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

func titleCase(value string) string {
	return titleCaser.String(strings.ReplaceAll(strings.TrimSpace(value), "_", " "))
}

// relativeTime renders an API timestamp as "3 minutes ago", or the raw value
// when it does not parse.
func relativeTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	return humanize.Time(t)
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(100 * time.Millisecond).String()
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func progressText(percent float64) string {
	if percent < 0 {
		return "rendering"
	}
	return fmt.Sprintf("%.1f%%", percent)
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
