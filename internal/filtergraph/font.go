package filtergraph

import (
	"os"
	"strings"
)

// ResolveFont returns the first candidate for which exists reports true, or
// "" when none do. A nil exists checks for a regular file on disk.
func ResolveFont(candidates []string, exists func(string) bool) string {
	if exists == nil {
		exists = regularFileExists
	}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if exists(candidate) {
			return candidate
		}
	}
	return ""
}

func regularFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ClampFontSize bounds size to [lo, hi], substituting fallback for zero.
func ClampFontSize(size, fallback, lo, hi int) int {
	if size <= 0 {
		size = fallback
	}
	if lo > 0 && size < lo {
		size = lo
	}
	if hi > 0 && size > hi {
		size = hi
	}
	return size
}
