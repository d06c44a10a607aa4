package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneOldLogs deletes files in dir whose names match pattern and whose
// modification time is older than retentionDays. Paths listed in keep survive
// regardless of age. A retentionDays value of 0 disables pruning. The number of
// removed files is returned.
func PruneOldLogs(logger *slog.Logger, dir, pattern string, retentionDays int, keep ...string) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	kept := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(path); err == nil {
			kept[abs] = struct{}{}
		}
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
				continue
			}
		}
		full, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if _, skip := kept[full]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(full); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", full),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", full), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
