package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names the files in Dir matching Pattern that retention may
// delete. Paths in Exclude are never deleted.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs deletes target files last modified more than retentionDays
// ago and returns how many were removed. Zero or negative retentionDays
// keeps everything. Symlinks such as the framebroker.log pointer are left
// alone.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		removed += pruneTarget(logger, target, cutoff)
	}
	return removed
}

func pruneTarget(logger *slog.Logger, target RetentionTarget, cutoff time.Time) int {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return 0
	}
	pattern := strings.TrimSpace(target.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}

	keep := make(map[string]bool, len(target.Exclude))
	for _, path := range target.Exclude {
		if path = strings.TrimSpace(path); path != "" {
			keep[absPath(path)] = true
		}
	}

	removed := 0
	for _, path := range matches {
		path = absPath(path)
		if keep[path] {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old log could not be removed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check log_dir ownership and permissions"),
				String(FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		removed++
		logger.Info("old log removed",
			String("path", path),
			Duration("age", time.Since(info.ModTime()).Round(time.Hour)),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
