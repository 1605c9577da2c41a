package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const dailyFilePrefix = "yakusub-"

// SweepRetention deletes daily log files older than retentionDays.
// Zero or negative retentionDays disables the sweep.
func SweepRetention(dir string, retentionDays int, now time.Time, logger *slog.Logger) {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := now.UTC().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("log retention sweep skipped", Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		day, ok := parseDailyFileName(entry.Name())
		if !ok {
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove expired log file", String("path", path), Error(err))
			continue
		}
		logger.Debug("removed expired log file", String("path", path))
	}
}

func parseDailyFileName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, dailyFilePrefix) || !strings.HasSuffix(name, ".log") {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, dailyFilePrefix), ".log")
	day, err := time.Parse("2006-01-02", stamp)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
