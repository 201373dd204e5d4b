package jobs

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// tmpMaxAge bounds how long an abandoned conversion scratch file may
// linger before the sweep removes it.
const tmpMaxAge = time.Hour

// CacheCleanupJob sweeps the conversion cache directory. Recordings
// and blueprint files older than the retention window are deleted;
// orphaned .tmp files from crashed conversions go after an hour.
type CacheCleanupJob struct {
	cacheDir      string
	retentionDays int
}

// NewCacheCleanupJob creates a cleanup job for the given cache
// directory. retentionDays <= 0 disables the recording sweep but
// still clears stale scratch files.
func NewCacheCleanupJob(cacheDir string, retentionDays int) *CacheCleanupJob {
	return &CacheCleanupJob{cacheDir: cacheDir, retentionDays: retentionDays}
}

// Run performs one sweep of the cache directory.
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	entries, err := os.ReadDir(j.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	now := time.Now()
	retentionCutoff := now.AddDate(0, 0, -j.retentionDays)
	tmpCutoff := now.Add(-tmpMaxAge)

	removed := 0
	var freed int64
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		var expired bool
		switch {
		case strings.HasSuffix(entry.Name(), ".tmp"):
			expired = info.ModTime().Before(tmpCutoff)
		case strings.HasSuffix(entry.Name(), ".rec"), strings.HasSuffix(entry.Name(), ".rbl"):
			expired = j.retentionDays > 0 && info.ModTime().Before(retentionCutoff)
		}
		if !expired {
			continue
		}

		path := filepath.Join(j.cacheDir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("⚠️  [CACHE-CLEANUP] Failed to remove %s: %v", path, err)
			continue
		}
		removed++
		freed += info.Size()
	}

	if removed > 0 {
		log.Printf("🧹 [CACHE-CLEANUP] Removed %d file(s), freed %d bytes", removed, freed)
	}
	return nil
}

// GetNextRunTime schedules the sweep daily at 3 AM UTC.
func (j *CacheCleanupJob) GetNextRunTime() time.Time {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, time.UTC)
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
