package persistence

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ict-core/enginecore/internal/coreerr"
)

// Backup copies the entire data directory (and the sqlite index file, if
// present) into base/backup_<YYYYMMDD_HHMMSS>/, writes a backup_manifest.json
// there, then prunes backups older than retentionDays. Grounded on
// original_source/.../production_data_persistence.py's create_backup.
func (s *Store) Backup(ctx context.Context, sqlitePath string, retentionDays int) (BackupManifest, error) {
	now := time.Now().UTC()
	backupDir := filepath.Join(s.baseDir, "backup_"+now.Format("20060102_150405"))
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return BackupManifest{}, coreerr.NewResourceExhaustion("persistence.Backup", err)
	}

	total := 0
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(filepath.Dir(path)), "backup_") || strings.HasPrefix(info.Name(), "backup_") {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(backupDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := copyFile(path, dst); err != nil {
			return err
		}
		total++
		return nil
	})
	if err != nil {
		return BackupManifest{}, coreerr.NewResourceExhaustion("persistence.Backup", err)
	}

	includesDB := false
	if sqlitePath != "" {
		if _, err := os.Stat(sqlitePath); err == nil {
			if err := copyFile(sqlitePath, filepath.Join(backupDir, filepath.Base(sqlitePath))); err == nil {
				includesDB = true
				total++
			}
		}
	}

	manifest := BackupManifest{
		Timestamp:        now,
		CreatedAt:        now,
		DataPath:         s.baseDir,
		BackupPath:       backupDir,
		IncludesDatabase: includesDB,
		TotalFiles:       total,
	}
	manifestBody, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return manifest, coreerr.NewInvariantViolation("persistence.Backup", err)
	}
	if err := os.WriteFile(filepath.Join(backupDir, "backup_manifest.json"), manifestBody, 0o644); err != nil {
		return manifest, coreerr.NewResourceExhaustion("persistence.Backup", err)
	}

	s.incBackupCount()
	if err := s.pruneBackups(retentionDays); err != nil {
		return manifest, err
	}
	return manifest, nil
}

// pruneBackups removes backup_ directories older than retentionDays, an
// internal step of Backup itself (distinct from Cleanup's data retention).
func (s *Store) pruneBackups(retentionDays int) error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return coreerr.NewTransient("persistence.Backup", err)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "backup_") {
			continue
		}
		ts, err := time.Parse("20060102_150405", strings.TrimPrefix(e.Name(), "backup_"))
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(s.baseDir, e.Name())); err != nil {
				return coreerr.NewTransient("persistence.Backup", err)
			}
		}
	}
	return nil
}

// Cleanup removes data older than retentionDays from category's (or, when
// category is empty, every category's) date-partitioned directories, and
// prunes the matching rows from the embedded index, if one is attached.
// Grounded on original_source/.../production_data_persistence.py's
// cleanup_old_data(category=None).
func (s *Store) Cleanup(ctx context.Context, category string, retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	categories := []string{category}
	if category == "" {
		entries, err := os.ReadDir(s.baseDir)
		if err != nil {
			return coreerr.NewTransient("persistence.Cleanup", err)
		}
		categories = categories[:0]
		for _, e := range entries {
			if e.IsDir() && !strings.HasPrefix(e.Name(), "backup_") {
				categories = append(categories, e.Name())
			}
		}
	}

	for _, cat := range categories {
		catDir := filepath.Join(s.baseDir, cat)
		days, err := os.ReadDir(catDir)
		if err != nil {
			continue
		}
		for _, d := range days {
			if !d.IsDir() {
				continue
			}
			day, err := time.Parse("2006-01-02", d.Name())
			if err != nil {
				continue
			}
			if day.Before(cutoff) {
				if err := os.RemoveAll(filepath.Join(catDir, d.Name())); err != nil {
					return coreerr.NewTransient("persistence.Cleanup", err)
				}
			}
		}

		if s.index != nil {
			if err := s.index.DeleteOlderThan(ctx, cat, cutoff); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Scheduler runs Backup on backupInterval and Cleanup nightly, using
// github.com/robfig/cron/v3, grounded on services/automation's scheduler
// usage.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry
}

// NewScheduler wires a cron scheduler for the given store.
func NewScheduler(store *Store, sqlitePath string, backupInterval time.Duration, retentionDays int, log *logrus.Entry) *Scheduler {
	c := cron.New()
	spec := "@every " + backupInterval.String()
	c.AddFunc(spec, func() {
		if _, err := store.Backup(context.Background(), sqlitePath, retentionDays); err != nil && log != nil {
			log.WithError(err).Warn("persistence: scheduled backup failed")
		}
	})
	c.AddFunc("@daily", func() {
		if err := store.Cleanup(context.Background(), "", retentionDays); err != nil && log != nil {
			log.WithError(err).Warn("persistence: scheduled cleanup failed")
		}
	})
	return &Scheduler{cron: c, log: log}
}

// Start launches the scheduler's background goroutines.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
