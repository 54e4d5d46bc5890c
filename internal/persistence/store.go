package persistence

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ict-core/enginecore/internal/coreerr"
	"github.com/ict-core/enginecore/pkg/metrics"
)

// errRecordNotFound is returned by Load when no file matches category/id,
// whether resolved through the index or by directory glob.
var errRecordNotFound = errors.New("persistence: no record found for category/id")

// Store is the two-tier (file + optional embedded relational index) record
// store. Grounded on
// original_source/.../production_data_persistence.py's _write_record
// (tmp-write, fsync, atomic rename, per-path lock) and
// other_examples/.../internal-state-persistence.go.go's Go idiom for the
// same pattern.
type Store struct {
	baseDir          string
	compress         bool
	syncToDisk       bool
	maxFileSizeBytes int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	metricsMu sync.Mutex
	metrics   Metrics

	index *Index // may be nil if sqlite index disabled
}

// NewStore creates a Store rooted at baseDir. If index is non-nil, every
// Write also inserts a row into the embedded relational index (two-tier
// storage).
func NewStore(baseDir string, compress, syncToDisk bool, maxFileSizeMB int64, index *Index) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, coreerr.NewFatal("persistence.NewStore", err)
	}
	return &Store{
		baseDir:          baseDir,
		compress:         compress,
		syncToDisk:       syncToDisk,
		maxFileSizeBytes: maxFileSizeMB * 1024 * 1024,
		locks:            make(map[string]*sync.Mutex),
		index:            index,
	}, nil
}

func (s *Store) lockFor(path string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[path]
	if !ok {
		m = &sync.Mutex{}
		s.locks[path] = m
	}
	return m
}

// pathFor builds base/<category>/<YYYY-MM-DD>/<id>_<HHMMSS_mmm>.json[.gz]
// (on-disk format).
func (s *Store) pathFor(category, id string, ts time.Time) string {
	day := ts.Format("2006-01-02")
	stamp := fmt.Sprintf("%s_%03d", ts.Format("150405"), ts.Nanosecond()/1_000_000)
	name := fmt.Sprintf("%s_%s.json", id, stamp)
	if s.compress {
		name += ".gz"
	}
	return filepath.Join(s.baseDir, category, day, name)
}

// Store writes a record atomically: marshal -> write to a .tmp sibling ->
// fsync -> rename over the final path. Per-path locking serializes
// concurrent writers targeting the same file (concurrency model).
func (s *Store) Store(ctx context.Context, rec Record) error {
	start := time.Now()
	path := s.pathFor(rec.Category, rec.ID, rec.Timestamp)
	lock := s.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.recordError()
		return coreerr.NewResourceExhaustion("persistence.Store", err)
	}

	body, err := json.Marshal(rec)
	if err != nil {
		s.recordError()
		return coreerr.NewInvariantViolation("persistence.Store", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		s.recordError()
		return coreerr.NewResourceExhaustion("persistence.Store", err)
	}

	var writeErr error
	if s.compress {
		gz := gzip.NewWriter(f)
		_, writeErr = gz.Write(body)
		if writeErr == nil {
			writeErr = gz.Close()
		}
	} else {
		_, writeErr = f.Write(body)
	}
	if writeErr == nil && s.syncToDisk {
		writeErr = f.Sync()
	}
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmp)
		s.recordError()
		return coreerr.NewResourceExhaustion("persistence.Store", writeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		s.recordError()
		return coreerr.NewResourceExhaustion("persistence.Store", err)
	}

	if s.index != nil {
		if err := s.index.Insert(ctx, rec, path); err != nil {
			// The file write succeeded; the index is a secondary, rebuildable
			// projection, so an index-write failure is transient, not fatal.
			s.recordError()
			return coreerr.NewTransient("persistence.Store.index", err)
		}
	}

	dur := time.Since(start)
	s.recordWrite(len(body), dur)
	metrics.RecordPersistenceWrite(rec.Category, dur, nil)
	return nil
}

// Load resolves the most recently stored record under category/id and
// returns it, consulting the embedded index when present and falling back
// to a directory glob over category's date-partitioned layout otherwise (or
// when the index has no row for id, e.g. after a Cleanup).
func (s *Store) Load(ctx context.Context, category, id string) (Record, error) {
	if s.index != nil {
		if path, err := s.index.PathForID(ctx, id); err == nil {
			if rec, loadErr := s.LoadPath(ctx, path); loadErr == nil {
				return rec, nil
			}
		}
	}
	path, err := s.findLatestPath(category, id)
	if err != nil {
		return Record{}, err
	}
	return s.LoadPath(ctx, path)
}

// findLatestPath globs category's date-partitioned directories for id,
// newest day first, and returns the lexically last (i.e. most recently
// written) match within that day.
func (s *Store) findLatestPath(category, id string) (string, error) {
	categoryDir := filepath.Join(s.baseDir, category)
	entries, err := os.ReadDir(categoryDir)
	if err != nil {
		return "", coreerr.NewInvariantViolation("persistence.Load", errRecordNotFound)
	}

	days := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			days = append(days, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	for _, day := range days {
		matches, _ := filepath.Glob(filepath.Join(categoryDir, day, id+"_*"))
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return matches[len(matches)-1], nil
	}
	return "", coreerr.NewInvariantViolation("persistence.Load", errRecordNotFound)
}

// LoadPath reads and unmarshals a record at a known on-disk path (used by
// callers that already have a file_path, e.g. from Query's index rows).
func (s *Store) LoadPath(ctx context.Context, path string) (Record, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		s.recordError()
		return Record{}, coreerr.NewTransient("persistence.Load", err)
	}
	defer f.Close()

	var body []byte
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			s.recordError()
			return Record{}, coreerr.NewInvariantViolation("persistence.Load", err)
		}
		defer gz.Close()
		body, err = io.ReadAll(gz)
		if err != nil {
			s.recordError()
			return Record{}, coreerr.NewInvariantViolation("persistence.Load", err)
		}
	} else {
		body, err = io.ReadAll(f)
		if err != nil {
			s.recordError()
			return Record{}, coreerr.NewInvariantViolation("persistence.Load", err)
		}
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		s.recordError()
		return Record{}, coreerr.NewInvariantViolation("persistence.Load", err)
	}

	dur := time.Since(start)
	s.recordRead(dur)
	metrics.RecordPersistenceRead(rec.Category, dur)
	return rec, nil
}

// WriteSnapshot persists an arbitrary value under category/id as a record
// with the current timestamp, written through Store (so it is gzipped when
// the store compresses), satisfying coordinator.SnapshotWriter and
// recovery.SnapshotWriter (the coordinator's system_status snapshot and the
// recovery engine's recovery_history snapshot).
func (s *Store) WriteSnapshot(ctx context.Context, category, id string, v any) error {
	return s.Store(ctx, Record{
		ID:        id,
		Category:  category,
		Timestamp: time.Now().UTC(),
		Payload:   v,
	})
}

func (s *Store) recordWrite(bytes int, dur time.Duration) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.TotalWrites++
	if s.compress {
		s.metrics.CompressedWrites++
	}
	s.metrics.StorageBytes += int64(bytes)
	n := float64(s.metrics.TotalWrites)
	s.metrics.AvgWriteMS = (s.metrics.AvgWriteMS*(n-1) + float64(dur.Milliseconds())) / n
}

func (s *Store) recordRead(dur time.Duration) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.TotalReads++
	n := float64(s.metrics.TotalReads)
	s.metrics.AvgReadMS = (s.metrics.AvgReadMS*(n-1) + float64(dur.Milliseconds())) / n
}

func (s *Store) recordError() {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.Errors++
}

// Metrics returns a snapshot of the store's running metrics.
func (s *Store) Metrics() Metrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

func (s *Store) incBackupCount() {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.BackupCount++
}
