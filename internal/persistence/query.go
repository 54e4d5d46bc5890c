package persistence

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/ict-core/enginecore/internal/coreerr"
)

// Query returns the records matching opts, newest first, bounded by
// opts.Limit. When the embedded index is enabled it answers directly from
// the data_records table; when disabled it falls back to walking category's
// date-partitioned directories and filtering in memory, so query behavior
// degrades gracefully rather than failing outright.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]Record, error) {
	if s.index == nil {
		return s.queryDirectoryFallback(ctx, opts)
	}
	rows, err := s.index.Query(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.LoadPath(ctx, row.FilePath)
		if err != nil {
			continue // file may have been pruned by retention; skip, don't fail the whole query
		}
		out = append(out, rec)
	}
	return out, nil
}

// queryDirectoryFallback walks opts.Category's date-partitioned directories
// directly, newest day first, loading and filtering each candidate record in
// memory until opts.Limit is reached.
func (s *Store) queryDirectoryFallback(ctx context.Context, opts QueryOptions) ([]Record, error) {
	categoryDir := filepath.Join(s.baseDir, opts.Category)
	entries, err := os.ReadDir(categoryDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coreerr.NewTransient("persistence.Query", err)
	}

	days := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			days = append(days, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []Record
	for _, day := range days {
		if len(out) >= limit {
			break
		}
		dayDir := filepath.Join(categoryDir, day)
		files, err := os.ReadDir(dayDir)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			if !f.IsDir() {
				names = append(names, f.Name())
			}
		}
		sort.Sort(sort.Reverse(sort.StringSlice(names)))

		for _, name := range names {
			if len(out) >= limit {
				break
			}
			rec, err := s.LoadPath(ctx, filepath.Join(dayDir, name))
			if err != nil {
				continue
			}
			if !opts.Since.IsZero() && rec.Timestamp.Before(opts.Since) {
				continue
			}
			if !opts.Until.IsZero() && rec.Timestamp.After(opts.Until) {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
