package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ict-core/enginecore/internal/coreerr"
)

// schema is the embedded relational index's exact schema, taken verbatim
// from original_source/.../production_data_persistence.py.
const schema = `
CREATE TABLE IF NOT EXISTS data_records (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	data_json TEXT NOT NULL,
	metadata_json TEXT,
	file_path TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_category_timestamp ON data_records(category, timestamp);
CREATE INDEX IF NOT EXISTS idx_timestamp ON data_records(timestamp);
`

// Index wraps the embedded sqlite database/sql connection used as the
// secondary, queryable index over Store's file records.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if necessary) the sqlite index database at path.
func OpenIndex(path string, timeout time.Duration) (*Index, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", path, timeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, coreerr.NewFatal("persistence.OpenIndex", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, coreerr.NewFatal("persistence.OpenIndex", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Insert writes (or replaces) the index row for rec.
func (idx *Index) Insert(ctx context.Context, rec Record, filePath string) error {
	dataJSON, err := json.Marshal(rec.Payload)
	if err != nil {
		return coreerr.NewInvariantViolation("persistence.Index.Insert", err)
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return coreerr.NewInvariantViolation("persistence.Index.Insert", err)
	}

	_, err = idx.db.ExecContext(ctx, `
		INSERT INTO data_records (id, category, timestamp, data_json, metadata_json, file_path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category=excluded.category,
			timestamp=excluded.timestamp,
			data_json=excluded.data_json,
			metadata_json=excluded.metadata_json,
			file_path=excluded.file_path
	`, rec.ID, rec.Category, rec.Timestamp.UTC().Format(time.RFC3339Nano), string(dataJSON), string(metaJSON), filePath)
	if err != nil {
		return coreerr.NewTransient("persistence.Index.Insert", err)
	}
	return nil
}

// PathForID returns the file_path indexed for id.
func (idx *Index) PathForID(ctx context.Context, id string) (string, error) {
	var path string
	err := idx.db.QueryRowContext(ctx, `SELECT file_path FROM data_records WHERE id = ?`, id).Scan(&path)
	if err == sql.ErrNoRows {
		return "", coreerr.NewInvariantViolation("persistence.Index.PathForID", errRecordNotFound)
	}
	if err != nil {
		return "", coreerr.NewTransient("persistence.Index.PathForID", err)
	}
	return path, nil
}

// DeleteOlderThan removes rows in category whose timestamp is before cutoff,
// the index-side counterpart of Cleanup's directory pruning.
func (idx *Index) DeleteOlderThan(ctx context.Context, category string, cutoff time.Time) error {
	_, err := idx.db.ExecContext(ctx, `DELETE FROM data_records WHERE category = ? AND timestamp < ?`,
		category, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return coreerr.NewTransient("persistence.Index.DeleteOlderThan", err)
	}
	return nil
}

// IndexRow is a row of the embedded index, returned by Query.
type IndexRow struct {
	ID        string
	Category  string
	Timestamp time.Time
	FilePath  string
}

// Query returns rows matching opts, ordered by timestamp descending, most
// recent first, bounded by opts.Limit.
func (idx *Index) Query(ctx context.Context, opts QueryOptions) ([]IndexRow, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	q := `SELECT id, category, timestamp, file_path FROM data_records WHERE category = ?`
	args := []any{opts.Category}
	if !opts.Since.IsZero() {
		q += ` AND timestamp >= ?`
		args = append(args, opts.Since.UTC().Format(time.RFC3339Nano))
	}
	if !opts.Until.IsZero() {
		q += ` AND timestamp <= ?`
		args = append(args, opts.Until.UTC().Format(time.RFC3339Nano))
	}
	q += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := idx.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, coreerr.NewTransient("persistence.Index.Query", err)
	}
	defer rows.Close()

	var out []IndexRow
	for rows.Next() {
		var row IndexRow
		var ts string
		if err := rows.Scan(&row.ID, &row.Category, &ts, &row.FilePath); err != nil {
			return nil, coreerr.NewInvariantViolation("persistence.Index.Query", err)
		}
		row.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, row)
	}
	return out, rows.Err()
}
