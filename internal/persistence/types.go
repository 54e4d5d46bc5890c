// Package persistence implements the Data Persistence Layer: atomic,
// categorized, indexed record storage with an optional embedded relational
// index, backup and retention. Grounded on
// pkg/storage/crud.go's generic Entity/Filter/Pagination vocabulary (adapted
// from SQL-oriented CRUD to a file+sqlite hybrid) and on
// original_source/01-CORE/data_persistence/production_data_persistence.py
// for exact path layout, schema and metrics formulas.
package persistence

import "time"

// Record is the generic persistence unit.
type Record struct {
	ID        string         `json:"id"`
	Category  string         `json:"category"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   any            `json:"payload"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Metrics mirrors the original's metrics dict.
type Metrics struct {
	TotalWrites      int64   `json:"total_writes"`
	TotalReads       int64   `json:"total_reads"`
	CompressedWrites int64   `json:"compressed_writes"`
	BackupCount      int64   `json:"backup_count"`
	Errors           int64   `json:"errors"`
	AvgWriteMS       float64 `json:"avg_write_time_ms"`
	AvgReadMS        float64 `json:"avg_read_time_ms"`
	StorageBytes     int64   `json:"storage_bytes"`
}

// BackupManifest describes a single backup ("backup manifest format").
type BackupManifest struct {
	Timestamp        time.Time `json:"timestamp"`
	CreatedAt        time.Time `json:"created_at"`
	DataPath         string    `json:"data_path"`
	BackupPath       string    `json:"backup_path"`
	IncludesDatabase bool      `json:"includes_database"`
	TotalFiles       int       `json:"total_files"`
}

// QueryOptions parameterizes Query, vocabulary adapted from
// pkg/storage/crud.go's Filter/Sort/Pagination.
type QueryOptions struct {
	Category string
	Since    time.Time
	Until    time.Time
	Limit    int
}
