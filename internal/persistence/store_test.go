package persistence

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenIndex(filepath.Join(dir, "index.db"), 5*time.Second)
	require.NoError(t, err)
	defer idx.Close()

	store, err := NewStore(dir, false, true, 100, idx)
	require.NoError(t, err)

	rec := Record{
		ID:        "rec-1",
		Category:  "analytics_event",
		Timestamp: time.Now().UTC(),
		Payload:   map[string]any{"symbol": "EURUSD"},
	}
	ctx := context.Background()
	require.NoError(t, store.Store(ctx, rec))

	got, err := store.Query(ctx, QueryOptions{Category: "analytics_event", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "rec-1", got[0].ID)

	m := store.Metrics()
	require.Equal(t, int64(1), m.TotalWrites)
	require.Equal(t, int64(1), m.TotalReads)
}

func TestStoreCompressedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, true, true, 100, nil)
	require.NoError(t, err)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := Record{ID: "gz-1", Category: "pattern_learning", Timestamp: ts, Payload: "payload"}
	ctx := context.Background()
	require.NoError(t, store.Store(ctx, rec))

	path := store.pathFor("pattern_learning", "gz-1", ts)
	loaded, err := store.LoadPath(ctx, path)
	require.NoError(t, err)
	require.Equal(t, "gz-1", loaded.ID)
}

func TestStoreLoadByCategoryAndID(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenIndex(filepath.Join(dir, "index.db"), 5*time.Second)
	require.NoError(t, err)
	defer idx.Close()

	store, err := NewStore(dir, false, true, 100, idx)
	require.NoError(t, err)
	ctx := context.Background()

	rec := Record{ID: "rec-42", Category: "system_status", Timestamp: time.Now().UTC(), Payload: map[string]any{"ok": true}}
	require.NoError(t, store.Store(ctx, rec))

	got, err := store.Load(ctx, "system_status", "rec-42")
	require.NoError(t, err)
	require.Equal(t, "rec-42", got.ID)
	require.Equal(t, "system_status", got.Category)
}

func TestStoreLoadByCategoryAndIDWithoutIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, false, true, 100, nil)
	require.NoError(t, err)
	ctx := context.Background()

	rec := Record{ID: "rec-7", Category: "recovery_state", Timestamp: time.Now().UTC(), Payload: "state"}
	require.NoError(t, store.Store(ctx, rec))

	got, err := store.Load(ctx, "recovery_state", "rec-7")
	require.NoError(t, err)
	require.Equal(t, "rec-7", got.ID)

	_, err = store.Load(ctx, "recovery_state", "does-not-exist")
	require.Error(t, err)
}

func TestQueryDirectoryFallbackWithoutIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, false, true, 100, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, Record{ID: "a", Category: "analytics_event", Timestamp: time.Now().UTC(), Payload: 1}))
	require.NoError(t, store.Store(ctx, Record{ID: "b", Category: "analytics_event", Timestamp: time.Now().UTC(), Payload: 2}))
	require.NoError(t, store.Store(ctx, Record{ID: "c", Category: "other", Timestamp: time.Now().UTC(), Payload: 3}))

	got, err := store.Query(ctx, QueryOptions{Category: "analytics_event", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestBackupCopiesDataAndCountsBackup(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, false, true, 100, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Store(ctx, Record{ID: "a", Category: "c", Timestamp: time.Now().UTC(), Payload: 1}))

	manifest, err := store.Backup(ctx, "", 30)
	require.NoError(t, err)
	require.True(t, manifest.TotalFiles >= 1)
	require.Equal(t, int64(1), store.Metrics().BackupCount)
}

func TestCleanupPrunesOldDataAndIndexRows(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenIndex(filepath.Join(dir, "index.db"), 5*time.Second)
	require.NoError(t, err)
	defer idx.Close()

	store, err := NewStore(dir, false, true, 100, idx)
	require.NoError(t, err)
	ctx := context.Background()

	oldTS := time.Now().UTC().AddDate(0, 0, -90)
	oldRec := Record{ID: "old-1", Category: "analytics_event", Timestamp: oldTS, Payload: 1}
	oldPath := store.pathFor("analytics_event", "old-1", oldTS)
	require.NoError(t, os.MkdirAll(filepath.Dir(oldPath), 0o755))
	body, err := json.Marshal(oldRec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(oldPath, body, 0o644))
	require.NoError(t, idx.Insert(ctx, oldRec, oldPath))

	require.NoError(t, store.Store(ctx, Record{ID: "new-1", Category: "analytics_event", Timestamp: time.Now().UTC(), Payload: 2}))

	require.NoError(t, store.Cleanup(ctx, "analytics_event", 30))

	_, err = os.Stat(filepath.Dir(oldPath))
	require.True(t, os.IsNotExist(err))

	_, err = idx.PathForID(ctx, "old-1")
	require.Error(t, err)

	path, err := idx.PathForID(ctx, "new-1")
	require.NoError(t, err)
	require.NotEmpty(t, path)
}
