package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (f *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (f *fakeResult) RowsAffected() (int64, error) { return f.rowsAffected, f.err }

func TestNewSQLite_InvalidDSN(t *testing.T) {
	// Use a path that cannot be created (nested under a nonexistent parent).
	_, err := NewSQLite("/nonexistent/dir/subdir/test.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestNewSQLite_ValidPath(t *testing.T) {
	s := newTestSQLiteStore(t)

	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestNewSQLite_CloseAndReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.Migrate(context.Background()))
	run, err := s1.StartRun(context.Background(), 2023)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() }) //nolint:errcheck

	got, err := s2.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestMigrate_AddsSnapshotSheetColumn(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "old.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	ctx := context.Background()

	_, err = s.db.ExecContext(ctx, `CREATE TABLE snapshots (
		year        INTEGER PRIMARY KEY,
		source_path TEXT NOT NULL,
		source_size INTEGER NOT NULL,
		source_mod  DATETIME NOT NULL,
		sha256      TEXT NOT NULL,
		path        TEXT NOT NULL,
		rows        INTEGER NOT NULL,
		created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (year, source_path, source_size, source_mod, sha256, path, rows)
		 VALUES (2015, '/data/results.xlsx', 10, ?, 'abc', '/cache/obs2015_results.parquet', 3)`,
		time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	got, err := s.GetSnapshot(ctx, 2015)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.SourceSheet)
	assert.Equal(t, "abc", got.SHA256)

	require.NoError(t, s.PutSnapshot(ctx, &Snapshot{Year: 2015, SourceSheet: "Data", SourceMod: time.Now()}))
	got, err = s.GetSnapshot(ctx, 2015)
	require.NoError(t, err)
	assert.Equal(t, "Data", got.SourceSheet)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetRun(context.Background(), "totally-missing-id")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestCompleteRun_NonexistentRun(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.CompleteRun(context.Background(), "missing", &RunResult{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))

	err = s.FailRun(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestScanRun_CorruptResultJSON(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, year, status, result, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"corrupt-result-id", 2023, "complete", "not-valid-json{{{", time.Now().UTC(), time.Now().UTC(),
	)
	require.NoError(t, err)

	_, err = s.GetRun(ctx, "corrupt-result-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal result")
}

func TestCheckRowsAffected(t *testing.T) {
	err := checkRowsAffected(&fakeResult{rowsAffected: 0}, "run", "abc-123")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "run abc-123")

	err = checkRowsAffected(&fakeResult{err: assert.AnError}, "run", "abc-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected")

	require.NoError(t, checkRowsAffected(&fakeResult{rowsAffected: 1}, "run", "abc-123"))
}

func TestFailRun_NilCause(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, 2015)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, nil))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "unknown error", got.Error)
}

func TestClose_OperationsAfterClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "close.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	ctx := context.Background()
	run, err := s.StartRun(ctx, 2023)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.StartRun(ctx, 2023)
	require.Error(t, err)

	err = s.CompleteRun(ctx, run.ID, &RunResult{})
	require.Error(t, err)

	_, err = s.ListRuns(ctx, RunFilter{})
	require.Error(t, err)

	_, err = s.GetSnapshot(ctx, 2023)
	require.Error(t, err)

	err = s.PutSnapshot(ctx, &Snapshot{Year: 2023})
	require.Error(t, err)
}
