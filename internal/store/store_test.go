package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("StartAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.StartRun(ctx, 2023)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, RunStatusRunning, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, 2023, got.Year)
		assert.Equal(t, RunStatusRunning, got.Status)
		assert.Nil(t, got.Result)
	})

	t.Run("CompleteRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.StartRun(ctx, 2015)
		require.NoError(t, err)

		result := &RunResult{
			Rows:      4210,
			Columns:   7,
			Tables:    []string{"routes", "results", "route", "age", "weight", "obs2015"},
			Issues:    12,
			CacheHit:  true,
			OutputDir: "/data/obs2015",
		}
		require.NoError(t, s.CompleteRun(ctx, run.ID, result))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, RunStatusComplete, got.Status)
		require.NotNil(t, got.Result)
		assert.Equal(t, *result, *got.Result)
		assert.Empty(t, got.Error)
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.StartRun(ctx, 2023)
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, run.ID, errors.New("codebook: duplicate code")))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, RunStatusFailed, got.Status)
		assert.Equal(t, "codebook: duplicate code", got.Error)
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r1, err := s.StartRun(ctx, 2015)
		require.NoError(t, err)
		r2, err := s.StartRun(ctx, 2023)
		require.NoError(t, err)
		_, err = s.StartRun(ctx, 2023)
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, r2.ID, &RunResult{Rows: 1}))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		y2023, err := s.ListRuns(ctx, RunFilter{Year: 2023})
		require.NoError(t, err)
		assert.Len(t, y2023, 2)

		complete, err := s.ListRuns(ctx, RunFilter{Status: RunStatusComplete})
		require.NoError(t, err)
		require.Len(t, complete, 1)
		assert.Equal(t, r2.ID, complete[0].ID)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.NotEqual(t, r1.ID, limited[0].ID, "newest first")
	})

	t.Run("SnapshotManifest", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		got, err := s.GetSnapshot(ctx, 2023)
		require.NoError(t, err)
		assert.Nil(t, got)

		mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		snap := &Snapshot{
			Year:        2023,
			SourcePath:  "/data/results.xlsx",
			SourceSheet: "Data",
			SourceSize:  1024,
			SourceMod:   mod,
			SHA256:      "abc",
			Path:        "/cache/obs2023_results.parquet",
			Rows:        10,
		}
		require.NoError(t, s.PutSnapshot(ctx, snap))

		got, err = s.GetSnapshot(ctx, 2023)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "abc", got.SHA256)
		assert.Equal(t, "Data", got.SourceSheet)
		assert.Equal(t, int64(1024), got.SourceSize)
		assert.True(t, mod.Equal(got.SourceMod))
		assert.Equal(t, 10, got.Rows)

		snap.SHA256 = "def"
		snap.SourceSheet = "Data (2)"
		snap.Rows = 11
		require.NoError(t, s.PutSnapshot(ctx, snap))
		got, err = s.GetSnapshot(ctx, 2023)
		require.NoError(t, err)
		assert.Equal(t, "def", got.SHA256)
		assert.Equal(t, "Data (2)", got.SourceSheet)
		assert.Equal(t, 11, got.Rows)

		require.NoError(t, s.DeleteSnapshot(ctx, 2023))
		got, err = s.GetSnapshot(ctx, 2023)
		require.NoError(t, err)
		assert.Nil(t, got)

		// Deleting a missing row is not an error.
		require.NoError(t, s.DeleteSnapshot(ctx, 2015))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}
