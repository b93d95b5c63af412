package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acceslibre/erpsync/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("StartAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.StartRun(ctx, "gendarmerie")
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "gendarmerie", got.Dataset)
		assert.Equal(t, model.RunStatusRunning, got.Status)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetRun(context.Background(), "nonexistent-id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CompleteRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.StartRun(ctx, "vaccination")
		require.NoError(t, err)
		counts := model.RunCounts{Imported: 12, Skipped: 3, Unpublished: 1, Errors: 2, Duplicated: 1}
		require.NoError(t, s.CompleteRun(ctx, run.ID, counts))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		assert.Equal(t, counts, got.Counts)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.StartRun(ctx, "typeform")
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, run.ID, model.RunCounts{}, "fetch: 404"))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, "fetch: 404", got.Error)
	})

	t.Run("FinishNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.CompleteRun(context.Background(), "nonexistent-id", model.RunCounts{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("ListRuns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.StartRun(ctx, "gendarmerie")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		_, err = s.StartRun(ctx, "vaccination")
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		last, err := s.StartRun(ctx, "gendarmerie")
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, first.ID, model.RunCounts{Imported: 1}))

		runs, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, runs, 3)

		runs, err = s.ListRuns(ctx, RunFilter{Dataset: "gendarmerie"})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, last.ID, runs[0].ID)

		runs, err = s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, first.ID, runs[0].ID)

		runs, err = s.ListRuns(ctx, RunFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}
