package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jury/internal/types"
)

func newSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jury.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLiteSaveAndGetRun(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	run := testRun(t, "run-1", started, 72.5)
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Repository, got.Repository)
	assert.Equal(t, 72.5, got.Composite.OverallScore)
	assert.Equal(t, types.GradeGood, got.Composite.Grade)
	require.Len(t, got.Results, 1)
	assert.Equal(t, types.AgentSecurity, got.Results[0].AgentName)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, types.MessageBroadcast, got.Messages[1].Kind)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
}

func TestSQLiteGetRunNotFound(t *testing.T) {
	s, _ := newSQLiteStore(t)

	_, err := s.GetRun(context.Background(), "run-missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteSaveRejectsUnfinalizedRun(t *testing.T) {
	s, _ := newSQLiteStore(t)

	err := s.SaveRun(context.Background(), &types.EvaluationRun{ID: "run-x", Repository: "/repos/demo"})
	assert.ErrorContains(t, err, "not finalized")

	err = s.SaveRun(context.Background(), nil)
	assert.Error(t, err)
}

func TestSQLiteListRunsNewestFirst(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, testRun(t, "run-1", base, 60)))
	require.NoError(t, s.SaveRun(ctx, testRun(t, "run-2", base.Add(time.Hour), 70)))
	require.NoError(t, s.SaveRun(ctx, testRun(t, "run-3", base.Add(2*time.Hour), 80)))

	summaries, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "run-3", summaries[0].ID)
	assert.Equal(t, "run-2", summaries[1].ID)
	assert.Equal(t, "run-1", summaries[2].ID)
	assert.Equal(t, 80.0, summaries[0].OverallScore)
	assert.Equal(t, types.GradeGood, summaries[0].Grade)
	assert.Equal(t, "/repos/demo", summaries[0].Repository)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-3", limited[0].ID)
	assert.Equal(t, "run-2", limited[1].ID)
}

func TestSQLiteSaveUpserts(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, testRun(t, "run-1", started, 60)))
	require.NoError(t, s.SaveRun(ctx, testRun(t, "run-1", started, 85)))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.Composite.OverallScore)

	summaries, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestSQLiteDeleteRun(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, testRun(t, "run-1", started, 60)))

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	_, err := s.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.ErrorIs(t, s.DeleteRun(ctx, "run-1"), ErrRunNotFound)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jury.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, testRun(t, "run-1", started, 60)))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
}
