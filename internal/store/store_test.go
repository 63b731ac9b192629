package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "data", "brandtrend.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestIngestRunLifecycle(t *testing.T) {
	st := newTestStore(t)

	last, err := st.LastRun()
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, st.CreateRun("run-1", 3, false))

	run, err := st.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, 3, run.Requested)
	assert.Nil(t, run.CompletedAt)
	assert.Empty(t, run.FailedPeriods)

	require.NoError(t, st.FinishRun("run-1", RunResult{
		Status:        RunStatusSucceeded,
		Succeeded:     2,
		Failed:        1,
		FailedPeriods: []string{"2025-3"},
		NewColumns:    2,
		NewBrands:     1,
		TotalBrands:   40,
		TotalColumns:  12,
	}))

	run, err = st.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, run.Status)
	assert.Equal(t, []string{"2025-3"}, run.FailedPeriods)
	assert.Equal(t, 40, run.TotalBrands)
	assert.False(t, run.PriorDiscarded)
	require.NotNil(t, run.CompletedAt)
}

func TestListRuns_NewestFirst(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.CreateRun("a", 1, false))
	require.NoError(t, st.CreateRun("b", 1, true))
	require.NoError(t, st.CreateRun("c", 1, false))

	runs, err := st.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.True(t, runs[1].DryRun)
}

func TestRunNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, st.FinishRun("missing", RunResult{Status: RunStatusFailed}), ErrRunNotFound)
}

func TestDefaultPreferences(t *testing.T) {
	st := newTestStore(t)

	_, ok, err := st.GetDefaultBrands()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetDefaultBrands([]string{"大众", "丰田"}))
	require.NoError(t, st.SetDefaultBrands([]string{"理想"}))
	brands, ok, err := st.GetDefaultBrands()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"理想"}, brands)

	g, err := st.GetDefaultGranularity()
	require.NoError(t, err)
	assert.Empty(t, g)
	require.NoError(t, st.SetDefaultGranularity("yearly"))
	g, err = st.GetDefaultGranularity()
	require.NoError(t, err)
	assert.Equal(t, "yearly", g)
}
