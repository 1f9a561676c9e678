package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/model"
)

func setupTestStore(t *testing.T) *Store {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartRunAndGetRun(t *testing.T) {
	s := setupTestStore(t)

	runID, err := s.StartRun(RunParams{
		Board:         "pynq",
		Binary:        "dhrystone",
		Section:       "memory",
		MaxInjections: 100,
		ErrorTarget:   10,
		Seed:          42,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "pynq", run.Board)
	assert.Equal(t, "dhrystone", run.Binary)
	assert.Equal(t, 100, run.MaxInjections)
	assert.Nil(t, run.FinishedAt)
}

func TestFinishRunStampsCountersAndState(t *testing.T) {
	s := setupTestStore(t)
	runID, err := s.StartRun(RunParams{Board: "pynq", Section: "memory", MaxInjections: 10})
	require.NoError(t, err)

	err = s.FinishRun(runID, "Dead", model.CampaignCounters{InjectionsDone: 10, ErrorsSeen: 3, MaxInjections: 10})
	require.NoError(t, err)

	run, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "Dead", run.FinalState)
	assert.Equal(t, 10, run.InjectionsDone)
	assert.Equal(t, 3, run.ErrorsSeen)
	require.NotNil(t, run.FinishedAt)
}

func TestRecordInjectionAndListInjections(t *testing.T) {
	s := setupTestStore(t)
	runID, err := s.StartRun(RunParams{Board: "pynq", Section: "memory"})
	require.NoError(t, err)

	log1 := model.InjectionLog{
		Number:  1,
		Section: "memory",
		Address: "0x1000",
		Result:  model.NewRunOutcome("12:00:00.000", 0, 0, 0, 1.5),
	}
	log2 := model.InjectionLog{
		Number:  2,
		Section: "memory",
		Address: "0x2000",
		Result:  model.NewTimeoutOutcome("12:00:01.000", "Timeout detected", false, 0),
	}
	require.NoError(t, s.RecordInjection(runID, log1))
	require.NoError(t, s.RecordInjection(runID, log2))

	rows, err := s.ListInjections(runID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, "run", rows[0].OutcomeKind)
	assert.Equal(t, 2, rows[1].Number)
	assert.Equal(t, "timeout", rows[1].OutcomeKind)
}

func TestListRunsOrdersMostRecentFirst(t *testing.T) {
	s := setupTestStore(t)
	first, err := s.StartRun(RunParams{Board: "pynq", Section: "memory"})
	require.NoError(t, err)
	second, err := s.StartRun(RunParams{Board: "nexys", Section: "cache"})
	require.NoError(t, err)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	ids := map[string]bool{first: true, second: true}
	for _, r := range runs {
		assert.True(t, ids[r.ID])
	}
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
}
