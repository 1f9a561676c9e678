package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsStateInvariant(t *testing.T) {
	b := NewBoundsState(2.0, 0.001, 30)
	require.LessOrEqual(t, b.StepIndexTop, b.StepIndexBot)
	require.GreaterOrEqual(t, b.Upper(), b.Lower())

	for i := 0; i < 40; i++ {
		b = b.ChangeBounds(i%2 == 0)
		assert.LessOrEqual(t, b.StepIndexTop, b.StepIndexBot)
		assert.GreaterOrEqual(t, b.Upper(), b.Lower())
	}
}

func TestChangeBoundsSaturates(t *testing.T) {
	b := BoundsState{StepSpace: []float64{1, 0.5}, StepIndexTop: 0, StepIndexBot: 1}
	next := b.ChangeBounds(true)
	assert.Equal(t, b, next, "adjacent indices must saturate rather than cross")
}

func TestCampaignCountersErrorTarget(t *testing.T) {
	c := &CampaignCounters{InjectionsDone: 1234, ErrorsSeen: 5, MaxInjections: 100, ErrorTarget: 5}
	finished := c.IsCampaignFinished()
	assert.False(t, finished)
	assert.Equal(t, 0, c.ErrorTarget, "error target must become inactive once reached")
	assert.GreaterOrEqual(t, c.MaxInjections, c.InjectionsDone)
	assert.Equal(t, 0, c.MaxInjections%1000)
}

func TestMeanRuntimeEmpty(t *testing.T) {
	mean, ok := MeanRuntime(nil)
	assert.False(t, ok)
	assert.Zero(t, mean)
}

func TestMeanRuntimeNonEmpty(t *testing.T) {
	mean, ok := MeanRuntime([]RunOutcome{
		NewRunOutcome("t", 0, 0, 0, 0.2),
		NewRunOutcome("t", 0, 0, 0, 0.4),
	})
	assert.True(t, ok)
	assert.InDelta(t, 0.3, mean, 1e-9)
}

func TestInjectionLogJSONRoundTrip(t *testing.T) {
	log := InjectionLog{
		InjectionTime: "2026-07-29 12:00:00.000000",
		Number:        0,
		Section:       "registers",
		Address:       "r5",
		OldValue:      "0x000000A0",
		NewValue:      "0x000000A8",
		Name:          "None",
	}
	log.AddInjectionInfo(0.01, 12345, 0x1000)
	log.AddResult(NewRunOutcome("2026-07-29 12:00:00.210000", 0, 0, 0, 0.21))

	data, err := json.Marshal(log)
	require.NoError(t, err)

	var decoded InjectionLog
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, log.Address, decoded.Address)
	run, ok := decoded.Result.(RunOutcome)
	require.True(t, ok)
	assert.Equal(t, 0, run.Errors)
}

func TestAbortOutcomeJSONRoundTrip(t *testing.T) {
	abort := NewAbortOutcome("t", "Data", "foo")
	data, err := json.Marshal(abort)
	require.NoError(t, err)

	decoded, err := UnmarshalOutcomeDict(data)
	require.NoError(t, err)
	a, ok := decoded.(AbortOutcome)
	require.True(t, ok)
	assert.Equal(t, "Data", a.Kind)
	assert.Equal(t, "foo", a.Message)
}
