package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordInjectionIncrementsCounter(t *testing.T) {
	m := NewMetrics()
	m.RecordInjection("memory", 0.05, 1000)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.InjectionsTotal.WithLabelValues("memory")))
}

func TestRecordOutcomeIncrementsByKind(t *testing.T) {
	m := NewMetrics()
	m.RecordOutcome("run")
	m.RecordOutcome("abort")
	m.RecordOutcome("run")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("run")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("abort")))
}

func TestRecordInvalidRangeIncrementsCounter(t *testing.T) {
	m := NewMetrics()
	m.RecordInvalidRange()
	m.RecordInvalidRange()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.InjectionErrors))
}
