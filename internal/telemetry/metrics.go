// Package telemetry carries the campaign's observability surface:
// Prometheus counters/histograms over injections and outcomes
// (promauto construction style, grounded on the teacher's
// internal/escrow/metrics.go), plus an OpenTelemetry tracer emitting
// one span per injection iteration (stdout exporter, grounded on
// lcalzada-xor-wmap's internal/telemetry/telemetry.go).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments scraped by internal/statusapi's
// /metrics endpoint. Registry is exposed so the HTTP handler can build
// its exposition format from exactly these instruments rather than the
// global default registry, which also lets a test construct more than
// one Metrics without a duplicate-registration panic.
type Metrics struct {
	Registry *prometheus.Registry

	InjectionsTotal  *prometheus.CounterVec
	OutcomesTotal    *prometheus.CounterVec
	InjectionErrors  prometheus.Counter
	SleepTime        prometheus.Histogram
	InjectionCycles  prometheus.Histogram
	CampaignDuration prometheus.Histogram
}

// NewMetrics constructs the campaign's Prometheus instruments against a
// fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		InjectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coast_injections_total",
				Help: "Total number of fault injections attempted, by section",
			},
			[]string{"section"},
		),
		OutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coast_outcomes_total",
				Help: "Total number of recorded outcomes, by discriminator",
			},
			[]string{"kind"}, // run, assertion_fail, abort, stack_overflow, timeout, invalid
		),
		InjectionErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "coast_injection_errors_total",
				Help: "Total number of injections rejected as InvalidRange",
			},
		),
		SleepTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coast_sleep_time_seconds",
				Help:    "Sleep duration chosen between pre- and post-workload breakpoints",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
		),
		InjectionCycles: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coast_injection_cycle_count",
				Help:    "Emulated cycle count elapsed before an injection fired",
				Buckets: prometheus.DefBuckets,
			},
		),
		CampaignDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coast_campaign_iteration_duration_seconds",
				Help:    "Wall-clock duration of one InjectFault-to-GetOutput iteration",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordInjection tallies an attempted injection for the given section.
func (m *Metrics) RecordInjection(section string, sleepTime float64, cycles uint64) {
	m.InjectionsTotal.WithLabelValues(section).Inc()
	m.SleepTime.Observe(sleepTime)
	m.InjectionCycles.Observe(float64(cycles))
}

// RecordOutcome tallies a decoded outcome by its discriminator kind.
func (m *Metrics) RecordOutcome(kind string) {
	m.OutcomesTotal.WithLabelValues(kind).Inc()
}

// RecordInvalidRange tallies an injection discarded for targeting a
// forbidden range.
func (m *Metrics) RecordInvalidRange() {
	m.InjectionErrors.Inc()
}

// RecordIterationDuration tallies the wall-clock time of one
// InjectFault-to-GetOutput state machine iteration.
func (m *Metrics) RecordIterationDuration(seconds float64) {
	m.CampaignDuration.Observe(seconds)
}
