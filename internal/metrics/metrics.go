// Package metrics exposes the Prometheus collectors shared across the
// daemon: job-pipeline stage timings, error counts, and pool occupancy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_active",
		Help: "Jobs currently claimed and running in the worker pool",
	})

	JobsClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobs_claimed_total",
		Help: "Total jobs claimed from the registry",
	})

	JobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_completed_total",
		Help: "Total jobs reaching a terminal state, by outcome",
	}, []string{"outcome"}) // completed, failed, cancelled

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_stage_duration_seconds",
		Help:    "Per-stage latency within a job run",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "job_e2e_duration_seconds",
		Help:    "End-to-end processing time from claim to terminal state",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "job_errors_total",
		Help: "Error counts by stage and error kind",
	}, []string{"stage", "kind"})

	DetectorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detector_calls_total",
		Help: "Hybrid detector invocations by resolved method",
	}, []string{"method"}) // regex, ml, ensemble

	CensoredIntervalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "censored_intervals_total",
		Help: "Total abusive intervals censored across all jobs",
	})
)
