package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lunchorder",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of deadline scheduler ticks",
		},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lunchorder",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Histogram of deadline scheduler tick durations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sweepPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lunchorder",
			Subsystem: "scheduler",
			Name:      "sweep_panics_total",
			Help:      "Total number of recovered panics in deadline sweeps",
		},
	)
)
