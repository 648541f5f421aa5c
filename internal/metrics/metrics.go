package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	JobsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docverify_jobs_submitted_total",
			Help: "Total number of jobs accepted for processing",
		},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docverify_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal state",
		},
		[]string{"status"}, // COMPLETE, NEEDS_REVIEW, FAILED
	)

	StageAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docverify_stage_attempts_total",
			Help: "Total stage executions, including retries",
		},
		[]string{"stage"},
	)

	RetriesScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docverify_retries_scheduled_total",
			Help: "Total backoff retries scheduled per stage",
		},
		[]string{"stage"},
	)

	// Gauges
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docverify_queue_depth",
			Help: "Jobs currently waiting for a worker slot",
		},
	)

	JobsParked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docverify_jobs_parked",
			Help: "Jobs currently parked on a backoff timer",
		},
	)

	// Histogram for stage execution duration
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docverify_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15), // 10ms to ~163s
		},
		[]string{"stage"},
	)
)
