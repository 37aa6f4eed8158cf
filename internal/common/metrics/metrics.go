// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchTasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_tasks_completed_total",
			Help: "Total number of detail-fetch tasks that returned a payload",
		},
		[]string{"site"},
	)

	FetchTasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_tasks_failed_total",
			Help: "Total number of detail-fetch tasks dropped from the batch",
		},
		[]string{"site", "error_code"},
	)

	FetchTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "fetch_task_duration_seconds",
			Help: "Duration of a single detail-fetch task in seconds",
		},
		[]string{"site"},
	)

	FetchTasksActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fetch_tasks_active",
			Help: "Number of fetch tasks currently in flight",
		},
		[]string{"site"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by tier and outcome (hit, miss, stale)",
		},
		[]string{"tier", "outcome"},
	)

	CacheEntriesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_entries_swept_total",
			Help: "Expired entity-cache entries removed by sweeps",
		},
	)

	RetrainDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrain_decisions_total",
			Help: "Retraining decisions by outcome (retrain, skip) and reason",
		},
		[]string{"outcome", "reason"},
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "End-to-end pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"status"},
	)
)
