package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "benchline",
		Subsystem: "scheduler",
		Name:      "task_runs_total",
		Help:      "Background task runs by task and result.",
	}, []string{"task", "result"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "benchline",
		Subsystem: "scheduler",
		Name:      "task_duration_seconds",
		Help:      "Duration of background task runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task"})
)
