package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "benchline",
			Subsystem: "stats_cache",
			Name:      "lookups_total",
			Help:      "Statistics requests by cache result (hit, miss, bypass).",
		},
		[]string{"result"},
	)

	cacheSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "benchline",
			Subsystem: "stats_cache",
			Name:      "saves_total",
			Help:      "Cache save attempts by outcome (saved, skipped).",
		},
		[]string{"outcome"},
	)

	cacheInvalidatedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "benchline",
			Subsystem: "stats_cache",
			Name:      "invalidated_rows_total",
			Help:      "Cached statistics rows deleted by invalidation.",
		},
	)

	aggregateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "benchline",
			Subsystem: "stats",
			Name:      "aggregate_duration_seconds",
			Help:      "Time to load and aggregate the pairs of a job space subtree.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
