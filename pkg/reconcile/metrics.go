package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "benchline",
		Subsystem: "reconcile",
		Name:      "sweeps_total",
		Help:      "Reconcile sweeps by result (ok, partial, error).",
	}, []string{"result"})

	brokenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "benchline",
		Subsystem: "reconcile",
		Name:      "broken_pairs_total",
		Help:      "Pairs failed because the backend lost their execution.",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "benchline",
		Subsystem: "reconcile",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of reconcile sweeps.",
		Buckets:   prometheus.DefBuckets,
	})
)
