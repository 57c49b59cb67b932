package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rerunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "benchline",
		Subsystem: "lifecycle",
		Name:      "reruns_total",
		Help:      "Pairs returned to pending by rerun operations.",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "benchline",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Pair status changes made by pause, resume and kill.",
	}, []string{"op"})
)
