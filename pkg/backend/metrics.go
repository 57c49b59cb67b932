package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var killsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "benchline",
		Subsystem: "backend",
		Name:      "kills_total",
		Help:      "Backend kill calls by result.",
	},
	[]string{"result"},
)

func recordKill(err error) {
	if err != nil {
		killsTotal.WithLabelValues("error").Inc()
		return
	}
	killsTotal.WithLabelValues("ok").Inc()
}
