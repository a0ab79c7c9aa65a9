package statuslog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "statusgarden"

var (
	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statuslog",
			Name:      "transitions_total",
			Help:      "Total committed service status transitions",
		},
		[]string{"from", "to"},
	)

	reconcilerRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statuslog",
			Name:      "reconciler_repairs_total",
			Help:      "Total invariant repairs performed by the reconciler",
		},
		[]string{"kind"},
	)
)

func recordStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

func recordReconcilerRepair(kind string) {
	reconcilerRepairs.WithLabelValues(kind).Inc()
}
