package event

import "github.com/prometheus/client_golang/prometheus"

var (
	busPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvisor",
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Total number of events published on the bus",
		},
		[]string{"type"},
	)

	busHandlerPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "keyvisor",
			Subsystem: "bus",
			Name:      "handler_panics_total",
			Help:      "Total number of recovered panics in bus handlers",
		},
	)
)

func init() {
	prometheus.MustRegister(busPublishedTotal, busHandlerPanicsTotal)
}
