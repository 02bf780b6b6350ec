package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	workersStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvisor",
			Subsystem: "supervisor",
			Name:      "workers_started_total",
			Help:      "Total number of worker incarnations started",
		},
		[]string{"kind"},
	)

	workersFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvisor",
			Subsystem: "supervisor",
			Name:      "workers_finished_total",
			Help:      "Total number of worker incarnations that ended, by outcome",
		},
		[]string{"kind", "outcome"},
	)

	workersActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "keyvisor",
			Subsystem: "supervisor",
			Name:      "workers_running",
			Help:      "Worker tasks currently executing",
		},
		[]string{"kind"},
	)

	workerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyvisor",
			Subsystem: "supervisor",
			Name:      "worker_events_total",
			Help:      "Total number of events emitted by workers onto the merged output",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(workersStartedTotal, workersFinishedTotal, workersActive, workerEventsTotal)
}
