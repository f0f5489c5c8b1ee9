package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(scheduledJobsPending, scheduledJobsFiredTotal) }

var (
	scheduledJobsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduled_jobs_pending",
			Help: "Jobs held by the in-process scheduler.",
		},
	)

	scheduledJobsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_jobs_fired_total",
			Help: "Scheduler firings, labeled by dispatch result.",
		},
		[]string{"status"}, // 'dispatched', 'dropped'
	)
)

func SetScheduledPending(n int) {
	scheduledJobsPending.Set(float64(n))
}

func IncScheduledFired(status string) {
	scheduledJobsFiredTotal.WithLabelValues(norm(status)).Inc()
}
