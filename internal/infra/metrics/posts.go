package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		postsPublishedTotal,
		postsDeliveryFailedTotal,
		postsScheduledTotal,
		postsEditedTotal,
	)
}

var (
	postsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_published_total",
			Help: "Posts delivered to the channel.",
		},
		[]string{"mode"}, // 'now', 'scheduled', 'retry'
	)

	postsDeliveryFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_delivery_failed_total",
			Help: "Channel deliveries that failed.",
		},
		[]string{"mode"},
	)

	postsScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "posts_scheduled_total",
			Help: "Posts accepted for later publication.",
		},
	)

	postsEditedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posts_edited_total",
			Help: "Post edits saved, labeled by status of the edited post.",
		},
		[]string{"status"},
	)
)

func IncPublished(mode string) {
	postsPublishedTotal.WithLabelValues(norm(mode)).Inc()
}

func IncDeliveryFailed(mode string) {
	postsDeliveryFailedTotal.WithLabelValues(norm(mode)).Inc()
}

func IncScheduled() {
	postsScheduledTotal.Inc()
}

func IncEdited(status string) {
	postsEditedTotal.WithLabelValues(norm(status)).Inc()
}
