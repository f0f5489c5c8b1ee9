package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminAPIRequestsTotal) }

var adminAPIRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_api_requests_total",
		Help: "Tracks admin API calls.",
	},
	[]string{"route", "status"}, // status: 'authorized', 'unauthorized', 'error'
)

func IncAdminAPI(route, status string) {
	adminAPIRequestsTotal.WithLabelValues(norm(route), norm(status)).Inc()
}
