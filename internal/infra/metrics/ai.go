package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		rewriteCallsTotal,
		rewriteLatencyMs,
		rewriteTokens,
		rewriteInputRejected,
	)
}

var (
	rewriteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewrite_calls_total",
			Help: "Language model rewrite calls per provider and outcome.",
		},
		[]string{"provider", "success"},
	)

	rewriteLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rewrite_latency_ms",
			Help:    "Rewrite call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
		},
		[]string{"provider"},
	)

	rewriteTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewrite_tokens_total",
			Help: "Tokens consumed by rewrites, split by direction.",
		},
		[]string{"provider", "direction"}, // 'in', 'out'
	)

	rewriteInputRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rewrite_input_rejected_total",
			Help: "Drafts refused before the remote call because they exceed the token budget.",
		},
	)
)

func ObserveRewrite(provider string, tokensIn, tokensOut, latencyMs int, success bool) {
	p := norm(provider)
	rewriteCallsTotal.WithLabelValues(p, strconv.FormatBool(success)).Inc()
	rewriteLatencyMs.WithLabelValues(p).Observe(float64(latencyMs))
	if tokensIn > 0 {
		rewriteTokens.WithLabelValues(p, "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		rewriteTokens.WithLabelValues(p, "out").Add(float64(tokensOut))
	}
}

func IncRewriteInputRejected() {
	rewriteInputRejected.Inc()
}
