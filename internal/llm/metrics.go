package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Generator requests by status (ok, empty, error, timeout)",
	}, []string{"status"})

	metricLatencyMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_latency_ms",
		Help:    "Generator round trip latency (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})
)
