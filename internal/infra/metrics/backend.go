package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(backendRequestDuration) }

// result: ok|rejected|transport
var backendRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "studio_backend_request_duration_seconds",
		Help:    "Latency of backend API calls by endpoint and result.",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"endpoint", "result"},
)

func ObserveBackendRequest(endpoint, result string, seconds float64) {
	backendRequestDuration.WithLabelValues(norm(endpoint), norm(result)).Observe(seconds)
}
