package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		stepTransitionsTotal,
		gatewayResolvedTotal,
		liveSessions,
	)
}

var (
	stepTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_step_transitions_total",
			Help: "Modal step transitions by source and target step.",
		},
		[]string{"from", "to"},
	)

	// gateway: free|sponsor|payment_required; fallback=true when no rule matched.
	gatewayResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_gateway_resolved_total",
			Help: "Eligibility resolutions by gateway.",
		},
		[]string{"gateway", "fallback"},
	)

	liveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "studio_live_sessions",
			Help: "Generation sessions currently open.",
		},
	)
)

func IncStepTransition(from, to string) {
	stepTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncGatewayResolved(gateway string, fallback bool) {
	fb := "false"
	if fallback {
		fb = "true"
	}
	gatewayResolvedTotal.WithLabelValues(norm(gateway), fb).Inc()
}

func SessionOpened() { liveSessions.Inc() }
func SessionClosed() { liveSessions.Dec() }
