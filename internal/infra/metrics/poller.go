package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(pollTicksTotal, pollOutcomesTotal, clickChecksTotal) }

var (
	// result: pending|completed|failed|transport_error
	pollTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_poll_ticks_total",
			Help: "Generation status poll ticks by result.",
		},
		[]string{"result"},
	)

	// outcome: completed|failed|timeout|protocol_violation|cancelled
	pollOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_poll_outcomes_total",
			Help: "Terminal outcomes of generation polling runs.",
		},
		[]string{"outcome"},
	)

	// status: waiting|confirmed|failed|unknown|transport_error
	clickChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_click_status_checks_total",
			Help: "Click webhook status checks by observed status.",
		},
		[]string{"status"},
	)
)

func IncPollTick(result string)     { pollTicksTotal.WithLabelValues(norm(result)).Inc() }
func IncPollOutcome(outcome string) { pollOutcomesTotal.WithLabelValues(norm(outcome)).Inc() }
func IncClickCheck(status string)   { clickChecksTotal.WithLabelValues(norm(status)).Inc() }
