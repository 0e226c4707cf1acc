package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentAttemptsTotal,
		paymentConfirmationsTotal,
		invoiceOutcomesTotal,
		errorsClassifiedTotal,
	)
}

var (
	// result: opened|failed
	paymentAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_payment_attempts_total",
			Help: "Payment attempts by method and whether the payment UI opened.",
		},
		[]string{"method", "result"},
	)

	// Stars only: Click never calls confirm-payment.
	paymentConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_payment_confirmations_total",
			Help: "confirm-payment calls by method and result.",
		},
		[]string{"method", "result"},
	)

	invoiceOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_invoice_outcomes_total",
			Help: "Terminal invoice dialog outcomes.",
		},
		[]string{"outcome"},
	)

	errorsClassifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_errors_classified_total",
			Help: "Upstream failure messages by classified kind.",
		},
		[]string{"kind"},
	)
)

func IncPaymentAttempt(method, result string) {
	paymentAttemptsTotal.WithLabelValues(norm(method), norm(result)).Inc()
}

func IncPaymentConfirmation(method, result string) {
	paymentConfirmationsTotal.WithLabelValues(norm(method), norm(result)).Inc()
}

func IncInvoiceOutcome(outcome string) {
	invoiceOutcomesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncErrorClassified(kind string) {
	errorsClassifiedTotal.WithLabelValues(norm(kind)).Inc()
}
