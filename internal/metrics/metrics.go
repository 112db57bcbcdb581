package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PaymentsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "STK push charges submitted to the provider",
		},
		[]string{"type"}, // REQUEST|TIP
	)
	PaymentsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_completed_total",
			Help: "Charges confirmed and materialized as payments",
		},
		[]string{"type"},
	)
	PaymentsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_failed_total",
			Help: "Charges that reached a failed terminal state",
		},
		[]string{"type", "reason"},
	)
	PaymentsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_cancelled_total",
			Help: "Charges dismissed by the payer on the STK prompt",
		},
		[]string{"type"},
	)

	CallbacksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stk_callbacks_received_total",
			Help: "Inbound provider callbacks by result code",
		},
		[]string{"result_code"},
	)
	CallbackDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stk_callback_processing_seconds",
			Help:    "Callback processing latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_runs_total",
			Help: "Reconciliation cycles executed",
		},
	)
	ReconciliationResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_sessions_resolved_total",
			Help: "Pending sessions resolved by reconciliation",
		},
		[]string{"outcome"}, // completed|failed
	)

	RefundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Refunds by final status",
		},
		[]string{"status"},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(PaymentsInitiated)
	prometheus.MustRegister(PaymentsCompleted)
	prometheus.MustRegister(PaymentsFailed)
	prometheus.MustRegister(PaymentsCancelled)
	prometheus.MustRegister(CallbacksReceived)
	prometheus.MustRegister(CallbackDuration)
	prometheus.MustRegister(ReconciliationRuns)
	prometheus.MustRegister(ReconciliationResolved)
	prometheus.MustRegister(RefundsTotal)
}
