package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsgw_messages_total",
			Help: "Per-recipient dispatch outcomes by status and gateway",
		},
		[]string{"status", "gateway"}, // sent|failed|delivered , gateway name or "none"
	)

	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsgw_gateway_attempts_total",
			Help: "Gateway send attempts by result",
		},
		[]string{"gateway", "result"}, // ok|transient|permanent|auth|unavailable|internal
	)

	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsgw_fallback_total",
			Help: "Successful sends that needed a fallback gateway",
		},
		[]string{"country"},
	)

	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smsgw_dispatch_duration_seconds",
			Help:    "Time to reach a terminal result for one recipient",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	GatewayUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsgw_gateway_up",
			Help: "1 when the last probe succeeded",
		},
		[]string{"gateway"},
	)

	GatewayBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsgw_gateway_balance",
			Help: "Provider-reported balance from the last probe",
		},
		[]string{"gateway"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smsgw_gateway_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"gateway"},
	)

	CreditsSpent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smsgw_credits_spent_total",
			Help: "Credits captured for successful sends",
		},
	)

	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smsgw_batch_jobs_total",
			Help: "Batch jobs by terminal status",
		},
		[]string{"status"},
	)
)

var once sync.Once

// MustRegister registers every collector once per process.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			MessagesTotal,
			AttemptsTotal,
			FallbackTotal,
			DispatchDuration,
			GatewayUp,
			GatewayBalance,
			BreakerState,
			CreditsSpent,
			JobsTotal,
		)
	})
}
