package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookVerifyRequests,
		WebhookVerifyDuration,
		WebhookReplayTotal,
	)
}

var (
	// Count of webhook deliveries grouped by result and bounded reason.
	// result: ok|fail
	// reason (fail only): bad_json|no_data|no_signature|bad_signature|handler_error|unknown
	WebhookVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payos_webhook_verify_requests_total",
			Help: "Count of webhook deliveries by verification result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of the webhook handler grouped by result.
	WebhookVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payos_webhook_verify_duration_seconds",
			Help:    "Duration of the webhook handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Verified deliveries that had already been processed once.
	WebhookReplayTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payos_webhook_replay_total",
			Help: "Verified webhook deliveries acknowledged as replays.",
		},
	)
)
