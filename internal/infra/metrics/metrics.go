package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RunsTotal counts reminder job invocations by outcome (completed, skipped, failed).
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gym_reminder_runs_total",
			Help: "Number of expiry reminder runs by outcome",
		},
		[]string{"outcome"},
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gym_reminder_messages_total",
			Help: "Member notifications by kind and status",
		},
		[]string{"kind", "status"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gym_reminder_run_duration_seconds",
			Help:    "Duration of expiry reminder runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gym_reminder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
)

func Init() {
	prometheus.MustRegister(RunsTotal, MessagesTotal, RunDuration, RequestCount)
}
