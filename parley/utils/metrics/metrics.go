package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parley",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	// outcome: replied, bad_request, upstream_error, store_error
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "chat_turns_total",
			Help:      "Chat turns by outcome",
		},
		[]string{"outcome"},
	)

	CompletionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "parley",
			Name:      "completion_duration_seconds",
			Help:      "Latency of completion endpoint calls",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "transcript_operations_total",
			Help:      "Transcript store operations",
		},
		[]string{"operation", "status"},
	)

	TranscriptsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "transcripts_swept_total",
			Help:      "Transcripts removed by the retention sweeper",
		},
	)

	TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "session_tokens_issued_total",
			Help:      "Session tokens issued by /api/auth/verify",
		},
	)
)

func StoreOp(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOperationsTotal.WithLabelValues(operation, status).Inc()
}
