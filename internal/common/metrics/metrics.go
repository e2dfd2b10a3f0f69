// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonymizer_requests_completed_total",
			Help: "Total number of anonymization requests completed",
		},
		[]string{"request_kind"},
	)

	RequestsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonymizer_requests_failed_total",
			Help: "Total number of anonymization requests failed",
		},
		[]string{"request_kind", "error_code"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "anonymizer_request_duration_seconds",
			Help: "Duration of anonymization request processing in seconds",
		},
		[]string{"request_kind"},
	)

	FragmentsAnonymized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anonymizer_fragments_total",
			Help: "Fragments processed by outcome (anonymized or redacted)",
		},
		[]string{"outcome"},
	)

	InferenceRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anonymizer_inference_retries_total",
			Help: "Transient inference failures that were retried",
		},
	)

	InferenceInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anonymizer_inference_in_flight",
			Help: "Number of inference calls currently in flight",
		},
	)
)
