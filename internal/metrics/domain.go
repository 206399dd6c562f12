package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upload, search and AI-call Prometheus metrics.
var (
	UploadFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keepsake",
			Name:      "upload_files_total",
			Help:      "Total files processed by the upload orchestrator",
		},
		[]string{"outcome"}, // "completed" / "error" / "rejected"
	)

	UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "keepsake",
			Name:      "upload_bytes_total",
			Help:      "Total bytes transferred to object storage",
		},
	)

	UploadTransferDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "keepsake",
			Name:      "upload_transfer_duration_seconds",
			Help:      "Per-file transfer duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keepsake",
			Name:      "search_requests_total",
			Help:      "Total search requests by mode and status",
		},
		[]string{"mode", "status"},
	)

	SearchHydrationDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "keepsake",
			Name:      "search_hydration_dropped_total",
			Help:      "Ranked result identifiers that did not resolve to a full entry",
		},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keepsake",
			Name:      "ai_requests_total",
			Help:      "Total transcription and summarization requests",
		},
		[]string{"operation", "model", "status"},
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keepsake",
			Name:      "ai_request_duration_seconds",
			Help:      "Transcription and summarization request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "model"},
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers the metrics above. Must be called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(UploadFilesTotal)
	prometheus.MustRegister(UploadBytesTotal)
	prometheus.MustRegister(UploadTransferDuration)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchHydrationDropped)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	domainMetricsRegistered = true
}
