package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	SubtasksTotal        *prometheus.CounterVec
	GenerationDuration   prometheus.Histogram
	SyncSubmissionsTotal *prometheus.CounterVec
)

// Init registers all pipeline collectors with the default registry.
func Init() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	SubtasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_subtasks_total",
			Help: "Total number of verification subtasks by outcome.",
		},
		[]string{"outcome"}, // completed, failed, skipped
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_call_duration_seconds",
			Help:    "Duration of AI generation backend calls.",
			Buckets: []float64{1, 5, 10, 30, 60, 120},
		},
	)

	SyncSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_submissions_total",
			Help: "Total number of sync group submissions.",
		},
		[]string{"status"}, // success, failure
	)
}
