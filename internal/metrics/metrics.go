// Package metrics holds the Prometheus collectors for the photo pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests served by the dev server.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photoshare",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photoshare",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// UploadsAuthorizedTotal counts authorize_upload outcomes.
	UploadsAuthorizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photoshare",
			Name:      "uploads_authorized_total",
			Help:      "Upload authorizations by outcome",
		},
		[]string{"status"},
	)

	// ThumbnailsTotal counts processed originals by outcome and output format.
	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photoshare",
			Name:      "thumbnails_total",
			Help:      "Thumbnail processing results",
		},
		[]string{"format", "status"},
	)

	// S3OperationsTotal counts object storage calls.
	S3OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photoshare",
			Name:      "s3_operations_total",
			Help:      "Total S3 operations",
		},
		[]string{"operation", "status"},
	)

	// S3Duration observes object storage latency.
	S3Duration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photoshare",
			Name:      "s3_duration_seconds",
			Help:      "S3 operation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	// PresignDuration observes presigned URL generation.
	PresignDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "photoshare",
			Name:      "presign_duration_seconds",
			Help:      "Presigned URL generation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5},
		},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordUpload records an authorize_upload outcome ("success" or an error kind).
func RecordUpload(status string) {
	UploadsAuthorizedTotal.WithLabelValues(status).Inc()
}

// RecordThumbnail records a processing outcome.
func RecordThumbnail(format, status string) {
	ThumbnailsTotal.WithLabelValues(format, status).Inc()
}

// RecordS3Operation records an S3 operation.
func RecordS3Operation(operation, status string, durationSec float64) {
	S3OperationsTotal.WithLabelValues(operation, status).Inc()
	S3Duration.WithLabelValues(operation).Observe(durationSec)
}

// RecordPresign records presigned URL generation.
func RecordPresign(durationSec float64) {
	PresignDuration.Observe(durationSec)
}
