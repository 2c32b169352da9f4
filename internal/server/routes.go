package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /uploads", h.AuthorizeUpload)
	mux.HandleFunc("OPTIONS /uploads", h.AuthorizeUpload)
	mux.HandleFunc("GET /thumbnails", h.ListThumbnails)
	mux.HandleFunc("OPTIONS /thumbnails", h.ListThumbnails)
	mux.HandleFunc("GET /me/thumbnails", h.ListMyThumbnails)
	mux.HandleFunc("OPTIONS /me/thumbnails", h.ListMyThumbnails)

	mux.HandleFunc("POST /events/s3", h.S3Events)

	if h.objects != nil {
		mux.HandleFunc("PUT /objects/{bucket}/{key...}", h.PutObject)
		mux.HandleFunc("OPTIONS /objects/{bucket}/{key...}", h.PreflightObject)
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		MetricsMiddleware(),
	)

	return chain(mux)
}
