package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/photoshare/photoshare/internal/api"
	"github.com/photoshare/photoshare/internal/apperr"
	"github.com/photoshare/photoshare/internal/identity"
	"github.com/photoshare/photoshare/internal/storage"
	"github.com/photoshare/photoshare/internal/thumbnail"
)

// maxRequestBody bounds the JSON bodies the server accepts.
const maxRequestBody = 1 << 20

// EventProcessor handles storage notifications.
type EventProcessor interface {
	HandleS3Event(ctx context.Context, event events.S3Event) thumbnail.Report
}

// CallerResolver resolves the identity of an HTTP request.
type CallerResolver interface {
	Resolve(r *http.Request) identity.Caller
}

// ObjectWriter stores objects written through presigned local URLs.
type ObjectWriter interface {
	Put(ctx context.Context, bucket string, obj storage.Object) error
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	api       *api.Handlers
	processor EventProcessor
	resolver  CallerResolver
	logger    *slog.Logger

	// Local object writes, nil unless WithLocalObjects is set.
	objects      ObjectWriter
	uploadBucket string
	maxObject    int64
	now          func() time.Time
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithCallerResolver sets how callers are identified. Without one every
// request is anonymous.
func WithCallerResolver(resolver CallerResolver) HandlerOption {
	return func(h *Handlers) {
		h.resolver = resolver
	}
}

// WithLocalObjects serves PUT /objects/{bucket}/{key...} for presigned
// local writes. Only uploadBucket accepts writes; each one is handed to the
// event processor as an object-created notification, the way S3 would
// deliver one.
func WithLocalObjects(objects ObjectWriter, uploadBucket string, maxBytes int64) HandlerOption {
	return func(h *Handlers) {
		h.objects = objects
		h.uploadBucket = uploadBucket
		h.maxObject = maxBytes
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(apiHandlers *api.Handlers, processor EventProcessor, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		api:       apiHandlers,
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// AuthorizeUpload handles POST and OPTIONS /uploads requests.
func (h *Handlers) AuthorizeUpload(w http.ResponseWriter, r *http.Request) {
	h.serve(h.api.AuthorizeUpload)(w, r)
}

// ListThumbnails handles GET and OPTIONS /thumbnails requests.
func (h *Handlers) ListThumbnails(w http.ResponseWriter, r *http.Request) {
	h.serve(h.api.ListRecent)(w, r)
}

// ListMyThumbnails handles GET and OPTIONS /me/thumbnails requests.
func (h *Handlers) ListMyThumbnails(w http.ResponseWriter, r *http.Request) {
	h.serve(h.api.ListMine)(w, r)
}

// S3Events handles POST /events/s3 requests carrying S3 event notifications,
// as delivered by S3-compatible stores configured with a webhook target.
func (h *Handlers) S3Events(w http.ResponseWriter, r *http.Request) {
	var event events.S3Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&event); err != nil {
		h.logger.Warn("failed to decode S3 event",
			slog.String("error", err.Error()),
		)
		h.api.Responder().Failure(apperr.Client("Invalid event format", err), "").Write(w)
		return
	}

	report := h.processor.HandleS3Event(r.Context(), event)
	h.logger.Info("S3 event handled",
		slog.Int("records", len(report.Records)),
		slog.Int("processed", report.Processed),
		slog.Int("failed", report.Failed),
	)
	h.api.Responder().JSON(report.StatusCode, report).Write(w)
}

// PutObject handles PUT /objects/{bucket}/{key...} requests issued against
// presigned local URLs.
func (h *Handlers) PutObject(w http.ResponseWriter, r *http.Request) {
	if h.objects == nil {
		writeError(w, http.StatusNotFound, "Not found", apperr.KindClient)
		return
	}

	bucket, key := r.PathValue("bucket"), r.PathValue("key")
	if bucket != h.uploadBucket {
		writeError(w, http.StatusForbidden, "Uploads are only accepted for the upload bucket", apperr.KindUnauthorized)
		return
	}
	expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
	if err != nil || h.now().Unix() > expires {
		writeError(w, http.StatusForbidden, "Upload URL expired", apperr.KindUnauthorized)
		return
	}

	limit := h.maxObject
	if limit <= 0 {
		limit = thumbnail.DefaultMaxSourceBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Object too large", apperr.KindClient)
		return
	}

	obj := storage.Object{
		Key:         key,
		ContentType: r.Header.Get("Content-Type"),
		Metadata:    storage.MetadataFromHeader(r.Header),
		Body:        body,
	}
	if err := h.objects.Put(r.Context(), bucket, obj); err != nil {
		h.logger.Error("failed to store object",
			slog.String("bucket", bucket),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Failed to store object", apperr.KindDependency)
		return
	}

	if h.processor != nil {
		report := h.processor.HandleS3Event(r.Context(), objectCreated(bucket, key, int64(len(body))))
		h.logger.Info("local upload processed",
			slog.String("key", key),
			slog.Int("processed", report.Processed),
			slog.Int("failed", report.Failed),
		)
	}

	h.corsHeaders(w)
	w.WriteHeader(http.StatusOK)
}

// PreflightObject handles OPTIONS /objects/{bucket}/{key...} requests.
// Browsers send the presigned metadata headers, so any header is allowed.
func (h *Handlers) PreflightObject(w http.ResponseWriter, r *http.Request) {
	h.corsHeaders(w)
	w.Header().Set("Access-Control-Allow-Methods", "PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) corsHeaders(w http.ResponseWriter) {
	for k, v := range h.api.Responder().Headers() {
		if k != "Content-Type" {
			w.Header().Set(k, v)
		}
	}
}

// objectCreated builds the notification S3 sends after a PUT. Keys are
// form-encoded in S3 events.
func objectCreated(bucket, key string, size int64) events.S3Event {
	return events.S3Event{
		Records: []events.S3EventRecord{{
			EventVersion: "2.1",
			EventSource:  "aws:s3",
			EventName:    "ObjectCreated:Put",
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: bucket},
				Object: events.S3Object{Key: url.QueryEscape(key), Size: size},
			},
		}},
	}
}

// serve adapts a transport-neutral handler to net/http.
func (h *Handlers) serve(fn api.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			h.api.Responder().Failure(apperr.Client("Invalid request format", fmt.Errorf("read body: %w", err)), "").Write(w)
			return
		}

		query := make(map[string]string)
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				query[k] = v[0]
			}
		}

		fn(r.Context(), api.Request{
			Method: r.Method,
			Body:   string(body),
			Query:  query,
			Caller: h.resolve(r),
		}).Write(w)
	}
}

func (h *Handlers) resolve(r *http.Request) identity.Caller {
	if h.resolver == nil {
		return identity.Anonymous()
	}
	return h.resolver.Resolve(r)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message string, code apperr.Kind) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  string(code),
	})
}
