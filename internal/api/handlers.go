package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/photoshare/photoshare/internal/apperr"
	"github.com/photoshare/photoshare/internal/catalog"
	"github.com/photoshare/photoshare/internal/identity"
	"github.com/photoshare/photoshare/internal/upload"
)

// Uploader issues upload credentials.
type Uploader interface {
	Authorize(ctx context.Context, caller identity.Caller, req upload.Request) (*upload.Result, error)
}

// Catalog lists thumbnails.
type Catalog interface {
	ListRecent(ctx context.Context, limit int) ([]catalog.Thumbnail, error)
	ListForIdentity(ctx context.Context, caller identity.Caller) ([]catalog.Thumbnail, error)
}

// ThumbnailsResponse is the body of the recent listing.
type ThumbnailsResponse struct {
	Thumbnails []catalog.Thumbnail `json:"thumbnails"`
}

// UserThumbnailsResponse is the body of the per-identity listing.
type UserThumbnailsResponse struct {
	Thumbnails []catalog.Thumbnail `json:"thumbnails"`
	Count      int                 `json:"count"`
}

// Handlers contains the transport-neutral handlers.
type Handlers struct {
	uploader  Uploader
	catalog   Catalog
	responder *Responder
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(uploader Uploader, thumbnails Catalog, responder *Responder, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if responder == nil {
		responder = NewResponder(WithResponderLogger(logger))
	}
	return &Handlers{
		uploader:  uploader,
		catalog:   thumbnails,
		responder: responder,
		logger:    logger,
	}
}

// Responder returns the responder shared by the handlers.
func (h *Handlers) Responder() *Responder {
	return h.responder
}

// AuthorizeUpload handles upload authorization requests.
func (h *Handlers) AuthorizeUpload(ctx context.Context, req Request) Response {
	if req.IsPreflight() {
		return h.responder.Preflight()
	}

	var body upload.Request
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return h.responder.Failure(apperr.Client("Invalid request format", fmt.Errorf("decode body: %w", err)), "")
	}

	res, err := h.uploader.Authorize(ctx, req.Caller, body)
	if err != nil {
		return h.responder.Failure(err, "Failed to generate upload URL")
	}
	return h.responder.JSON(http.StatusOK, res)
}

// ListRecent handles the recent thumbnails listing. An optional limit
// query parameter overrides the default page size.
func (h *Handlers) ListRecent(ctx context.Context, req Request) Response {
	if req.IsPreflight() {
		return h.responder.Preflight()
	}

	limit := 0
	if raw := strings.TrimSpace(req.Query["limit"]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return h.responder.Failure(apperr.Client("Invalid limit", fmt.Errorf("limit %q must be a positive integer", raw)), "")
		}
		limit = n
	}

	thumbnails, err := h.catalog.ListRecent(ctx, limit)
	if err != nil {
		return h.responder.Failure(err, "Failed to load thumbnails")
	}
	return h.responder.JSON(http.StatusOK, ThumbnailsResponse{Thumbnails: thumbnails})
}

// ListMine handles the caller's own thumbnails listing.
func (h *Handlers) ListMine(ctx context.Context, req Request) Response {
	if req.IsPreflight() {
		return h.responder.Preflight()
	}

	thumbnails, err := h.catalog.ListForIdentity(ctx, req.Caller)
	if err != nil {
		return h.responder.Failure(err, "Failed to fetch thumbnails")
	}
	return h.responder.JSON(http.StatusOK, UserThumbnailsResponse{
		Thumbnails: thumbnails,
		Count:      len(thumbnails),
	})
}
