// Package catalog serves the read paths over published thumbnails: the
// recent list straight from the thumbnail bucket and the per-uploader list
// from the metadata table.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/photoshare/photoshare/internal/apperr"
	"github.com/photoshare/photoshare/internal/identity"
	"github.com/photoshare/photoshare/internal/photo"
	"github.com/photoshare/photoshare/internal/storage"
)

const (
	// DefaultLimit is the number of thumbnails returned by ListRecent.
	DefaultLimit = 20
	// MaxLimit is the largest page a caller may ask for.
	MaxLimit = 1000
)

// Static errors for catalog reads.
var (
	// ErrInvalidLimit is returned when a limit is outside 1..MaxLimit.
	ErrInvalidLimit = errors.New("catalog: limit out of range")
	// ErrBucketNotConfigured is returned when no thumbnail bucket is configured.
	ErrBucketNotConfigured = errors.New("catalog: thumbnail bucket not configured")
)

// Thumbnail is one entry of a listing.
type Thumbnail struct {
	Name             string `json:"name"`
	OriginalFileName string `json:"originalFileName,omitempty"`
}

// Reader lists thumbnails.
type Reader struct {
	store        storage.Storage
	repo         photo.Repository
	bucket       string
	defaultLimit int
	logger       *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithDefaultLimit sets the limit used when the caller does not give one.
func WithDefaultLimit(n int) Option {
	return func(r *Reader) {
		if n > 0 && n <= MaxLimit {
			r.defaultLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReader creates a Reader over the thumbnail bucket and the metadata table.
func NewReader(store storage.Storage, repo photo.Repository, bucket string, opts ...Option) *Reader {
	r := &Reader{
		store:        store,
		repo:         repo,
		bucket:       bucket,
		defaultLimit: DefaultLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultLimit returns the limit applied when ListRecent is called with 0.
func (r *Reader) DefaultLimit() int {
	return r.defaultLimit
}

// ListRecent returns up to limit thumbnail names in storage listing order
// (lexicographic by key, which is not upload time). A limit of 0 selects
// the default.
func (r *Reader) ListRecent(ctx context.Context, limit int) ([]Thumbnail, error) {
	if r.bucket == "" {
		return nil, apperr.Configuration("Thumbnail bucket not configured", ErrBucketNotConfigured)
	}
	if limit == 0 {
		limit = r.defaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return nil, apperr.Client("Invalid limit", fmt.Errorf("%w: %d", ErrInvalidLimit, limit))
	}

	infos, err := r.store.List(ctx, r.bucket, limit)
	if err != nil {
		r.logger.Error("failed to list thumbnails",
			slog.String("bucket", r.bucket),
			slog.String("error", err.Error()),
		)
		return nil, apperr.Dependency("Failed to load thumbnails", err)
	}

	thumbnails := make([]Thumbnail, 0, len(infos))
	for _, info := range infos {
		if len(thumbnails) == limit {
			break
		}
		thumbnails = append(thumbnails, Thumbnail{Name: info.Key})
	}
	return thumbnails, nil
}

// ListForIdentity returns every thumbnail uploaded by the caller, in index
// order. Anonymous callers are rejected.
func (r *Reader) ListForIdentity(ctx context.Context, caller identity.Caller) ([]Thumbnail, error) {
	uploadedBy, err := caller.Require()
	if err != nil {
		return nil, err
	}

	records, err := r.repo.ListByUploader(ctx, uploadedBy)
	if err != nil {
		r.logger.Error("failed to query thumbnails",
			slog.String("uploaded_by", uploadedBy),
			slog.String("error", err.Error()),
		)
		return nil, apperr.Dependency("Failed to fetch thumbnails", err)
	}

	thumbnails := make([]Thumbnail, 0, len(records))
	for _, rec := range records {
		thumbnails = append(thumbnails, Thumbnail{
			Name:             rec.ThumbnailKey,
			OriginalFileName: rec.OriginalFileName,
		})
	}
	return thumbnails, nil
}
