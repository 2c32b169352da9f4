// Package upload issues time-limited write credentials for originals and
// records the pending PhotoRecord that tracks each upload.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/photoshare/photoshare/internal/apperr"
	"github.com/photoshare/photoshare/internal/identity"
	"github.com/photoshare/photoshare/internal/metrics"
	"github.com/photoshare/photoshare/internal/photo"
	"github.com/photoshare/photoshare/internal/photo/name"
	"github.com/photoshare/photoshare/internal/storage"
)

// DefaultTTL is how long an issued credential stays valid.
const DefaultTTL = time.Hour

// ErrBucketNotConfigured is returned when no upload bucket is configured.
var ErrBucketNotConfigured = errors.New("upload: upload bucket not configured")

// Metadata keys attached to every original.
const (
	MetaUploadedBy       = "uploadedBy"
	MetaOriginalFileName = "originalFileName"
	MetaThumbnailKey     = "thumbnailKey"
	MetaUniqueFileName   = "uniqueFileName"
)

// Request is the body of an upload authorization request.
type Request struct {
	// FileName is the client's name for the file.
	FileName string `json:"fileName" validate:"required"`
	// FileType is the MIME type the client will upload with.
	FileType string `json:"fileType" validate:"required"`
}

// Result is returned to the client after a successful authorization.
type Result struct {
	PresignedURL     string            `json:"presignedUrl"`
	Method           string            `json:"method"`
	Headers          map[string]string `json:"headers"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	OriginalFileName string            `json:"originalFileName"`
	UniqueFileName   string            `json:"uniqueFileName"`
	ThumbnailKey     string            `json:"thumbnailKey"`
	Metadata         *photo.Record     `json:"metadata"`
}

// Authorizer issues upload credentials.
type Authorizer struct {
	repo      photo.Repository
	store     storage.Storage
	bucket    string
	ttl       time.Duration
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
	newName   func(original string, now time.Time) string
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithTTL sets the credential lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authorizer) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authorizer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthorizer creates an Authorizer writing originals to bucket.
func NewAuthorizer(repo photo.Repository, store storage.Storage, bucket string, opts ...Option) *Authorizer {
	a := &Authorizer{
		repo:      repo,
		store:     store,
		bucket:    bucket,
		ttl:       DefaultTTL,
		validator: validator.New(),
		logger:    slog.Default(),
		now:       time.Now,
		newName:   name.Unique,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize records a pending upload and issues a credential to write it.
//
// The record is persisted before the credential is signed. If signing fails
// the record is marked failed, so no pending record is left without a
// credential that could ever complete it.
func (a *Authorizer) Authorize(ctx context.Context, caller identity.Caller, req Request) (*Result, error) {
	if a.bucket == "" {
		metrics.RecordUpload("error")
		return nil, apperr.Configuration("Upload bucket not configured", ErrBucketNotConfigured)
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.FileType = strings.TrimSpace(req.FileType)
	if err := a.validator.Struct(req); err != nil {
		metrics.RecordUpload("rejected")
		return nil, apperr.Client("Invalid request format", err)
	}

	now := a.now().UTC()
	uploadedBy := caller.OrUnknown()
	unique := a.newName(req.FileName, now)
	record := photo.NewRecord(unique, req.FileName, req.FileType, a.bucket, uploadedBy, now)

	if err := a.repo.Create(ctx, record); err != nil {
		metrics.RecordUpload("error")
		a.logger.Error("failed to record upload",
			slog.String("unique_file_name", unique),
			slog.String("error", err.Error()),
		)
		return nil, apperr.Dependency("Failed to generate upload URL", fmt.Errorf("record upload: %w", err))
	}

	signed, err := a.store.PresignPut(ctx, storage.PutRequest{
		Bucket:      a.bucket,
		Key:         unique,
		ContentType: req.FileType,
		Metadata: map[string]string{
			MetaUploadedBy:       uploadedBy,
			MetaOriginalFileName: req.FileName,
			MetaThumbnailKey:     record.ThumbnailKey,
			MetaUniqueFileName:   unique,
		},
		TTL: a.ttl,
	})
	if err != nil {
		metrics.RecordUpload("error")
		a.logger.Error("failed to presign upload",
			slog.String("unique_file_name", unique),
			slog.String("error", err.Error()),
		)
		if cErr := a.repo.Complete(ctx, unique, photo.Failed("presign failed: "+err.Error(), a.now())); cErr != nil {
			a.logger.Error("failed to mark upload failed",
				slog.String("unique_file_name", unique),
				slog.String("error", cErr.Error()),
			)
		}
		return nil, apperr.Dependency("Failed to generate upload URL", fmt.Errorf("presign upload: %w", err))
	}

	metrics.RecordUpload("success")
	a.logger.Info("upload authorized",
		slog.String("unique_file_name", unique),
		slog.String("uploaded_by", uploadedBy),
		slog.String("content_type", req.FileType),
	)

	return &Result{
		PresignedURL:     signed.URL,
		Method:           signed.Method,
		Headers:          flattenHeaders(signed.Headers),
		ExpiresAt:        signed.ExpiresAt,
		OriginalFileName: req.FileName,
		UniqueFileName:   unique,
		ThumbnailKey:     record.ThumbnailKey,
		Metadata:         record,
	}, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = strings.Join(v, ",")
		}
	}
	return out
}
