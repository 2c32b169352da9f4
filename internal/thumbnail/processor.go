// Package thumbnail reacts to confirmed writes of originals: it validates and
// resizes each original, publishes the thumbnail and reconciles the
// PhotoRecord status.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/photoshare/photoshare/internal/apperr"
	"github.com/photoshare/photoshare/internal/identity"
	"github.com/photoshare/photoshare/internal/media"
	"github.com/photoshare/photoshare/internal/metrics"
	"github.com/photoshare/photoshare/internal/photo"
	"github.com/photoshare/photoshare/internal/storage"
	"github.com/photoshare/photoshare/internal/upload"
)

// ProcessedBy identifies this processor in thumbnail metadata.
const ProcessedBy = "thumbnail-generator"

// DefaultMaxSourceBytes is the largest original the processor will read.
const DefaultMaxSourceBytes int64 = 50 << 20

// Metadata keys attached to every thumbnail.
const (
	MetaOriginalKey         = "original-key"
	MetaProcessedBy         = "processed-by"
	MetaUploadedBy          = "uploadedBy"
	MetaOriginalDimensions  = "original-dimensions"
	MetaThumbnailDimensions = "thumbnail-dimensions"
)

// ErrThumbnailBucketNotConfigured is returned when no thumbnail bucket is configured.
var ErrThumbnailBucketNotConfigured = errors.New("thumbnail: thumbnail bucket not configured")

// Result describes a published thumbnail.
type Result struct {
	Bucket              string `json:"bucket"`
	Key                 string `json:"key"`
	ThumbnailKey        string `json:"thumbnailKey"`
	ContentType         string `json:"contentType"`
	FileSize            int64  `json:"fileSize"`
	OriginalDimensions  string `json:"originalDimensions"`
	ThumbnailDimensions string `json:"thumbnailDimensions"`
}

// Processor turns originals into thumbnails.
type Processor struct {
	store           storage.Storage
	repo            photo.Repository
	thumbnailer     *media.Thumbnailer
	thumbnailBucket string
	maxSourceBytes  int64
	logger          *slog.Logger
	now             func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithThumbnailer sets the thumbnailer.
func WithThumbnailer(t *media.Thumbnailer) Option {
	return func(p *Processor) {
		if t != nil {
			p.thumbnailer = t
		}
	}
}

// WithMaxSourceBytes sets the largest original the processor will read.
func WithMaxSourceBytes(n int64) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxSourceBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor creates a Processor that publishes into thumbnailBucket.
func NewProcessor(store storage.Storage, repo photo.Repository, thumbnailBucket string, opts ...Option) *Processor {
	p := &Processor{
		store:           store,
		repo:            repo,
		thumbnailer:     media.NewThumbnailer(),
		thumbnailBucket: thumbnailBucket,
		maxSourceBytes:  DefaultMaxSourceBytes,
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process builds the thumbnail for one original. rawKey is the key as it
// appears in a storage event, percent-encoded with '+' for spaces.
//
// The thumbnail is written as a blind overwrite at a key derived from the
// original, so redelivering the same event produces the same object.
func (p *Processor) Process(ctx context.Context, bucket, rawKey string) (*Result, error) {
	if p.thumbnailBucket == "" {
		return nil, apperr.Configuration("Thumbnail bucket not configured", ErrThumbnailBucketNotConfigured)
	}

	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return nil, apperr.Validation("Invalid object key", fmt.Errorf("decode key %q: %w", rawKey, err))
	}

	// Unsupported keys are rejected before any read or write.
	format, err := media.FormatForKey(key)
	if err != nil {
		metrics.RecordThumbnail("unsupported", "rejected")
		return nil, apperr.Validation("Unsupported image format", err)
	}
	codec := string(format.Codec)

	obj, err := p.store.Get(ctx, bucket, key, p.maxSourceBytes)
	if err != nil {
		if errors.Is(err, storage.ErrObjectTooLarge) {
			return nil, p.reject(ctx, key, key, codec, apperr.Validation("Image too large", err))
		}
		metrics.RecordThumbnail(codec, "error")
		return nil, apperr.Dependency("Failed to fetch original", err)
	}
	recordKey := recordKeyFor(obj, key)

	if len(obj.Body) == 0 {
		return nil, p.reject(ctx, key, recordKey, codec, apperr.Validation("Downloaded image is empty", media.ErrEmptyImage))
	}

	thumb, err := p.thumbnailer.Make(obj.Body, format)
	if err != nil {
		if isInvalidImage(err) {
			return nil, p.reject(ctx, key, recordKey, codec, apperr.Validation("Invalid image file", err))
		}
		metrics.RecordThumbnail(codec, "error")
		return nil, apperr.Dependency("Failed to encode thumbnail", err)
	}

	uploadedBy, ok := obj.MetadataValue(upload.MetaUploadedBy)
	if !ok || uploadedBy == "" {
		uploadedBy = identity.Unknown
	}

	thumbKey := photo.ThumbnailKey(key)
	err = p.store.Put(ctx, p.thumbnailBucket, storage.Object{
		Key:         thumbKey,
		ContentType: format.ContentType,
		Body:        thumb.Data,
		Metadata: map[string]string{
			MetaOriginalKey:         key,
			MetaProcessedBy:         ProcessedBy,
			MetaUploadedBy:          uploadedBy,
			MetaOriginalDimensions:  thumb.Original.String(),
			MetaThumbnailDimensions: thumb.Size.String(),
		},
	})
	if err != nil {
		metrics.RecordThumbnail(codec, "error")
		return nil, apperr.Dependency("Failed to store thumbnail", err)
	}

	result := &Result{
		Bucket:              bucket,
		Key:                 key,
		ThumbnailKey:        thumbKey,
		ContentType:         format.ContentType,
		FileSize:            int64(len(obj.Body)),
		OriginalDimensions:  thumb.Original.String(),
		ThumbnailDimensions: thumb.Size.String(),
	}

	outcome := photo.Processed(result.FileSize, result.OriginalDimensions, result.ThumbnailDimensions, p.now())
	if err := p.reconcile(ctx, recordKey, outcome); err != nil {
		metrics.RecordThumbnail(codec, "error")
		return nil, apperr.Dependency("Failed to update photo metadata", err)
	}

	metrics.RecordThumbnail(codec, "success")
	p.logger.Info("thumbnail created",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.String("thumbnail_key", thumbKey),
		slog.String("original_dimensions", result.OriginalDimensions),
		slog.String("thumbnail_dimensions", result.ThumbnailDimensions),
	)
	return result, nil
}

// reject marks the record failed and returns cause. A failure to mark the
// record is logged; the original cause is what the caller sees.
func (p *Processor) reject(ctx context.Context, key, recordKey, codec string, cause error) error {
	metrics.RecordThumbnail(codec, "invalid")
	if err := p.reconcile(ctx, recordKey, photo.Failed(cause.Error(), p.now())); err != nil {
		p.logger.Error("failed to mark record failed",
			slog.String("key", key),
			slog.String("record", recordKey),
			slog.String("error", err.Error()),
		)
	}
	return cause
}

// reconcile applies outcome to the record. Missing or already reconciled
// records are skipped, so duplicate deliveries are harmless.
func (p *Processor) reconcile(ctx context.Context, recordKey string, outcome photo.Outcome) error {
	err := p.repo.Complete(ctx, recordKey, outcome)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, photo.ErrRecordNotFound):
		p.logger.Warn("no photo record for original",
			slog.String("record", recordKey),
		)
		return nil
	case errors.Is(err, photo.ErrInvalidTransition):
		p.logger.Info("photo record already reconciled",
			slog.String("record", recordKey),
			slog.String("status", string(outcome.Status)),
		)
		return nil
	default:
		return fmt.Errorf("complete record %s: %w", recordKey, err)
	}
}

// recordKeyFor returns the PhotoRecord key for an original: the
// uniqueFileName it was uploaded with, or the object key itself.
func recordKeyFor(obj *storage.Object, key string) string {
	if v, ok := obj.MetadataValue(upload.MetaUniqueFileName); ok && v != "" {
		return v
	}
	return key
}

func isInvalidImage(err error) bool {
	return errors.Is(err, media.ErrEmptyImage) ||
		errors.Is(err, media.ErrCorruptImage) ||
		errors.Is(err, media.ErrImageTooLarge)
}
