package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"

	"github.com/photoshare/photoshare/internal/apperr"
)

// Record outcomes in a Report.
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
)

// ErrRetryable is returned by Report.Err when at least one record failed on
// a dependency and a redelivery may succeed.
var ErrRetryable = errors.New("thumbnail: records failed on a dependency")

// RecordReport is the outcome for one record of a storage event. Key is the
// decoded object key.
type RecordReport struct {
	Bucket              string      `json:"bucket"`
	Key                 string      `json:"key"`
	Outcome             string      `json:"outcome"`
	ThumbnailKey        string      `json:"thumbnailKey,omitempty"`
	OriginalDimensions  string      `json:"originalDimensions,omitempty"`
	ThumbnailDimensions string      `json:"thumbnailDimensions,omitempty"`
	Error               string      `json:"error,omitempty"`
	Code                apperr.Kind `json:"code,omitempty"`
}

// Report summarizes a storage event.
type Report struct {
	// StatusCode is 200 when every record was processed, otherwise the
	// status of the most severe failure.
	StatusCode int            `json:"statusCode"`
	Processed  int            `json:"processed"`
	Failed     int            `json:"failed"`
	Records    []RecordReport `json:"records"`
}

// HandleS3Event processes every record of an S3 event. Errors are never
// returned; each one is logged with its key and reported per record.
func (p *Processor) HandleS3Event(ctx context.Context, event events.S3Event) Report {
	report := Report{
		StatusCode: http.StatusOK,
		Records:    make([]RecordReport, 0, len(event.Records)),
	}

	for _, rec := range event.Records {
		bucket := rec.S3.Bucket.Name
		rawKey := rec.S3.Object.Key

		res, err := p.Process(ctx, bucket, rawKey)
		if err != nil {
			kind := apperr.KindOf(err)
			key := decodeKey(rawKey)
			p.logger.Error("thumbnail processing failed",
				slog.String("bucket", bucket),
				slog.String("key", key),
				slog.String("code", string(kind)),
				slog.String("error", err.Error()),
			)
			report.Failed++
			report.StatusCode = max(report.StatusCode, kind.HTTPStatus())
			report.Records = append(report.Records, RecordReport{
				Bucket:  bucket,
				Key:     key,
				Outcome: OutcomeFailed,
				Error:   err.Error(),
				Code:    kind,
			})
			continue
		}

		report.Processed++
		report.Records = append(report.Records, RecordReport{
			Bucket:              res.Bucket,
			Key:                 res.Key,
			Outcome:             OutcomeProcessed,
			ThumbnailKey:        res.ThumbnailKey,
			OriginalDimensions:  res.OriginalDimensions,
			ThumbnailDimensions: res.ThumbnailDimensions,
		})
	}

	return report
}

// Err returns ErrRetryable when a record failed on a dependency. Validation
// and configuration failures are final and never cause a retry.
func (r Report) Err() error {
	var keys []string
	for _, rec := range r.Records {
		if rec.Outcome == OutcomeFailed && rec.Code == apperr.KindDependency {
			keys = append(keys, rec.Key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRetryable, keys)
}

// decodeKey returns the form-decoded key, or raw if it does not decode.
func decodeKey(raw string) string {
	if key, err := url.QueryUnescape(raw); err == nil {
		return key
	}
	return raw
}
