// Package photo provides the PhotoRecord aggregate that tracks one logical
// upload from credential issuance to thumbnail reconciliation, together with
// the repository port used to persist it.
package photo

import (
	"errors"
	"fmt"
	"time"
)

// Status represents the processing state of a PhotoRecord.
type Status string

const (
	// StatusPending indicates a credential was issued and the thumbnail is not yet built.
	StatusPending Status = "pending"
	// StatusProcessed indicates a thumbnail was written for the original.
	StatusProcessed Status = "processed"
	// StatusFailed indicates the original could not be turned into a thumbnail.
	StatusFailed Status = "failed"
)

// ThumbnailPrefix is prepended to an original key to derive its thumbnail key.
const ThumbnailPrefix = "thumb-"

// UnprocessedDimensions is the dimensions placeholder of a pending record.
const UnprocessedDimensions = "0x0"

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("photo: invalid status transition")

// validTransitions defines which status transitions are allowed.
// A record leaves pending exactly once.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusProcessed, StatusFailed},
	StatusProcessed: {},
	StatusFailed:    {},
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Record is a single PhotoRecord as stored in the metadata table.
// Timestamps are RFC3339 strings in UTC so that they sort lexically.
type Record struct {
	// Key is the partition key; it always equals UniqueFileName.
	Key                 string `dynamodbav:"photoMetadata" json:"-"`
	UniqueFileName      string `dynamodbav:"uniqueFileName" json:"uniqueFileName"`
	OriginalFileName    string `dynamodbav:"originalFileName" json:"originalFileName"`
	ContentType         string `dynamodbav:"contentType" json:"contentType"`
	OriginalBucket      string `dynamodbav:"originalBucket" json:"originalBucket"`
	ThumbnailKey        string `dynamodbav:"thumbnailKey" json:"thumbnailKey"`
	UploadedBy          string `dynamodbav:"uploadedBy" json:"uploadedBy"`
	UploadDate          string `dynamodbav:"uploadDate" json:"uploadDate"`
	Status              Status `dynamodbav:"status" json:"status"`
	FileSize            int64  `dynamodbav:"fileSize" json:"fileSize"`
	Dimensions          string `dynamodbav:"dimensions" json:"dimensions"`
	ThumbnailDimensions string `dynamodbav:"thumbnailDimensions,omitempty" json:"thumbnailDimensions,omitempty"`
	FailureReason       string `dynamodbav:"failureReason,omitempty" json:"failureReason,omitempty"`
	UpdatedAt           string `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// NewRecord creates a pending record for an upload that is about to be authorized.
func NewRecord(uniqueFileName, originalFileName, contentType, bucket, uploadedBy string, now time.Time) *Record {
	return &Record{
		Key:              uniqueFileName,
		UniqueFileName:   uniqueFileName,
		OriginalFileName: originalFileName,
		ContentType:      contentType,
		OriginalBucket:   bucket,
		ThumbnailKey:     ThumbnailKey(uniqueFileName),
		UploadedBy:       uploadedBy,
		UploadDate:       now.UTC().Format(time.RFC3339),
		Status:           StatusPending,
		Dimensions:       UnprocessedDimensions,
	}
}

// ThumbnailKey derives the thumbnail object key for an original key.
func ThumbnailKey(originalKey string) string {
	return ThumbnailPrefix + originalKey
}

// Outcome is the result of processing an original, applied to its record
// by Repository.Complete.
type Outcome struct {
	Status              Status
	FileSize            int64
	Dimensions          string
	ThumbnailDimensions string
	FailureReason       string
	At                  time.Time
}

// Processed returns a successful outcome.
func Processed(fileSize int64, dimensions, thumbnailDimensions string, at time.Time) Outcome {
	return Outcome{
		Status:              StatusProcessed,
		FileSize:            fileSize,
		Dimensions:          dimensions,
		ThumbnailDimensions: thumbnailDimensions,
		At:                  at,
	}
}

// Failed returns a failed outcome carrying the reason.
func Failed(reason string, at time.Time) Outcome {
	return Outcome{
		Status:        StatusFailed,
		FailureReason: reason,
		At:            at,
	}
}

// Apply moves the record to the outcome's status.
// Returns ErrInvalidTransition if the record already left pending.
func (r *Record) Apply(o Outcome) error {
	if !CanTransition(r.Status, o.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, o.Status)
	}

	r.Status = o.Status
	r.UpdatedAt = o.At.UTC().Format(time.RFC3339)
	switch o.Status {
	case StatusProcessed:
		r.FileSize = o.FileSize
		r.Dimensions = o.Dimensions
		r.ThumbnailDimensions = o.ThumbnailDimensions
	case StatusFailed:
		r.FailureReason = o.FailureReason
	}
	return nil
}

// Clone creates a copy of the record for safe reads.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
