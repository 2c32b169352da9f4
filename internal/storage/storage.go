// Package storage provides access to the object store that holds originals
// and thumbnails. It defines the Storage interface (port) for hexagonal
// architecture and an S3 implementation.
package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// ErrObjectTooLarge is returned when an object exceeds the caller's read limit.
var ErrObjectTooLarge = errors.New("storage: object exceeds size limit")

// Object is a stored payload with its attached metadata.
type Object struct {
	Key         string
	ContentType string
	Metadata    map[string]string
	Body        []byte
}

// MetadataValue looks up a metadata entry ignoring case. S3 returns
// user-metadata keys lower-cased, while writers use camelCase.
func (o *Object) MetadataValue(key string) (string, bool) {
	if v, ok := o.Metadata[key]; ok {
		return v, true
	}
	for k, v := range o.Metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// PutRequest describes a write a client is authorized to perform directly.
type PutRequest struct {
	Bucket      string
	Key         string
	ContentType string
	Metadata    map[string]string
	TTL         time.Duration
}

// PresignedPut is a time-limited write credential for one object.
type PresignedPut struct {
	URL       string
	Method    string
	Headers   http.Header
	ExpiresAt time.Time
}

// Storage defines the interface for object storage.
// Every operation names its bucket so one client serves both the originals
// and the thumbnails namespace.
type Storage interface {
	// Get fetches an object with its metadata, reading at most maxBytes.
	// Returns ErrObjectNotFound if the key does not exist and
	// ErrObjectTooLarge if the payload is larger than maxBytes.
	Get(ctx context.Context, bucket, key string, maxBytes int64) (*Object, error)

	// Put writes an object, overwriting any existing object at the key.
	Put(ctx context.Context, bucket string, obj Object) error

	// List returns up to limit objects in the store's listing order.
	List(ctx context.Context, bucket string, limit int) ([]ObjectInfo, error)

	// PresignPut issues a credential to write exactly one object.
	PresignPut(ctx context.Context, req PutRequest) (*PresignedPut, error)
}
