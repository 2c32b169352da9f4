package photo

import (
	"context"
	"errors"
)

var (
	// ErrRecordNotFound is returned when no record exists for a key.
	ErrRecordNotFound = errors.New("photo: record not found")
	// ErrRecordExists is returned when creating a record whose key is taken.
	ErrRecordExists = errors.New("photo: record already exists")
)

// Repository defines the interface for PhotoRecord persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Create persists a new record.
	// Returns ErrRecordExists if a record with the same key exists.
	Create(ctx context.Context, record *Record) error

	// Get retrieves a record by its unique file name.
	// Returns ErrRecordNotFound if the record does not exist.
	Get(ctx context.Context, key string) (*Record, error)

	// ListByUploader returns every record uploaded by the given identity,
	// in secondary-index order.
	ListByUploader(ctx context.Context, uploadedBy string) ([]*Record, error)

	// Complete applies a processing outcome to a pending record.
	// Returns ErrRecordNotFound if the record does not exist and
	// ErrInvalidTransition if it already left pending.
	Complete(ctx context.Context, key string, outcome Outcome) error
}
