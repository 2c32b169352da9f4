package photo

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Used when no table is configured and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryRepository creates a new in-memory record repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*Record),
	}
}

// Create stores a clone of the record.
func (r *MemoryRepository) Create(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[record.Key]; ok {
		return ErrRecordExists
	}
	r.records[record.Key] = record.Clone()
	return nil
}

// Get retrieves a record by key.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) Get(_ context.Context, key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return record.Clone(), nil
}

// ListByUploader returns clones of the uploader's records ordered by key,
// which mirrors how the secondary index returns them for equal hash keys.
func (r *MemoryRepository) ListByUploader(_ context.Context, uploadedBy string) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Record, 0)
	for _, record := range r.records {
		if record.UploadedBy == uploadedBy {
			result = append(result, record.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Complete applies the outcome under the write lock.
func (r *MemoryRepository) Complete(_ context.Context, key string, outcome Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return ErrRecordNotFound
	}
	return record.Apply(outcome)
}
