package photo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(key, uploadedBy string) *Record {
	return NewRecord(key, "orig-"+key, "image/jpeg", "originals", uploadedBy, time.Now())
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	rec := newTestRecord("a.jpg", "bob")
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.Get(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// Mutating the returned record must not affect the stored one.
	got.Status = StatusFailed
	again, err := repo.Get(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}

func TestMemoryRepository_CreateDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestRecord("a.jpg", "bob")))
	err := repo.Create(ctx, newTestRecord("a.jpg", "alice"))
	assert.ErrorIs(t, err, ErrRecordExists)
}

func TestMemoryRepository_GetNotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.Get(context.Background(), "missing.jpg")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryRepository_ListByUploader(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestRecord("b.jpg", "bob")))
	require.NoError(t, repo.Create(ctx, newTestRecord("a.jpg", "bob")))
	require.NoError(t, repo.Create(ctx, newTestRecord("c.jpg", "alice")))

	records, err := repo.ListByUploader(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a.jpg", records[0].Key)
	assert.Equal(t, "b.jpg", records[1].Key)

	none, err := repo.ListByUploader(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryRepository_Complete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestRecord("a.jpg", "bob")))

	require.NoError(t, repo.Complete(ctx, "a.jpg", Processed(10, "800x600", "150x112", time.Now())))

	got, err := repo.Get(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, got.Status)
	assert.Equal(t, "800x600", got.Dimensions)

	err = repo.Complete(ctx, "a.jpg", Processed(10, "800x600", "150x112", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = repo.Complete(ctx, "missing.jpg", Failed("nope", time.Now()))
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryRepository_ConcurrentComplete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestRecord("a.jpg", "bob")))

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- repo.Complete(ctx, "a.jpg", Processed(int64(i), fmt.Sprintf("%dx1", i), "1x1", time.Now()))
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one transition must win")
}
