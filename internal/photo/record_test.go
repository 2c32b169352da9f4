package photo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2024, 8, 15, 14, 30, 22, 0, time.FixedZone("CEST", 2*3600))
	r := NewRecord("cat-20240815123022-1b9d6bcd.png", "cat.png", "image/png", "originals", "bob@example.com", now)

	assert.Equal(t, "cat-20240815123022-1b9d6bcd.png", r.Key)
	assert.Equal(t, r.Key, r.UniqueFileName)
	assert.Equal(t, "thumb-cat-20240815123022-1b9d6bcd.png", r.ThumbnailKey)
	assert.Equal(t, "2024-08-15T12:30:22Z", r.UploadDate)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, UnprocessedDimensions, r.Dimensions)
	assert.Zero(t, r.FileSize)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		expected bool
	}{
		{StatusPending, StatusProcessed, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusPending, false},
		{StatusProcessed, StatusFailed, false},
		{StatusProcessed, StatusProcessed, false},
		{StatusFailed, StatusProcessed, false},
		{Status("bogus"), StatusProcessed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRecord_Apply(t *testing.T) {
	at := time.Date(2024, 8, 15, 15, 0, 0, 0, time.UTC)

	t.Run("processed sets dimensions", func(t *testing.T) {
		r := NewRecord("a.jpg", "a.jpg", "image/jpeg", "originals", "bob", at)
		require.NoError(t, r.Apply(Processed(1234, "800x600", "150x112", at)))

		assert.Equal(t, StatusProcessed, r.Status)
		assert.Equal(t, int64(1234), r.FileSize)
		assert.Equal(t, "800x600", r.Dimensions)
		assert.Equal(t, "150x112", r.ThumbnailDimensions)
		assert.Equal(t, "2024-08-15T15:00:00Z", r.UpdatedAt)
		assert.True(t, r.Status.IsTerminal())
	})

	t.Run("failed keeps placeholders", func(t *testing.T) {
		r := NewRecord("b.jpg", "b.jpg", "image/jpeg", "originals", "bob", at)
		require.NoError(t, r.Apply(Failed("corrupt image", at)))

		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, "corrupt image", r.FailureReason)
		assert.Equal(t, UnprocessedDimensions, r.Dimensions)
	})

	t.Run("second transition rejected", func(t *testing.T) {
		r := NewRecord("c.jpg", "c.jpg", "image/jpeg", "originals", "bob", at)
		require.NoError(t, r.Apply(Processed(1, "1x1", "1x1", at)))

		err := r.Apply(Failed("late failure", at))
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusProcessed, r.Status)
		assert.Empty(t, r.FailureReason)
	})
}

func TestRecord_Clone(t *testing.T) {
	r := NewRecord("a.jpg", "a.jpg", "image/jpeg", "originals", "bob", time.Now())
	c := r.Clone()
	c.Status = StatusFailed

	assert.Equal(t, StatusPending, r.Status)
}
