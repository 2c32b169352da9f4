package storage

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/")
	require.NoError(t, err)
	return s
}

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "nested", "store")

		s, err := NewLocalStorage(root, "")
		require.NoError(t, err)
		assert.Equal(t, root, s.Root())

		info, err := os.Stat(root)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		s, err := NewLocalStorage("", "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "photoshare"), s.Root())
	})
}

func TestLocalStorage_PutGet(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	err := s.Put(ctx, "originals", Object{
		Key:         "albums/a.jpg",
		ContentType: "image/jpeg",
		Body:        []byte("jpeg bytes"),
		Metadata:    map[string]string{"uploadedBy": "bob@example.com"},
	})
	require.NoError(t, err)

	obj, err := s.Get(ctx, "originals", "albums/a.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, "albums/a.jpg", obj.Key)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, "jpeg bytes", string(obj.Body))
	assert.Equal(t, map[string]string{"uploadedby": "bob@example.com"}, obj.Metadata)

	v, ok := obj.MetadataValue("uploadedBy")
	assert.True(t, ok)
	assert.Equal(t, "bob@example.com", v)
}

func TestLocalStorage_Get_Errors(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "originals", Object{Key: "big.jpg", Body: []byte("0123456789")}))

	_, err := s.Get(ctx, "originals", "missing.jpg", 0)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = s.Get(ctx, "originals", "big.jpg", 4)
	assert.ErrorIs(t, err, ErrObjectTooLarge)

	obj, err := s.Get(ctx, "originals", "big.jpg", 10)
	require.NoError(t, err)
	assert.Len(t, obj.Body, 10)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "../outside.jpg", "/abs.jpg", ".meta", ".meta/a.jpg.json"} {
		t.Run(key, func(t *testing.T) {
			err := s.Put(ctx, "originals", Object{Key: key, Body: []byte("x")})
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}

	_, err := s.Get(ctx, "../etc", "passwd", 0)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = s.List(ctx, "", 10)
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestLocalStorage_List(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	for _, key := range []string{"thumb-c.png", "thumb-a.jpg", "thumb-b.gif"} {
		require.NoError(t, s.Put(ctx, "thumbnails", Object{Key: key, Body: []byte(key), Metadata: map[string]string{"k": "v"}}))
	}

	infos, err := s.List(ctx, "thumbnails", 0)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "thumb-a.jpg", infos[0].Key)
	assert.Equal(t, "thumb-b.gif", infos[1].Key)
	assert.Equal(t, "thumb-c.png", infos[2].Key)
	assert.Equal(t, int64(len("thumb-a.jpg")), infos[0].Size)

	limited, err := s.List(ctx, "thumbnails", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLocalStorage_List_MissingBucket(t *testing.T) {
	s := newTestLocalStorage(t)

	infos, err := s.List(context.Background(), "never-written", 10)
	require.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)
}

func TestLocalStorage_PresignPut(t *testing.T) {
	s := newTestLocalStorage(t)
	fixed := time.Date(2024, 8, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	signed, err := s.PresignPut(context.Background(), PutRequest{
		Bucket:      "originals",
		Key:         "my photo-20240815120000-1b9d6bcd.png",
		ContentType: "image/png",
		Metadata:    map[string]string{"uploadedBy": "bob@example.com"},
		TTL:         time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, signed.Method)
	assert.Equal(t, fixed.Add(time.Hour), signed.ExpiresAt)
	assert.Equal(t, "image/png", signed.Headers.Get("Content-Type"))
	assert.Equal(t, "bob@example.com", signed.Headers.Get("X-Amz-Meta-Uploadedby"))

	u, err := url.Parse(signed.URL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", u.Host)
	assert.Equal(t, "/objects/originals/my photo-20240815120000-1b9d6bcd.png", u.Path)
	assert.Equal(t, "1723726800", u.Query().Get("expires"))

	_, err = s.PresignPut(context.Background(), PutRequest{Key: "a.jpg"})
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestMetadataFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Amz-Meta-Uploadedby", "bob@example.com")
	h.Set("X-Amz-Meta-Uniquefilename", "a.jpg")
	h.Set("Content-Type", "image/jpeg")
	h.Set("X-Amz-Meta-", "ignored")

	assert.Equal(t, map[string]string{
		"uploadedby":     "bob@example.com",
		"uniquefilename": "a.jpg",
	}, MetadataFromHeader(h))
}
