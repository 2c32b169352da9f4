package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAWSConfig() aws.Config {
	return aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("test-access-key", "test-secret-key", ""),
		Retryer:     func() aws.Retryer { return aws.NopRetryer{} },
	}
}

func newMockS3(t *testing.T, handler http.HandlerFunc) *S3Storage {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewS3Storage(testAWSConfig(), S3Options{Endpoint: server.URL})
}

func TestObject_MetadataValue(t *testing.T) {
	obj := &Object{Metadata: map[string]string{"uploadedby": "bob@example.com", "thumbnailKey": "thumb-a.jpg"}}

	v, ok := obj.MetadataValue("uploadedBy")
	assert.True(t, ok)
	assert.Equal(t, "bob@example.com", v)

	v, ok = obj.MetadataValue("thumbnailKey")
	assert.True(t, ok)
	assert.Equal(t, "thumb-a.jpg", v)

	_, ok = obj.MetadataValue("missing")
	assert.False(t, ok)
}

func TestS3Storage_Put_MockServer(t *testing.T) {
	store := newMockS3(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/thumbnails/thumb-a.jpg", r.URL.Path)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Equal(t, "bob@example.com", r.Header.Get("X-Amz-Meta-Uploadedby"))
		assert.Equal(t, "800x600", r.Header.Get("X-Amz-Meta-Original-Dimensions"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "thumbnail bytes", string(body))

		w.WriteHeader(http.StatusOK)
	})

	err := store.Put(context.Background(), "thumbnails", Object{
		Key:         "thumb-a.jpg",
		ContentType: "image/jpeg",
		Body:        []byte("thumbnail bytes"),
		Metadata: map[string]string{
			"uploadedBy":          "bob@example.com",
			"original-dimensions": "800x600",
		},
	})
	require.NoError(t, err)
}

func TestS3Storage_Put_ServerError(t *testing.T) {
	store := newMockS3(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := store.Put(context.Background(), "thumbnails", Object{Key: "thumb-a.jpg", Body: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object")
}

func TestS3Storage_Get_MockServer(t *testing.T) {
	store := newMockS3(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/originals/a.jpg", r.URL.Path)

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Amz-Meta-Uploadedby", "bob@example.com")
		w.Header().Set("X-Amz-Meta-Uniquefilename", "a.jpg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("jpeg bytes"))
	})

	obj, err := store.Get(context.Background(), "originals", "a.jpg", 1024)
	require.NoError(t, err)

	assert.Equal(t, "a.jpg", obj.Key)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, "jpeg bytes", string(obj.Body))

	uploadedBy, ok := obj.MetadataValue("uploadedBy")
	assert.True(t, ok)
	assert.Equal(t, "bob@example.com", uploadedBy)
}

func TestS3Storage_Get_TooLarge(t *testing.T) {
	store := newMockS3(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})

	_, err := store.Get(context.Background(), "originals", "big.jpg", 16)
	assert.ErrorIs(t, err, ErrObjectTooLarge)
}

func TestS3Storage_Get_NotFound(t *testing.T) {
	store := newMockS3(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
	})

	_, err := store.Get(context.Background(), "originals", "missing.jpg", 0)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Storage_List_MockServer(t *testing.T) {
	store := newMockS3(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/thumbnails", strings.TrimSuffix(r.URL.Path, "/"))
		assert.Equal(t, "2", r.URL.Query().Get("max-keys"))

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>thumbnails</Name>
  <KeyCount>2</KeyCount>
  <MaxKeys>2</MaxKeys>
  <IsTruncated>true</IsTruncated>
  <Contents><Key>thumb-a.jpg</Key><Size>120</Size><LastModified>2024-08-15T12:00:00.000Z</LastModified></Contents>
  <Contents><Key>thumb-b.png</Key><Size>340</Size><LastModified>2024-08-15T13:00:00.000Z</LastModified></Contents>
</ListBucketResult>`))
	})

	infos, err := store.List(context.Background(), "thumbnails", 2)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "thumb-a.jpg", infos[0].Key)
	assert.Equal(t, int64(340), infos[1].Size)
	assert.Equal(t, time.Date(2024, 8, 15, 13, 0, 0, 0, time.UTC), infos[1].LastModified.UTC())
}

func TestS3Storage_List_Empty(t *testing.T) {
	store := newMockS3(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>thumbnails</Name><KeyCount>0</KeyCount><MaxKeys>20</MaxKeys><IsTruncated>false</IsTruncated></ListBucketResult>`))
	})

	infos, err := store.List(context.Background(), "thumbnails", 20)
	require.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)
}

func TestS3Storage_PresignPut(t *testing.T) {
	store := NewS3Storage(testAWSConfig(), S3Options{Endpoint: "http://localhost:9000"})
	fixed := time.Date(2024, 8, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	signed, err := store.PresignPut(context.Background(), PutRequest{
		Bucket:      "originals",
		Key:         "vacation-20240815120000-1b9d6bcd.png",
		ContentType: "image/png",
		Metadata:    map[string]string{"uploadedBy": "bob@example.com"},
		TTL:         time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, signed.Method)
	assert.Contains(t, signed.URL, "http://localhost:9000/originals/vacation-20240815120000-1b9d6bcd.png")
	assert.Contains(t, signed.URL, "X-Amz-Expires=3600")
	assert.Equal(t, "image/png", signed.Headers.Get("Content-Type"))

	u, err := url.Parse(signed.URL)
	require.NoError(t, err)
	signedHeaders := strings.Split(u.Query().Get("X-Amz-SignedHeaders"), ";")
	assert.Contains(t, signedHeaders, "content-type")
	assert.Contains(t, signedHeaders, "x-amz-meta-uploadedby")
	assert.Empty(t, signed.Headers.Get("Host"))
	assert.Equal(t, fixed.Add(time.Hour), signed.ExpiresAt)
}

func TestS3Storage_PresignPut_SignsContentType(t *testing.T) {
	store := NewS3Storage(testAWSConfig(), S3Options{})

	for _, contentType := range []string{"image/jpeg", "image/webp"} {
		t.Run(contentType, func(t *testing.T) {
			signed, err := store.PresignPut(context.Background(), PutRequest{
				Bucket:      "originals",
				Key:         "a.jpg",
				ContentType: contentType,
				TTL:         time.Minute,
			})
			require.NoError(t, err)

			u, err := url.Parse(signed.URL)
			require.NoError(t, err)
			assert.Contains(t, strings.Split(u.Query().Get("X-Amz-SignedHeaders"), ";"), "content-type")
			assert.Equal(t, contentType, signed.Headers.Get("Content-Type"))
		})
	}
}

func TestS3Storage_BucketRequired(t *testing.T) {
	store := NewS3Storage(testAWSConfig(), S3Options{})
	ctx := context.Background()

	_, err := store.Get(ctx, "", "a.jpg", 0)
	assert.ErrorIs(t, err, ErrBucketRequired)

	err = store.Put(ctx, "", Object{Key: "a.jpg"})
	assert.ErrorIs(t, err, ErrBucketRequired)

	_, err = store.List(ctx, "", 10)
	assert.ErrorIs(t, err, ErrBucketRequired)

	_, err = store.PresignPut(ctx, PutRequest{Key: "a.jpg"})
	assert.ErrorIs(t, err, ErrBucketRequired)
}
