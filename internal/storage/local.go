package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidKey is returned when a bucket or key would resolve outside the
// storage root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// metaDir holds the JSON sidecar of every object inside a bucket directory.
const metaDir = ".meta"

// LocalStorage implements Storage on local disk for running without an
// object store. Each bucket is a directory under the root. Presigned writes
// point at the HTTP server's object route under baseURL.
type LocalStorage struct {
	root    string
	baseURL string
	now     func() time.Time
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

type localMeta struct {
	ContentType string            `json:"contentType,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewLocalStorage creates a new LocalStorage instance.
// If root is empty, a photoshare directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "photoshare")
	}

	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &LocalStorage{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// Root returns the storage directory path.
func (s *LocalStorage) Root() string {
	return s.root
}

// Get reads an object and its sidecar metadata.
func (s *LocalStorage) Get(ctx context.Context, bucket, key string, maxBytes int64) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	dataPath, metaPath, err := s.paths(bucket, key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %s/%s is larger than %d bytes", ErrObjectTooLarge, bucket, key, maxBytes)
	}

	body, err := os.ReadFile(dataPath) // #nosec G304 - path is confined to the storage root
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}

	var meta localMeta
	raw, err := os.ReadFile(metaPath) // #nosec G304 - path is confined to the storage root
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("decode object metadata: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read object metadata: %w", err)
	}

	return &Object{
		Key:         key,
		ContentType: meta.ContentType,
		Metadata:    meta.Metadata,
		Body:        body,
	}, nil
}

// Put writes an object and its sidecar metadata. Metadata keys are stored
// lower-cased, as S3 returns them.
func (s *LocalStorage) Put(ctx context.Context, bucket string, obj Object) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	dataPath, metaPath, err := s.paths(bucket, obj.Key)
	if err != nil {
		return err
	}

	meta := localMeta{ContentType: obj.ContentType}
	if len(obj.Metadata) > 0 {
		meta.Metadata = make(map[string]string, len(obj.Metadata))
		for k, v := range obj.Metadata {
			meta.Metadata[strings.ToLower(k)] = v
		}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode object metadata: %w", err)
	}

	for _, p := range []string{dataPath, metaPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
			return fmt.Errorf("create object directory: %w", err)
		}
	}
	if err := os.WriteFile(dataPath, obj.Body, 0600); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if err := os.WriteFile(metaPath, raw, 0600); err != nil {
		return fmt.Errorf("write object metadata: %w", err)
	}
	return nil
}

// List walks the bucket directory in lexical order and returns up to limit
// objects. A bucket that was never written to is empty.
func (s *LocalStorage) List(ctx context.Context, bucket string, limit int) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}

	infos := make([]ObjectInfo, 0)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == metaDir && filepath.Dir(path) == dir {
				return fs.SkipDir
			}
			return nil
		}
		if limit > 0 && len(infos) >= limit {
			return fs.SkipAll
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		infos = append(infos, ObjectInfo{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return infos, nil
}

// PresignPut returns a URL on the server's object route. The metadata travels
// as x-amz-meta-* headers the client must send verbatim, as with S3.
func (s *LocalStorage) PresignPut(_ context.Context, req PutRequest) (*PresignedPut, error) {
	if _, _, err := s.paths(req.Bucket, req.Key); err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(req.TTL).UTC()

	segments := strings.Split(req.Key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	query := url.Values{"expires": []string{fmt.Sprintf("%d", expiresAt.Unix())}}

	headers := http.Header{}
	if req.ContentType != "" {
		headers.Set("Content-Type", req.ContentType)
	}
	for k, v := range req.Metadata {
		headers.Set(MetadataHeaderPrefix+k, v)
	}

	return &PresignedPut{
		URL:       fmt.Sprintf("%s/objects/%s/%s?%s", s.baseURL, url.PathEscape(req.Bucket), strings.Join(segments, "/"), query.Encode()),
		Method:    http.MethodPut,
		Headers:   headers,
		ExpiresAt: expiresAt,
	}, nil
}

// MetadataHeaderPrefix marks user metadata in object write requests.
const MetadataHeaderPrefix = "X-Amz-Meta-"

// MetadataFromHeader collects user metadata from request headers, keyed in
// lower case.
func MetadataFromHeader(h http.Header) map[string]string {
	meta := make(map[string]string)
	for k, v := range h {
		if len(v) == 0 || len(k) <= len(MetadataHeaderPrefix) {
			continue
		}
		if strings.EqualFold(k[:len(MetadataHeaderPrefix)], MetadataHeaderPrefix) {
			meta[strings.ToLower(k[len(MetadataHeaderPrefix):])] = v[0]
		}
	}
	return meta
}

func (s *LocalStorage) bucketDir(bucket string) (string, error) {
	if bucket == "" {
		return "", ErrBucketRequired
	}
	if !filepath.IsLocal(bucket) || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidKey, bucket)
	}
	return filepath.Join(s.root, bucket), nil
}

func (s *LocalStorage) paths(bucket, key string) (dataPath, metaPath string, err error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return "", "", err
	}
	rel := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(rel) || key == metaDir || strings.HasPrefix(key, metaDir+"/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(dir, rel), filepath.Join(dir, metaDir, rel+".json"), nil
}
