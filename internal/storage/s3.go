package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/photoshare/photoshare/internal/metrics"
)

// ErrBucketRequired is returned when an operation is attempted without a bucket.
var ErrBucketRequired = errors.New("storage: bucket is required")

// S3Options holds the client options for S3 storage.
type S3Options struct {
	Endpoint     string // Optional: for custom S3-compatible endpoints
	UsePathStyle bool   // Forced on when Endpoint is set
}

// S3Storage implements Storage on top of S3 or an S3-compatible store.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	now       func() time.Time
}

// Compile-time check that S3Storage implements Storage.
var _ Storage = (*S3Storage)(nil)

// NewS3Storage creates a new S3Storage from a loaded AWS configuration.
func NewS3Storage(awsCfg aws.Config, opts S3Options) *S3Storage {
	var clientOpts []func(*s3.Options)
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
			// S3-compatible stores do not all accept the flexible checksum headers.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	} else if opts.UsePathStyle {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)
	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		now:       time.Now,
	}
}

// Get fetches an object and its metadata.
func (s *S3Storage) Get(ctx context.Context, bucket, key string, maxBytes int64) (*Object, error) {
	if bucket == "" {
		return nil, ErrBucketRequired
	}

	start := time.Now()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordS3Operation("get", "error", time.Since(start).Seconds())
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	var reader io.Reader = out.Body
	if maxBytes > 0 {
		reader = io.LimitReader(out.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		metrics.RecordS3Operation("get", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("read object body: %w", err)
	}
	metrics.RecordS3Operation("get", "success", time.Since(start).Seconds())

	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: s3://%s/%s is larger than %d bytes", ErrObjectTooLarge, bucket, key, maxBytes)
	}

	return &Object{
		Key:         key,
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
		Body:        body,
	}, nil
}

// Put uploads an object, replacing any object at the same key.
func (s *S3Storage) Put(ctx context.Context, bucket string, obj Object) error {
	if bucket == "" {
		return ErrBucketRequired
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentLength: aws.Int64(int64(len(obj.Body))),
		ContentType:   aws.String(obj.ContentType),
		Metadata:      obj.Metadata,
	})
	if err != nil {
		metrics.RecordS3Operation("put", "error", time.Since(start).Seconds())
		return fmt.Errorf("put object: %w", err)
	}
	metrics.RecordS3Operation("put", "success", time.Since(start).Seconds())
	return nil
}

// List returns the first page of up to limit keys, in S3 listing order
// (lexicographic by key).
func (s *S3Storage) List(ctx context.Context, bucket string, limit int) ([]ObjectInfo, error) {
	if bucket == "" {
		return nil, ErrBucketRequired
	}

	start := time.Now()
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(int32(limit)),
	})
	if err != nil {
		metrics.RecordS3Operation("list", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("list objects: %w", err)
	}
	metrics.RecordS3Operation("list", "success", time.Since(start).Seconds())

	infos := make([]ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if limit > 0 && len(infos) >= limit {
			break
		}
		infos = append(infos, ObjectInfo{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	return infos, nil
}

// PresignPut issues a presigned PUT URL bound to one key, one content type
// and the given metadata. The client must send the returned headers verbatim.
func (s *S3Storage) PresignPut(ctx context.Context, req PutRequest) (*PresignedPut, error) {
	if req.Bucket == "" {
		return nil, ErrBucketRequired
	}

	start := time.Now()
	signed, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(req.Bucket),
		Key:         aws.String(req.Key),
		ContentType: aws.String(req.ContentType),
		Metadata:    req.Metadata,
	}, s3.WithPresignExpires(req.TTL), withSignedContentType(req.ContentType))
	if err != nil {
		return nil, fmt.Errorf("presign put object: %w", err)
	}
	metrics.RecordPresign(time.Since(start).Seconds())

	headers := signed.SignedHeader.Clone()
	headers.Del("Host")
	if req.ContentType != "" {
		headers.Set("Content-Type", req.ContentType)
	}

	return &PresignedPut{
		URL:       signed.URL,
		Method:    signed.Method,
		Headers:   headers,
		ExpiresAt: s.now().Add(req.TTL).UTC(),
	}, nil
}

// presignMiddlewareID is the finalize step that signs presigned S3 requests.
const presignMiddlewareID = "PresignHTTPRequest"

// withSignedContentType puts Content-Type on the request right before it is
// presigned, so it lands in X-Amz-SignedHeaders and S3 rejects uploads with
// any other type. The presign client strips it in the build step because
// the request has no body.
func withSignedContentType(contentType string) func(*s3.PresignOptions) {
	return func(po *s3.PresignOptions) {
		if contentType == "" {
			return
		}
		po.ClientOptions = append(po.ClientOptions, func(o *s3.Options) {
			apiOptions := make([]func(*middleware.Stack) error, 0, len(o.APIOptions)+1)
			apiOptions = append(apiOptions, o.APIOptions...)
			o.APIOptions = append(apiOptions, func(stack *middleware.Stack) error {
				return stack.Finalize.Insert(contentTypeMiddleware(contentType), presignMiddlewareID, middleware.Before)
			})
		})
	}
}

func contentTypeMiddleware(contentType string) middleware.FinalizeMiddleware {
	return middleware.FinalizeMiddlewareFunc("SignedContentType",
		func(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
			if req, ok := in.Request.(*smithyhttp.Request); ok {
				req.Header.Set("Content-Type", contentType)
			}
			return next.HandleFinalize(ctx, in)
		})
}
