// Package bootstrap provides dependency initialization shared by the HTTP
// server and the Lambda binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/photoshare/photoshare/internal/api"
	"github.com/photoshare/photoshare/internal/catalog"
	"github.com/photoshare/photoshare/internal/config"
	"github.com/photoshare/photoshare/internal/identity"
	"github.com/photoshare/photoshare/internal/media"
	"github.com/photoshare/photoshare/internal/photo"
	"github.com/photoshare/photoshare/internal/storage"
	"github.com/photoshare/photoshare/internal/thumbnail"
	"github.com/photoshare/photoshare/internal/upload"
)

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Storage    storage.Storage
	Local      *storage.LocalStorage // Set when objects live on local disk
	Repository photo.Repository
	Authorizer *upload.Authorizer
	Processor  *thumbnail.Processor
	Catalog    *catalog.Reader
	Handlers   *api.Handlers
}

// NewDependencies creates and initializes all dependencies for the application.
// Clients are built once here and shared by every invocation.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, local, err := initStorage(awsCfg, cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, err := initRepository(awsCfg, cfg, logger)
	if err != nil {
		return nil, err
	}

	authorizer := upload.NewAuthorizer(repo, store, cfg.UploadBucket,
		upload.WithTTL(cfg.PresignTTL),
		upload.WithLogger(logger),
	)

	thumbnailer := media.NewThumbnailer(
		media.WithMaxSize(cfg.ThumbnailMaxSize),
		media.WithQuality(cfg.ThumbnailQuality),
	)
	processor := thumbnail.NewProcessor(store, repo, cfg.ThumbnailBucket,
		thumbnail.WithThumbnailer(thumbnailer),
		thumbnail.WithMaxSourceBytes(cfg.MaxSourceBytes),
		thumbnail.WithLogger(logger),
	)

	reader := catalog.NewReader(store, repo, cfg.ThumbnailBucket,
		catalog.WithDefaultLimit(cfg.RecentLimit),
		catalog.WithLogger(logger),
	)

	responder := api.NewResponder(
		api.WithAllowedOrigin(cfg.AllowedOrigin),
		api.WithErrorDetails(cfg.ExposeErrorDetails),
		api.WithResponderLogger(logger),
	)

	return &Dependencies{
		Storage:    store,
		Local:      local,
		Repository: repo,
		Authorizer: authorizer,
		Processor:  processor,
		Catalog:    reader,
		Handlers:   api.NewHandlers(authorizer, reader, responder, logger),
	}, nil
}

// LoadAWSConfig loads the shared AWS configuration. Explicit keys take
// precedence over the default credential chain.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.StaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewVerifier creates the bearer-token verifier for the HTTP server, or nil
// when no JWKS is configured.
func NewVerifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*identity.Verifier, error) {
	if !cfg.JWTEnabled() {
		logger.Warn("AUTH_JWKS_URL not set; all HTTP callers are anonymous")
		return nil, nil
	}

	verifier, err := identity.NewJWKSVerifier(ctx, cfg.AuthJWKSURL,
		identity.WithIssuer(cfg.AuthIssuer),
		identity.WithClaim(cfg.IdentityClaim),
		identity.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create JWT verifier: %w", err)
	}
	logger.Info("JWT verification configured",
		slog.String("jwks_url", cfg.AuthJWKSURL),
		slog.String("issuer", cfg.AuthIssuer),
	)
	return verifier, nil
}

// initStorage creates the object store based on configuration.
func initStorage(awsCfg aws.Config, cfg *config.Config, logger *slog.Logger) (storage.Storage, *storage.LocalStorage, error) {
	if cfg.LocalStorageEnabled() {
		local, err := storage.NewLocalStorage(cfg.StorageDir, cfg.PublicBaseURL())
		if err != nil {
			return nil, nil, fmt.Errorf("create local storage: %w", err)
		}
		logger.Info("local storage configured",
			slog.String("dir", local.Root()),
			slog.String("public_url", cfg.PublicBaseURL()),
		)
		return local, local, nil
	}

	store := storage.NewS3Storage(awsCfg, storage.S3Options{
		Endpoint:     cfg.S3Endpoint,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	logger.Info("S3 storage configured",
		slog.String("region", cfg.AWSRegion),
		slog.String("upload_bucket", cfg.UploadBucket),
		slog.String("thumbnail_bucket", cfg.ThumbnailBucket),
	)
	return store, nil, nil
}

// initRepository creates the metadata store based on configuration.
func initRepository(awsCfg aws.Config, cfg *config.Config, logger *slog.Logger) (photo.Repository, error) {
	if cfg.DynamoEnabled() {
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoDBEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
			}
		})
		repo, err := photo.NewDynamoRepository(client, cfg.PhotoTable, cfg.UploaderIndex)
		if err != nil {
			return nil, fmt.Errorf("create DynamoDB repository: %w", err)
		}
		logger.Info("DynamoDB repository configured",
			slog.String("table", cfg.PhotoTable),
			slog.String("index", cfg.UploaderIndex),
		)
		return repo, nil
	}

	logger.Warn("PHOTO_TABLE not set; using in-memory photo repository")
	return photo.NewMemoryRepository(), nil
}
