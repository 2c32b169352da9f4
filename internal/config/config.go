// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrUploadBucketRequired is returned when UPLOAD_BUCKET is not set.
	ErrUploadBucketRequired = errors.New("config: UPLOAD_BUCKET is required")
	// ErrThumbnailBucketRequired is returned when THUMBNAIL_BUCKET is not set.
	ErrThumbnailBucketRequired = errors.New("config: THUMBNAIL_BUCKET is required")
	// ErrPhotoTableRequired is returned when a Lambda component needs PHOTO_TABLE.
	ErrPhotoTableRequired = errors.New("config: PHOTO_TABLE is required")
	// ErrInvalidThumbnailQuality is returned when THUMBNAIL_QUALITY is outside 1-100.
	ErrInvalidThumbnailQuality = errors.New("config: THUMBNAIL_QUALITY must be between 1 and 100")
	// ErrInvalidThumbnailSize is returned when THUMBNAIL_MAX_SIZE is not positive.
	ErrInvalidThumbnailSize = errors.New("config: THUMBNAIL_MAX_SIZE must be positive")
	// ErrInvalidRecentLimit is returned when RECENT_LIMIT is outside 1-1000.
	ErrInvalidRecentLimit = errors.New("config: RECENT_LIMIT must be between 1 and 1000")
)

// Component names a deployable handler; each needs a different subset of
// the configuration.
type Component string

const (
	ComponentAuthorizeUpload    Component = "authorize-upload"
	ComponentProcessThumbnail   Component = "process-thumbnail"
	ComponentListThumbnails     Component = "list-thumbnails"
	ComponentListUserThumbnails Component = "list-user-thumbnails"
)

// AllComponents lists every component, as served by the HTTP server.
var AllComponents = []Component{
	ComponentAuthorizeUpload,
	ComponentProcessThumbnail,
	ComponentListThumbnails,
	ComponentListUserThumbnails,
}

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port      int    `env:"PORT, default=8080" json:"port"`
	PublicURL string `env:"PUBLIC_URL" json:"public_url,omitempty"` // Base URL of presigned local writes

	// AWS settings
	AWSRegion          string `env:"AWS_REGION, default=us-east-1" json:"aws_region"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3UsePathStyle     bool   `env:"S3_USE_PATH_STYLE, default=false" json:"s3_use_path_style"`
	DynamoDBEndpoint   string `env:"DYNAMODB_ENDPOINT" json:"dynamodb_endpoint,omitempty"`

	// Storage settings
	StorageDir      string `env:"STORAGE_DIR" json:"storage_dir,omitempty"` // Local disk instead of S3
	UploadBucket    string `env:"UPLOAD_BUCKET" json:"upload_bucket"`
	ThumbnailBucket string `env:"THUMBNAIL_BUCKET" json:"thumbnail_bucket"`
	PhotoTable      string `env:"PHOTO_TABLE" json:"photo_table,omitempty"`
	UploaderIndex   string `env:"UPLOADER_INDEX, default=uploadedByIndex" json:"uploader_index"`

	// Processing settings
	PresignTTL       time.Duration `env:"PRESIGN_TTL, default=1h" json:"presign_ttl"`
	ThumbnailMaxSize int           `env:"THUMBNAIL_MAX_SIZE, default=150" json:"thumbnail_max_size"`
	ThumbnailQuality int           `env:"THUMBNAIL_QUALITY, default=85" json:"thumbnail_quality"`
	MaxSourceBytes   int64         `env:"MAX_SOURCE_BYTES, default=52428800" json:"max_source_bytes"`
	RecentLimit      int           `env:"RECENT_LIMIT, default=20" json:"recent_limit"`

	// Identity settings
	IdentityClaim string `env:"IDENTITY_CLAIM, default=email" json:"identity_claim"`
	AuthJWKSURL   string `env:"AUTH_JWKS_URL" json:"auth_jwks_url,omitempty"`
	AuthIssuer    string `env:"AUTH_ISSUER" json:"auth_issuer,omitempty"`

	// Response settings
	ExposeErrorDetails bool   `env:"EXPOSE_ERROR_DETAILS, default=true" json:"expose_error_details"`
	AllowedOrigin      string `env:"ALLOWED_ORIGIN, default=*" json:"allowed_origin"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// DynamoEnabled returns true if a metadata table is configured.
func (c *Config) DynamoEnabled() bool {
	return c.PhotoTable != ""
}

// LocalStorageEnabled returns true if objects live on local disk.
func (c *Config) LocalStorageEnabled() bool {
	return c.StorageDir != ""
}

// PublicBaseURL returns the URL clients use to reach the server.
func (c *Config) PublicBaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// JWTEnabled returns true if bearer tokens should be verified.
func (c *Config) JWTEnabled() bool {
	return c.AuthJWKSURL != ""
}

// StaticCredentials returns true if explicit AWS keys are configured.
func (c *Config) StaticCredentials() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	return LoadContext(context.Background())
}

// LoadContext is Load with a caller-supplied context.
func LoadContext(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration needed by the given components is
// present. With no components it checks only the shared settings.
func (c *Config) Validate(components ...Component) error {
	if c.ThumbnailMaxSize <= 0 {
		return ErrInvalidThumbnailSize
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		return ErrInvalidThumbnailQuality
	}
	if c.RecentLimit < 1 || c.RecentLimit > 1000 {
		return ErrInvalidRecentLimit
	}

	for _, component := range components {
		switch component {
		case ComponentAuthorizeUpload:
			if c.UploadBucket == "" {
				return ErrUploadBucketRequired
			}
		case ComponentProcessThumbnail, ComponentListThumbnails:
			if c.ThumbnailBucket == "" {
				return ErrThumbnailBucketRequired
			}
		}
	}
	return nil
}

// ValidateLambda is Validate for a component deployed as a Lambda function.
// Invocations do not share a process, so components that read or write
// photo records need the durable table; the in-memory fallback is for the
// HTTP server only.
func (c *Config) ValidateLambda(component Component) error {
	if err := c.Validate(component); err != nil {
		return err
	}
	switch component {
	case ComponentAuthorizeUpload, ComponentProcessThumbnail, ComponentListUserThumbnails:
		if !c.DynamoEnabled() {
			return ErrPhotoTableRequired
		}
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, StorageDir: %s, AWSRegion: %s, AWSAccessKeyID: %s, S3Endpoint: %s, DynamoDBEndpoint: %s, UploadBucket: %s, ThumbnailBucket: %s, PhotoTable: %s, UploaderIndex: %s, PresignTTL: %s, ThumbnailMaxSize: %d, ThumbnailQuality: %d, RecentLimit: %d, IdentityClaim: %s, AuthJWKSURL: %s, ExposeErrorDetails: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.StorageDir,
		c.AWSRegion,
		mask(c.AWSAccessKeyID),
		c.S3Endpoint,
		c.DynamoDBEndpoint,
		c.UploadBucket,
		c.ThumbnailBucket,
		c.PhotoTable,
		c.UploaderIndex,
		c.PresignTTL,
		c.ThumbnailMaxSize,
		c.ThumbnailQuality,
		c.RecentLimit,
		c.IdentityClaim,
		c.AuthJWKSURL,
		c.ExposeErrorDetails,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
