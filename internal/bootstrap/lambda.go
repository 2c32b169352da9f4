package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/photoshare/photoshare/internal/config"
)

// NewLambda loads configuration and dependencies for one Lambda component.
// Missing component configuration is fatal, so the function fails at init
// instead of serving from state that dies with the container.
func NewLambda(ctx context.Context, component config.Component) (*config.Config, *slog.Logger, *Dependencies, error) {
	cfg, err := config.LoadContext(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	// CloudWatch log insights parses JSON lines.
	if _, ok := os.LookupEnv("LOG_FORMAT"); !ok {
		cfg.LogFormat = "json"
	}
	logger := cfg.NewLogger().With(slog.String("component", string(component)))
	slog.SetDefault(logger)

	if err := cfg.ValidateLambda(component); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, nil, nil, fmt.Errorf("validate config: %w", err)
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize dependencies: %w", err)
	}
	return cfg, logger, deps, nil
}
