// Package main provides the entry point for the photo-sharing HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photoshare/photoshare/internal/bootstrap"
	"github.com/photoshare/photoshare/internal/config"
	"github.com/photoshare/photoshare/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(config.AllComponents...); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting photoshare API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("upload_bucket", cfg.UploadBucket),
		slog.String("thumbnail_bucket", cfg.ThumbnailBucket),
		slog.Bool("local_storage", cfg.LocalStorageEnabled()),
		slog.Bool("dynamodb_enabled", cfg.DynamoEnabled()),
		slog.Bool("jwt_enabled", cfg.JWTEnabled()),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	verifier, err := bootstrap.NewVerifier(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize identity: %w", err)
	}

	// Initialize HTTP handlers and router
	var opts []server.HandlerOption
	if verifier != nil {
		defer verifier.Close()
		opts = append(opts, server.WithCallerResolver(verifier))
	}
	if deps.Local != nil {
		opts = append(opts, server.WithLocalObjects(deps.Local, cfg.UploadBucket, cfg.MaxSourceBytes))
	}
	handlers := server.NewHandlers(deps.Handlers, deps.Processor, logger, opts...)
	router := server.NewRouter(handlers, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Allow for large originals on the event webhook
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
