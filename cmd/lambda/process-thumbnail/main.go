// Package main provides the Lambda function that builds thumbnails from S3
// object-created events.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/photoshare/photoshare/internal/bootstrap"
	"github.com/photoshare/photoshare/internal/config"
	"github.com/photoshare/photoshare/internal/thumbnail"
)

func main() {
	_, logger, deps, err := bootstrap.NewLambda(context.Background(), config.ComponentProcessThumbnail)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Only dependency failures are returned as errors, so the platform
	// redelivers the event. Invalid originals are reported and dropped.
	lambda.Start(func(ctx context.Context, event events.S3Event) (thumbnail.Report, error) {
		report := deps.Processor.HandleS3Event(ctx, event)
		logger.Info("S3 event handled",
			slog.Int("records", len(report.Records)),
			slog.Int("processed", report.Processed),
			slog.Int("failed", report.Failed),
			slog.Int("status_code", report.StatusCode),
		)
		return report, report.Err()
	})
}
