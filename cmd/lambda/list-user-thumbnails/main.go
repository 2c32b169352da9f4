// Package main provides the Lambda function that lists the caller's thumbnails behind API Gateway.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/photoshare/photoshare/internal/api"
	"github.com/photoshare/photoshare/internal/bootstrap"
	"github.com/photoshare/photoshare/internal/config"
)

func main() {
	cfg, _, deps, err := bootstrap.NewLambda(context.Background(), config.ComponentListUserThumbnails)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	lambda.Start(api.Proxy(deps.Handlers.ListMine, cfg.IdentityClaim))
}
