// Package main provides the Lambda function that issues presigned upload URLs behind API Gateway.
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
	cfg, _, deps, err := bootstrap.NewLambda(context.Background(), config.ComponentAuthorizeUpload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	lambda.Start(api.Proxy(deps.Handlers.AuthorizeUpload, cfg.IdentityClaim))
}
