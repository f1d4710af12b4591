// Package main provides the Lambda entry point for the Instagram relay.
//
// The same routes as relay-server are served through an API Gateway HTTP API
// (payload format 2.0) adapter. Credentials missing from the environment are
// loaded from SSM Parameter Store at cold start:
//   - /instagram-relay/prod/instagram-app-secret
//   - /instagram-relay/prod/instagram-webhook-verify-token
//   - /instagram-relay/prod/instagram-app-id, -oauth-redirect-uri
//   - /instagram-relay/prod/instagram-access-token, -user-id
//
// Retained updates live only as long as the execution environment; the
// status page of a cold instance is empty. Per-request metrics go out as
// CloudWatch EMF lines instead of a /metrics endpoint.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/instagram-relay/internal/boot"
	"github.com/fpang/instagram-relay/internal/logging"
	"github.com/fpang/instagram-relay/internal/relay"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	initStart := time.Now()
	logging.Init()
	startup := logging.NewStartupLogger("relay-lambda").CommitHash(commitHash)

	ctx := context.Background()
	clients, err := boot.InitAWS(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AWS clients")
	}

	cfg, err := boot.LoadConfig(ctx, "", clients, startup)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	deps, err := boot.Deps(cfg, clients, startup)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire relay")
	}
	deps.EMF = true

	adapter = httpadapter.NewV2(relay.New(deps).Handler())

	startup.InitDuration(time.Since(initStart)).Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
