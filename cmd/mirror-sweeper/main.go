// Command mirror-sweeper is the AWS Lambda entry point that consumes the posts
// table stream and removes user-side reactions to deleted posts.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/jacentio/cookhouse/app"
	"github.com/jacentio/cookhouse/internal/config"
	"github.com/jacentio/cookhouse/internal/obs"
	"github.com/jacentio/cookhouse/stream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("COOKHOUSE_CONFIG_FILE"))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(os.Stdout, cfg.Level())

	ctx := context.Background()
	shutdown, err := obs.InitTracer(ctx, cfg.ServiceName+"-mirror-sweeper", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("init tracer", "error", err)
		os.Exit(1)
	}
	defer shutdown(ctx)

	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		logger.Error("load aws config", "error", err)
		os.Exit(1)
	}
	s := app.NewStore(app.NewDynamoDB(awsCfg, cfg), cfg)

	h := stream.NewHandler(s, s.Registry(), logger)
	lambda.Start(h.HandleMirrorCleanup)
}
