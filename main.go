package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/cruxstack/email-mx-validator-go/internal/config"
	"github.com/cruxstack/email-mx-validator-go/internal/signup"
)

var (
	cfg     *config.Config
	handler *signup.Handler
)

func Handler(ctx context.Context, event events.CognitoEventUserPoolsPreSignup) (events.CognitoEventUserPoolsPreSignup, error) {
	if cfg.DebugMode {
		evtJson, err := json.Marshal(event)
		if err != nil {
			slog.Error("issue marshalling event", "error", err)
		}
		slog.Debug("received event", "event", string(evtJson))
	}

	out, err := handler.Handle(ctx, event)
	if err != nil {
		slog.Warn("sign-up rejected", "error", err)
		return out, err
	}

	return out, nil
}

func main() {
	var err error
	cfg, err = config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.AppLogLevel}))
	slog.SetDefault(logger)

	handler, err = signup.New(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to init handler", "error", err)
		os.Exit(1)
	}

	lambda.Start(Handler)
}
