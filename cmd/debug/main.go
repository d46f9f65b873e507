package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-lambda-go/events"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/cruxstack/email-mx-validator-go/internal/config"
	"github.com/cruxstack/email-mx-validator-go/internal/signup"
)

var (
	dataPath   string
	policyPath string
)

func init() {
	flag.StringVar(&dataPath, "data", "", "path to JSON file with test event data")
	flag.StringVar(&policyPath, "policy", "", "override path to Rego policy file")
	flag.Parse()
}

func NewDebugConfig() (*config.Config, error) {
	envpath := filepath.Join("..", "..", ".env")
	if _, err := os.Stat(envpath); err == nil {
		_ = godotenv.Load(envpath)
	}

	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	cfg.DebugMode = true

	if cfg.SignupPolicyPath == "" {
		cfg.SignupPolicyPath = filepath.Join("..", "..", "fixtures", "signup-policy.rego")
	}
	if policyPath != "" {
		cfg.SignupPolicyPath = policyPath
	}

	if cfg.DebugDataPath == "" {
		cfg.DebugDataPath = filepath.Join("..", "..", "fixtures", "debug-data.json")
	}
	if dataPath != "" {
		cfg.DebugDataPath = dataPath
	}

	return cfg, nil
}

func main() {
	cfg, err := NewDebugConfig()
	if err != nil {
		log.Fatal("failed to debug load config", "error", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	logger.SetLevel(log.Level(cfg.AppLogLevel))
	log.SetDefault(logger)

	ctx := context.Background()

	h, err := signup.New(ctx, cfg, slog.New(logger))
	if err != nil {
		log.Fatal("failed to init handler", "error", err)
	}

	data, err := os.ReadFile(cfg.DebugDataPath)
	if err != nil {
		log.Fatal("failed to read data file", "path", cfg.DebugDataPath, "error", err)
	}

	evts := []events.CognitoEventUserPoolsPreSignup{}
	if err := json.Unmarshal(data, &evts); err != nil {
		log.Fatal("failed to parse event file", "error", err)
	}

	for i, e := range evts {
		out, err := h.Handle(ctx, e)
		switch {
		case errors.Is(err, signup.ErrDenied):
			log.Warn("sign-up denied", "index", i, "email", e.Request.UserAttributes["email"], "reason", err)
		case err != nil:
			log.Error("integration test failed", "index", i, "error", err)
			os.Exit(1)
		default:
			log.Info("sign-up allowed", "index", i,
				"email", e.Request.UserAttributes["email"],
				"auto_confirm", out.Response.AutoConfirmUser,
				"auto_verify_email", out.Response.AutoVerifyEmail,
			)
		}
	}

	log.Info("integration test passed")
}
