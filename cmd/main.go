package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"vehicle-advisor/handler"
	"vehicle-advisor/internal/app"
	"vehicle-advisor/internal/config"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, "json", cfg.LogLevel)
	slog.SetDefault(logger)

	// ---- Services ----
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to wire services", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// ---- Handler ----
	h, err := handler.NewHandler(a.Sessions)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("starting handler",
		"catalog_backend", cfg.Catalog.Backend,
		"llm_provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
	)
	lambda.Start(h.Handle)
}
