// Package app wires configuration into a ready session service. Both the
// Lambda entrypoint and the terminal client build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"vehicle-advisor/internal/catalog"
	"vehicle-advisor/internal/config"
	"vehicle-advisor/internal/gateway"
	"vehicle-advisor/internal/integrations/gemini"
	"vehicle-advisor/internal/integrations/openai"
	"vehicle-advisor/internal/integrations/paramstore"
	"vehicle-advisor/internal/repository"
	"vehicle-advisor/internal/usecase"
)

// App holds the wired service graph.
type App struct {
	Sessions *usecase.SessionService
	Pools    *catalog.Loader
	// Postgres is set only for the postgres catalog backend.
	Postgres *repository.PostgresCatalog

	closers []func()
}

// Close releases database and cache connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// New builds the App described by cfg. AWS configuration is only loaded when
// a component needs it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	repo, err := a.catalogRepository(ctx, cfg.Catalog, logger, loadAWS)
	if err != nil {
		return nil, err
	}
	a.Pools, err = catalog.NewLoader(repo, cfg.Catalog.PoolLimit, cfg.Catalog.PoolOffset, logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	tokens, err := tokenSource(cfg.LLM, loadAWS)
	if err != nil {
		return nil, err
	}

	opts := []usecase.SessionOption{usecase.WithLogger(logger)}
	var llm gateway.LLMClient
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		llm, err = gemini.NewClient(tokens, gemini.WithTemperature(0))
	default:
		var oa *openai.Client
		oa, err = openai.NewClient(tokens, openai.WithBaseURL(orDefault(cfg.LLM.BaseURL, "https://api.openai.com/v1")), openai.WithTemperature(0))
		if err == nil && cfg.LLM.Moderation {
			opts = append(opts, usecase.WithModerator(oa))
		}
		llm = oa
	}
	if err != nil {
		return nil, fmt.Errorf("app: create %s client: %w", cfg.LLM.Provider, err)
	}
	gw, err := gateway.NewLLM(llm, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if cfg.Session.TranscriptTable != "" {
		awsc, err := loadAWS()
		if err != nil {
			return nil, err
		}
		tr, err := repository.NewTranscript(awsdynamodb.NewFromConfig(awsc), cfg.Session.TranscriptTable)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		opts = append(opts, usecase.WithRecorder(tr))
	}

	a.Sessions, err = usecase.NewSessionService(gw, a.Pools, usecase.SessionConfig{
		MaxTurns:         cfg.Session.MaxTurns,
		MaxAnswerLength:  cfg.Session.MaxAnswerLength,
		IdleTimeout:      cfg.Session.IdleTimeout,
		FailedTurnPolicy: cfg.Session.FailedTurnPolicy,
		RefetchOnReset:   cfg.Session.RefetchOnReset,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	ok = true
	return a, nil
}

func (a *App) catalogRepository(ctx context.Context, cfg config.CatalogConfig, logger *slog.Logger, loadAWS func() (aws.Config, error)) (repository.Fetcher, error) {
	var repo repository.Fetcher
	switch cfg.Backend {
	case config.BackendDynamoDB:
		awsc, err := loadAWS()
		if err != nil {
			return nil, err
		}
		repo, err = repository.NewDynamoCatalog(awsdynamodb.NewFromConfig(awsc), cfg.Table, logger)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	case config.BackendPostgres:
		pool, err := repository.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		pg, err := repository.NewPostgresCatalog(pool, logger)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.Postgres = pg
		repo = pg
	default:
		repo = repository.NewMemoryCatalog(nil)
	}

	if cfg.RedisURL == "" {
		return repo, nil
	}
	rdb, err := repository.ConnectRedis(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	cached, err := repository.NewCachedCatalog(repo, rdb, cfg.CacheTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return cached, nil
}

type tokenProvider interface {
	Token(ctx context.Context) (string, error)
}

func tokenSource(cfg config.LLMConfig, loadAWS func() (aws.Config, error)) (tokenProvider, error) {
	if cfg.APIKey != "" {
		return paramstore.StaticToken(cfg.APIKey), nil
	}
	awsc, err := loadAWS()
	if err != nil {
		return nil, err
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsc))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	ts, err := paramstore.NewTokenSource(ps, cfg.ParamPrefix, cfg.TokenKey())
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return ts, nil
}

// NewLogger returns a slog logger writing JSON or text at the named level.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
