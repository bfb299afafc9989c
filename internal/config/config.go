// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"vehicle-advisor/internal/conversation"
)

const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var defaultModels = map[string]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderGemini: "gemini-2.5-flash",
}

// Config holds all application configuration.
type Config struct {
	Catalog  CatalogConfig
	LLM      LLMConfig
	Session  SessionConfig
	LogLevel string
}

// CatalogConfig selects where seed pools come from.
type CatalogConfig struct {
	Backend     string
	Table       string
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration
	PoolLimit   int
	PoolOffset  int
}

// LLMConfig selects the reasoning model and where its credentials live.
type LLMConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	ParamPrefix string
	APIKey      string
	Moderation  bool
}

// SessionConfig bounds conversations.
type SessionConfig struct {
	MaxTurns         int
	MaxAnswerLength  int
	IdleTimeout      time.Duration
	FailedTurnPolicy conversation.FailedTurnPolicy
	RefetchOnReset   bool
	TranscriptTable  string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	policy, err := conversation.ParseFailedTurnPolicy(getEnv("FAILED_TURN_POLICY", "keep"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: FAILED_TURN_POLICY: %w", err)
	}

	provider := strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderOpenAI)))
	cfg := &Config{
		Catalog: CatalogConfig{
			Backend:     strings.ToLower(strings.TrimSpace(getEnv("CATALOG_BACKEND", BackendMemory))),
			Table:       getEnv("CATALOG_TABLE", ""),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			RedisURL:    getEnv("REDIS_URL", ""),
			CacheTTL:    getEnvDuration("POOL_CACHE_TTL", 10*time.Minute),
			PoolLimit:   getEnvInt("POOL_LIMIT", 200),
			PoolOffset:  getEnvInt("POOL_OFFSET", 0),
		},
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnv("LLM_MODEL", defaultModels[provider]),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			ParamPrefix: strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Moderation:  getEnvBool("MODERATION", false),
		},
		Session: SessionConfig{
			MaxTurns:         getEnvInt("MAX_TURNS", 10),
			MaxAnswerLength:  getEnvInt("MAX_ANSWER_LENGTH", 300),
			IdleTimeout:      getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			FailedTurnPolicy: policy,
			RefetchOnReset:   getEnvBool("REFETCH_ON_RESET", false),
			TranscriptTable:  getEnv("TRANSCRIPT_TABLE", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	switch c.Catalog.Backend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.Catalog.Table == "" {
			return fmt.Errorf("CATALOG_TABLE is required for the %s backend", BackendDynamoDB)
		}
	case BackendPostgres:
		if c.Catalog.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("CATALOG_BACKEND %q is not one of memory, dynamodb, postgres", c.Catalog.Backend)
	}
	if c.Catalog.PoolLimit <= 0 {
		return fmt.Errorf("POOL_LIMIT must be > 0")
	}
	if c.Catalog.PoolOffset < 0 {
		return fmt.Errorf("POOL_OFFSET must be >= 0")
	}

	if _, ok := defaultModels[c.LLM.Provider]; !ok {
		return fmt.Errorf("LLM_PROVIDER %q is not one of openai, gemini", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.ParamPrefix == "" && c.LLM.APIKey == "" {
		return fmt.Errorf("one of PARAM_PREFIX or LLM_API_KEY is required")
	}
	if c.LLM.Moderation && c.LLM.Provider != ProviderOpenAI {
		return fmt.Errorf("MODERATION requires the %s provider", ProviderOpenAI)
	}

	if c.Session.MaxTurns <= 0 {
		return fmt.Errorf("MAX_TURNS must be > 0")
	}
	if c.Session.MaxAnswerLength <= 0 {
		return fmt.Errorf("MAX_ANSWER_LENGTH must be > 0")
	}
	return nil
}

// TokenKey is the parameter name suffix holding the provider's API token.
func (c LLMConfig) TokenKey() string {
	if c.Provider == ProviderGemini {
		return "gemini-token"
	}
	return "open-ai-token"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
