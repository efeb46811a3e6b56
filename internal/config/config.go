// Package config provides application configuration management.
// It loads settings from environment variables (optionally from a .env file)
// and validates them before the server starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported LLM provider names for LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIModel   string // default: gpt-4o-mini
	OpenAIBaseURL string // empty = official endpoint

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Detection
	LLMProvider       string        // Default preferred provider for new users
	LLMTimeout        time.Duration // Per-call classification timeout
	RuleShortCircuit  bool          // Skip the LLM when a regex pattern already matched
	RulesFile         string        // Optional YAML rule dictionary on disk
	RulesR2Key        string        // Optional rule dictionary object key in R2
	RulesRefreshEvery time.Duration // 0 disables periodic rule reload

	// R2 (Cloudflare, S3-compatible)
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Session
	SessionDBPath string // default ":memory:"
	HistoryLimit  int    // Per-user chat history cap

	// Webhook
	DedupWindow time.Duration // webhookEventId de-dup window

	// Sentry (Better Stack Errors)
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64

	// Better Stack Logs
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // empty = no auth

	// Server Configuration
	Port            string
	LogLevel        string
	Debug           bool
	ShutdownTimeout time.Duration

	Bot BotConfig
}

// Load reads configuration from environment variables.
// It attempts to load .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, getEnv(EnvChannelSecretLegacy, "")),

		OpenAIAPIKey:  getEnv(EnvOpenAIAPIKey, ""),
		OpenAIModel:   getEnv(EnvOpenAIModel, "gpt-4o-mini"),
		OpenAIBaseURL: getEnv(EnvOpenAIBaseURL, ""),

		GeminiAPIKey: getEnv(EnvGeminiAPIKey, ""),
		GeminiModel:  getEnv(EnvGeminiModel, "gemini-2.5-flash"),

		LLMProvider:       strings.ToLower(getEnv(EnvLLMProvider, ProviderOpenAI)),
		LLMTimeout:        getDurationEnv(EnvLLMTimeout, LLMClassification),
		RuleShortCircuit:  getBoolEnv(EnvRuleShortCircuit, false),
		RulesFile:         getEnv(EnvRulesFile, ""),
		RulesR2Key:        getEnv(EnvRulesR2Key, ""),
		RulesRefreshEvery: getDurationEnv(EnvRulesRefreshInterval, 0),

		R2Endpoint:        getEnv(EnvR2Endpoint, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),

		SessionDBPath: getEnv(EnvSessionDBPath, ":memory:"),
		HistoryLimit:  getIntEnv(EnvHistoryLimit, 100),

		DedupWindow: getDurationEnv(EnvWebhookDedupWindow, WebhookDedupWindow),

		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		Port:            getEnv(EnvPort, "5080"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		Debug:           getBoolEnv(EnvDebug, false),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		Bot: loadBotConfig(),
	}

	if cfg.Debug && os.Getenv(EnvLogLevel) == "" {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.LineChannelToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelAccessToken))
	}
	if c.LineChannelSecret == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelSecret))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if !slices.Contains([]string{ProviderOpenAI, ProviderGemini}, c.LLMProvider) {
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvLLMProvider, ProviderOpenAI, ProviderGemini, c.LLMProvider))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvLLMTimeout, c.LLMTimeout))
	}
	if c.RulesRefreshEvery < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvRulesRefreshInterval, c.RulesRefreshEvery))
	}
	if c.RulesR2Key != "" && !c.R2Enabled() {
		errs = append(errs, fmt.Errorf("%s requires R2_ENDPOINT, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME", EnvRulesR2Key))
	}
	if c.SessionDBPath == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvSessionDBPath))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvHistoryLimit, c.HistoryLimit))
	}
	if c.DedupWindow <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvWebhookDedupWindow, c.DedupWindow))
	}
	if c.SentryToken != "" && c.SentryHost == "" {
		errs = append(errs, fmt.Errorf("%s is required when %s is set", EnvSentryHost, EnvSentryToken))
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", EnvSentrySampleRate, c.SentrySampleRate))
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	return errors.Join(errs...)
}

// HasLLMProvider returns true if at least one LLM provider is configured.
func (c *Config) HasLLMProvider() bool {
	return c.OpenAIAPIKey != "" || c.GeminiAPIKey != ""
}

// R2Enabled reports whether all R2 connection settings are present.
func (c *Config) R2Enabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv accepts anything strconv.ParseBool does.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
