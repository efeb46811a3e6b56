package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(EnvLineChannelAccessToken, "test_token")
	t.Setenv(EnvLineChannelSecret, "test_secret")
}

func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LineChannelToken != "test_token" {
		t.Errorf("Expected token 'test_token', got '%s'", cfg.LineChannelToken)
	}
	if cfg.LineChannelSecret != "test_secret" {
		t.Errorf("Expected secret 'test_secret', got '%s'", cfg.LineChannelSecret)
	}

	// Defaults
	if cfg.Port != "5080" {
		t.Errorf("Expected default port '5080', got '%s'", cfg.Port)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("Expected default model gpt-4o-mini, got %s", cfg.OpenAIModel)
	}
	if cfg.LLMTimeout != 5*time.Second {
		t.Errorf("Expected LLM timeout 5s, got %v", cfg.LLMTimeout)
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("Expected history limit 100, got %d", cfg.HistoryLimit)
	}
	if cfg.DedupWindow != 60*time.Second {
		t.Errorf("Expected dedup window 60s, got %v", cfg.DedupWindow)
	}
	if cfg.SessionDBPath != ":memory:" {
		t.Errorf("Expected in-memory session store, got %s", cfg.SessionDBPath)
	}
	if cfg.HasLLMProvider() {
		t.Error("HasLLMProvider() should be false without API keys")
	}
}

func TestLoad_LegacyChannelSecret(t *testing.T) {
	t.Setenv(EnvLineChannelAccessToken, "token")
	t.Setenv(EnvChannelSecretLegacy, "legacy_secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.LineChannelSecret != "legacy_secret" {
		t.Errorf("Expected CHANNEL_SECRET fallback, got %q", cfg.LineChannelSecret)
	}
}

func TestLoad_DebugRaisesLogLevel(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvDebug, "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvPort, "8080")
	t.Setenv(EnvGeminiAPIKey, "g-key")
	t.Setenv(EnvLLMProvider, "Gemini")
	t.Setenv(EnvLLMTimeout, "3s")
	t.Setenv(EnvRuleShortCircuit, "1")
	t.Setenv(EnvHistoryLimit, "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != "8080" || cfg.LLMProvider != ProviderGemini || cfg.LLMTimeout != 3*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if !cfg.RuleShortCircuit {
		t.Error("RuleShortCircuit should be true")
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.HistoryLimit)
	}
	if !cfg.HasLLMProvider() {
		t.Error("HasLLMProvider() should be true with Gemini key")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LineChannelToken:  "t",
			LineChannelSecret: "s",
			Port:              "5080",
			LLMProvider:       ProviderOpenAI,
			LLMTimeout:        time.Second,
			SessionDBPath:     ":memory:",
			HistoryLimit:      100,
			DedupWindow:       time.Minute,
			SentrySampleRate:  1,
			Bot:               loadBotConfig(),
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.LineChannelToken = "" }, errContains: EnvLineChannelAccessToken},
		{name: "missing secret", mutate: func(c *Config) { c.LineChannelSecret = "" }, errContains: EnvLineChannelSecret},
		{name: "unknown provider", mutate: func(c *Config) { c.LLMProvider = "groq" }, errContains: EnvLLMProvider},
		{name: "zero timeout", mutate: func(c *Config) { c.LLMTimeout = 0 }, errContains: EnvLLMTimeout},
		{name: "r2 key without r2", mutate: func(c *Config) { c.RulesR2Key = "rules.yaml" }, errContains: EnvRulesR2Key},
		{name: "zero history", mutate: func(c *Config) { c.HistoryLimit = 0 }, errContains: EnvHistoryLimit},
		{name: "zero dedup window", mutate: func(c *Config) { c.DedupWindow = 0 }, errContains: EnvWebhookDedupWindow},
		{name: "sentry without host", mutate: func(c *Config) { c.SentryToken = "x" }, errContains: EnvSentryHost},
		{name: "bot config", mutate: func(c *Config) { c.Bot.MaxMessagesPerReply = 6 }, errContains: "bot config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestR2Enabled(t *testing.T) {
	cfg := &Config{R2Endpoint: "https://x.r2.cloudflarestorage.com", R2AccessKeyID: "a", R2SecretAccessKey: "b"}
	if cfg.R2Enabled() {
		t.Error("R2Enabled() should be false without bucket")
	}
	cfg.R2BucketName = "rules"
	if !cfg.R2Enabled() {
		t.Error("R2Enabled() should be true")
	}
}
