package config

import (
	"strings"
	"testing"
)

func TestLoadBotConfigDefaults(t *testing.T) {
	cfg := loadBotConfig()

	if cfg.WebhookTimeout != WebhookProcessing {
		t.Errorf("expected WebhookTimeout %v, got %v", WebhookProcessing, cfg.WebhookTimeout)
	}
	if cfg.MaxMessagesPerReply != LINEMaxMessagesPerReply {
		t.Errorf("expected MaxMessagesPerReply %d, got %d", LINEMaxMessagesPerReply, cfg.MaxMessagesPerReply)
	}
	if cfg.ChatMoreHistory != 5 {
		t.Errorf("expected ChatMoreHistory 5, got %d", cfg.ChatMoreHistory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestBotConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*BotConfig)
		errContains string
	}{
		{"negative daily limit", func(c *BotConfig) { c.LLMDailyLimit = -1 }, "daily limit"},
		{"zero global rps", func(c *BotConfig) { c.GlobalRateLimitRPS = 0 }, "global rate limit"},
		{"zero user burst", func(c *BotConfig) { c.UserRateLimitBurst = 0 }, "user rate limit"},
		{"zero message length", func(c *BotConfig) { c.MaxMessageLength = 0 }, "max message length"},
		{"zero chat history", func(c *BotConfig) { c.ChatMoreHistory = 0 }, "chat more history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadBotConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}
