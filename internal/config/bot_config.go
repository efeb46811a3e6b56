package config

import (
	"errors"
	"fmt"
	"time"
)

// LINE API limits: https://developers.line.biz/en/reference/messaging-api/
const (
	LINEMaxMessagesPerReply   = 5
	LINEMaxTextMessageLength  = 5000
	LINEMaxPostbackDataLength = 300
)

// BotConfig holds bot processing limits.
type BotConfig struct {
	WebhookTimeout time.Duration

	// Per-user token bucket
	UserRateLimitBurst        float64 // default 15
	UserRateLimitRefillPerSec float64 // default 0.2 (1 per 5s)

	// Per-user LLM bucket (hourly refill + daily cap)
	LLMBurstTokens   float64 // default 30
	LLMRefillPerHour float64 // default 20
	LLMDailyLimit    int     // default 150, 0 = disabled

	GlobalRateLimitRPS float64 // Outgoing reply API budget (default 80)

	MaxMessagesPerReply int
	MaxEventsPerWebhook int
	MinReplyTokenLength int
	MaxMessageLength    int // Longest text (in runes) accepted for detection
	MaxPostbackDataSize int
	ChatMoreHistory     int // History entries sent to the LLM by chat-more
}

func loadBotConfig() BotConfig {
	return BotConfig{
		WebhookTimeout:            getDurationEnv(EnvWebhookTimeout, WebhookProcessing),
		UserRateLimitBurst:        getFloatEnv(EnvUserRateBurst, 15.0),
		UserRateLimitRefillPerSec: getFloatEnv(EnvUserRateRefill, 0.2),
		LLMBurstTokens:            getFloatEnv(EnvLLMRateBurst, 30.0),
		LLMRefillPerHour:          getFloatEnv(EnvLLMRateRefill, 20.0),
		LLMDailyLimit:             getIntEnv(EnvLLMRateDaily, 150),
		GlobalRateLimitRPS:        getFloatEnv(EnvGlobalRateRPS, 80.0),
		MaxMessagesPerReply:       LINEMaxMessagesPerReply,
		MaxEventsPerWebhook:       100,
		MinReplyTokenLength:       10,
		MaxMessageLength:          getIntEnv(EnvMaxTextLength, 20000),
		MaxPostbackDataSize:       LINEMaxPostbackDataLength,
		ChatMoreHistory:           5,
	}
}

// Validate checks that all limits are usable.
func (c BotConfig) Validate() error {
	var errs []error

	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("webhook timeout must be positive, got %v", c.WebhookTimeout))
	}
	if c.UserRateLimitBurst <= 0 || c.UserRateLimitRefillPerSec <= 0 {
		errs = append(errs, errors.New("user rate limit burst and refill must be positive"))
	}
	if c.LLMBurstTokens <= 0 || c.LLMRefillPerHour <= 0 {
		errs = append(errs, errors.New("llm rate limit burst and refill must be positive"))
	}
	if c.LLMDailyLimit < 0 {
		errs = append(errs, fmt.Errorf("llm daily limit cannot be negative, got %d", c.LLMDailyLimit))
	}
	if c.GlobalRateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("global rate limit must be positive, got %v", c.GlobalRateLimitRPS))
	}
	if c.MaxMessagesPerReply <= 0 || c.MaxMessagesPerReply > LINEMaxMessagesPerReply {
		errs = append(errs, fmt.Errorf("max messages per reply must be within 1..%d, got %d", LINEMaxMessagesPerReply, c.MaxMessagesPerReply))
	}
	if c.MaxEventsPerWebhook <= 0 {
		errs = append(errs, fmt.Errorf("max events per webhook must be positive, got %d", c.MaxEventsPerWebhook))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("max message length must be positive, got %d", c.MaxMessageLength))
	}
	if c.ChatMoreHistory <= 0 {
		errs = append(errs, fmt.Errorf("chat more history must be positive, got %d", c.ChatMoreHistory))
	}

	return errors.Join(errs...)
}
