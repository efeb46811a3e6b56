// Package genai talks to hosted LLMs (OpenAI and Gemini) for stage
// classification and free-form replies.
//
// Fallback strategy:
//  1. Retry the same provider with full-jitter backoff on transient errors.
//  2. Move to the next configured provider.
//
// The caller's preferred provider is always tried first.
package genai

import (
	"context"
	"strings"
	"time"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
)

// Provider represents an LLM provider.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// providerOrder is the fixed fallback order.
var providerOrder = []Provider{ProviderOpenAI, ProviderGemini}

// ParseProvider maps a user-facing name ("OpenAI", "gemini") to a Provider.
func ParseProvider(name string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(name))) {
	case ProviderOpenAI:
		return ProviderOpenAI, true
	case ProviderGemini:
		return ProviderGemini, true
	default:
		return "", false
	}
}

// DisplayName is the brand name shown to users.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderGemini:
		return "Gemini"
	default:
		return string(p)
	}
}

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// StageClassifier returns a scam-stage verdict for text.
type StageClassifier interface {
	Classify(ctx context.Context, text string) (*detection.Classification, error)
	Provider() Provider
	Close() error
}

// ChatModel produces a free-form reply to a single user prompt.
type ChatModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Provider() Provider
	Close() error
}

// Backend is one provider able to do both jobs.
type Backend interface {
	StageClassifier
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetryConfig defines retry behavior for LLM API calls.
type RetryConfig struct {
	// MaxAttempts includes the initial call. Default: 2.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Config holds credentials and models for all providers. A provider with
// an empty API key is disabled.
type Config struct {
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	Retry RetryConfig
}

// Defaults
const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash"

	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 250 * time.Millisecond
	DefaultMaxRetryDelay     = 2 * time.Second

	classifyTemperature = 0.1
	chatTemperature     = 0.7
	classifyMaxTokens   = 200
	chatMaxTokens       = 800
)

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

// HasAnyProvider reports whether at least one API key is set.
func (c Config) HasAnyProvider() bool {
	return c.OpenAIAPIKey != "" || c.GeminiAPIKey != ""
}
