package config

import "time"

// Webhook timeouts
//
// LINE expects a quick 200 OK, so events are processed after the response is
// written. The loading animation lasts up to 60s, which bounds processing.
const (
	// WebhookProcessing bounds handling of a single event, including the LLM call.
	WebhookProcessing = 60 * time.Second

	// WebhookHTTPRead is short since LINE sends small JSON payloads.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite covers the synchronous /api/v1/detect path.
	WebhookHTTPWrite = 65 * time.Second

	WebhookHTTPIdle = 120 * time.Second

	// WebhookDedupWindow is how long a webhookEventId is remembered.
	WebhookDedupWindow = 60 * time.Second
)

// LLM timeouts
const (
	// LLMClassification is the per-call timeout for stage classification.
	LLMClassification = 5 * time.Second

	// LLMConversation bounds chat-more, explain and prevent replies.
	LLMConversation = 20 * time.Second
)

// Background job intervals
const (
	// RateLimiterCleanupInterval is how often inactive per-user limiters are removed.
	RateLimiterCleanupInterval = 5 * time.Minute

	// RuleReloadTimeout bounds a single rule dictionary fetch.
	RuleReloadTimeout = 30 * time.Second

	// ReadinessCheckTimeout bounds the /readyz database ping.
	ReadinessCheckTimeout = 3 * time.Second
)

// GracefulShutdown allows in-flight requests to complete before forceful termination.
const GracefulShutdown = 30 * time.Second
