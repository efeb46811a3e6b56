package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Core (Required)
	EnvLineChannelAccessToken = "LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "LINE_CHANNEL_SECRET"
	EnvChannelSecretLegacy    = "CHANNEL_SECRET"

	// Server
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvDebug           = "DEBUG"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	// LLM
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIModel   = "OPENAI_MODEL"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvGeminiModel   = "GEMINI_MODEL"
	EnvLLMProvider   = "LLM_PROVIDER"
	EnvLLMTimeout    = "LLM_TIMEOUT"

	// Detection rules
	EnvRuleShortCircuit     = "DETECTION_RULE_SHORT_CIRCUIT"
	EnvRulesFile            = "RULES_FILE"
	EnvRulesR2Key           = "RULES_R2_KEY"
	EnvRulesRefreshInterval = "RULES_REFRESH_INTERVAL"

	// R2
	EnvR2Endpoint        = "R2_ENDPOINT"
	EnvR2AccessKeyID     = "R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "R2_BUCKET_NAME"

	// Session / webhook
	EnvSessionDBPath      = "SESSION_DB_PATH"
	EnvHistoryLimit       = "HISTORY_LIMIT"
	EnvWebhookDedupWindow = "WEBHOOK_DEDUP_WINDOW"
	EnvWebhookTimeout     = "WEBHOOK_TIMEOUT"

	// Rate Limits
	EnvGlobalRateRPS  = "BOT_GLOBAL_RATE_RPS"
	EnvUserRateBurst  = "BOT_USER_RATE_BURST"
	EnvUserRateRefill = "BOT_USER_RATE_REFILL"
	EnvLLMRateBurst   = "BOT_LLM_RATE_BURST"
	EnvLLMRateRefill  = "BOT_LLM_RATE_REFILL_PER_HOUR"
	EnvLLMRateDaily   = "BOT_LLM_RATE_DAILY"
	EnvMaxTextLength  = "BOT_MAX_TEXT_LENGTH"

	// Sentry
	EnvSentryToken       = "SENTRY_DSN_TOKEN"
	EnvSentryHost        = "SENTRY_HOST"
	EnvSentryEnvironment = "SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "SENTRY_SAMPLE_RATE"

	// Better Stack
	EnvBetterStackToken    = "BETTERSTACK_SOURCE_TOKEN"
	EnvBetterStackEndpoint = "BETTERSTACK_ENDPOINT"

	// Metrics Auth
	EnvMetricsUsername = "METRICS_USERNAME"
	EnvMetricsPassword = "METRICS_PASSWORD"
)
