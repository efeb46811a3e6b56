// Package detect implements the catch-all bot module: every text that is not
// a command of another module is classified into a scam stage.
package detect

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/garyellow/scamguard-linebot-go/internal/bot"
	"github.com/garyellow/scamguard-linebot-go/internal/ctxutil"
	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	"github.com/garyellow/scamguard-linebot-go/internal/genai"
	"github.com/garyellow/scamguard-linebot-go/internal/lineutil"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
	"github.com/garyellow/scamguard-linebot-go/internal/ratelimit"
)

// ModuleName identifies this module in logs.
const ModuleName = "detect"

// Command aliases.
var (
	resetCommands  = []string{"下一段偵測", lineutil.CmdNextDetection}
	openAICommands = []string{"使用 OpenAI", lineutil.CmdUseOpenAI}
	geminiCommands = []string{"使用 Gemini", lineutil.CmdUseGemini}
)

// Detector is the subset of *detection.Detector used here.
type Detector interface {
	Detect(ctx context.Context, text string, opts detection.Options) detection.DetectionResult
	DetectRules(text string) detection.DetectionResult
	WillUseLLM(text string) bool
}

// SessionStore is the subset of *storage.DB used here.
type SessionStore interface {
	Reset(ctx context.Context, userID string) error
	AppendHistory(ctx context.Context, userID, content string) error
	SaveResult(ctx context.Context, userID string, result *detection.DetectionResult) error
	SetProvider(ctx context.Context, userID, provider string) error
	Provider(ctx context.Context, userID string) (string, error)
}

// ProviderChecker reports which LLM providers are configured.
type ProviderChecker interface {
	Available(p genai.Provider) bool
}

// Handler handles detection, session reset and provider switching.
type Handler struct {
	detector   Detector
	store      SessionStore
	providers  ProviderChecker
	llmLimiter *ratelimit.KeyedLimiter
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// NewHandler creates a detect handler. providers and llmLimiter may be nil.
func NewHandler(detector Detector, store SessionStore, providers ProviderChecker, llmLimiter *ratelimit.KeyedLimiter, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		detector:   detector,
		store:      store,
		providers:  providers,
		llmLimiter: llmLimiter,
		metrics:    m,
		logger:     log.WithModule(ModuleName),
	}
}

// Name returns the module name.
func (h *Handler) Name() string { return ModuleName }

// CanHandle accepts every text; register this handler last.
func (h *Handler) CanHandle(string) bool { return true }

// PostbackPrefix returns empty; detection has no postbacks.
func (h *Handler) PostbackPrefix() string { return "" }

// HandlePostback is never reached.
func (h *Handler) HandlePostback(context.Context, string) []messaging_api.MessageInterface {
	return nil
}

// HandleMessage routes commands, otherwise runs detection.
func (h *Handler) HandleMessage(ctx context.Context, text string) []messaging_api.MessageInterface {
	switch {
	case bot.MatchCommand(text, resetCommands...):
		return h.handleReset(ctx)
	case bot.MatchCommand(text, openAICommands...):
		return h.handleSwitchProvider(ctx, genai.ProviderOpenAI)
	case bot.MatchCommand(text, geminiCommands...):
		return h.handleSwitchProvider(ctx, genai.ProviderGemini)
	default:
		return h.handleDetect(ctx, text)
	}
}

func (h *Handler) handleReset(ctx context.Context) []messaging_api.MessageInterface {
	userID := ctxutil.GetUserID(ctx)
	if err := h.store.Reset(ctx, userID); err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to reset session")
		h.metrics.RecordHTTPError("storage", ModuleName)
	}
	return []messaging_api.MessageInterface{lineutil.NewResetMessage()}
}

func (h *Handler) handleSwitchProvider(ctx context.Context, p genai.Provider) []messaging_api.MessageInterface {
	if h.providers == nil || !h.providers.Available(p) {
		return reply(fmt.Sprintf("⚠️ 尚未設定 %s，無法切換。\n目前將繼續使用規則引擎或其他可用的 AI 服務。", p.DisplayName()))
	}

	if err := h.store.SetProvider(ctx, ctxutil.GetUserID(ctx), p.String()); err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to save provider")
		h.metrics.RecordHTTPError("storage", ModuleName)
		return reply(bot.MsgInternalError)
	}

	h.logger.WithField("provider", p).InfoContext(ctx, "Provider switched")
	return reply(fmt.Sprintf("✅ 已切換為 %s 進行分析。", p.DisplayName()))
}

func (h *Handler) handleDetect(ctx context.Context, text string) []messaging_api.MessageInterface {
	userID := ctxutil.GetUserID(ctx)

	if err := h.store.AppendHistory(ctx, userID, text); err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to append history")
		h.metrics.RecordHTTPError("storage", ModuleName)
	}

	preferred, err := h.store.Provider(ctx, userID)
	if err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to load provider preference")
	}

	var (
		res   detection.DetectionResult
		extra []messaging_api.MessageInterface
	)
	switch decision := h.takeLLM(userID, text); decision {
	case ratelimit.Allowed:
		res = h.detector.Detect(ctx, text, detection.Options{Provider: preferred})
	default:
		h.logger.WithField("user_id", bot.TruncateID(userID)).WarnContext(ctx, "LLM rate limit exceeded, using rules only")
		res = h.detector.DetectRules(text)
		res.Rationale[detection.KeyLLM] = "rate_limited"
		extra = append(extra, lineutil.NewTextMessage(rateLimitText(decision)))
	}

	if err := h.store.SaveResult(ctx, userID, &res); err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to save result")
		h.metrics.RecordHTTPError("storage", ModuleName)
	}

	return append([]messaging_api.MessageInterface{lineutil.NewDetectionMessage(&res)}, extra...)
}

// takeLLM consumes one LLM token only when the LLM tier would run for text.
func (h *Handler) takeLLM(userID, text string) ratelimit.Decision {
	if h.llmLimiter == nil || !h.detector.WillUseLLM(text) {
		return ratelimit.Allowed
	}
	return h.llmLimiter.Take(userID)
}

func rateLimitText(d ratelimit.Decision) string {
	if d == ratelimit.DailyExhausted {
		return "⏳ 今日 AI 分析次數已達上限，本次僅使用規則引擎判斷。"
	}
	return "⏳ AI 分析過於頻繁，本次僅使用規則引擎判斷。"
}

func reply(text string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(text, lineutil.CommonQuickReplies()...),
	}
}
