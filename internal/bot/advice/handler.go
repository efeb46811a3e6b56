// Package advice answers follow-up requests about the last detection:
// why it was classified that way, how to protect oneself, and a free-form
// continuation of the recent conversation.
package advice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/garyellow/scamguard-linebot-go/internal/bot"
	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/ctxutil"
	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
	"github.com/garyellow/scamguard-linebot-go/internal/genai"
	"github.com/garyellow/scamguard-linebot-go/internal/lineutil"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/ratelimit"
)

// ModuleName identifies this module in logs.
const ModuleName = "advice"

// PostbackPrefix is shared with the detection bubble buttons.
const PostbackPrefix = "action="

// Postback actions.
const (
	ActionExplain = "explain"
	ActionPrevent = "prevent"
)

var chatMoreCommands = []string{"聊聊更多", lineutil.CmdChatMore}

// Replies.
const (
	MsgNoResult      = "抱歉，請您先傳送一段對話，我才能為您分析並提供判斷依據或防範建議。"
	MsgNoHistory     = "目前沒有聊天紀錄可以延伸喔！"
	MsgChatMoreError = "抱歉，目前無法提供更多對話。請確認 OpenAI API Key 或配額是否正常。"
	msgFallbackNote  = "（AI 暫時無法使用，以下為規則引擎的說明）"
)

// SessionStore is the subset of *storage.DB used here.
type SessionStore interface {
	LastResult(ctx context.Context, userID string) (*detection.DetectionResult, error)
	RecentHistory(ctx context.Context, userID string, n int) ([]string, error)
	Provider(ctx context.Context, userID string) (string, error)
}

// ChatModel produces free-form replies; *genai.Router implements it.
type ChatModel interface {
	Complete(ctx context.Context, prompt string, preferred genai.Provider) (string, genai.Provider, error)
}

// Config wires a Handler.
type Config struct {
	Store SessionStore

	// Chat is optional; without it explain/prevent use the rule text and
	// chat-more is unavailable.
	Chat ChatModel

	LLMLimiter *ratelimit.KeyedLimiter // optional
	Logger     *logger.Logger

	// HistorySize is how many history entries chat-more sends. Default 5.
	HistorySize int
	// Timeout bounds each LLM call. Default config.LLMConversation.
	Timeout time.Duration
}

// Handler implements bot.Handler.
type Handler struct {
	store       SessionStore
	chat        ChatModel
	llmLimiter  *ratelimit.KeyedLimiter
	logger      *logger.Logger
	historySize int
	timeout     time.Duration
}

// NewHandler creates an advice handler.
func NewHandler(cfg Config) *Handler {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.LLMConversation
	}
	return &Handler{
		store:       cfg.Store,
		chat:        cfg.Chat,
		llmLimiter:  cfg.LLMLimiter,
		logger:      cfg.Logger.WithModule(ModuleName),
		historySize: cfg.HistorySize,
		timeout:     cfg.Timeout,
	}
}

// Name returns the module name.
func (h *Handler) Name() string { return ModuleName }

// CanHandle matches the chat-more command.
func (h *Handler) CanHandle(text string) bool {
	return bot.MatchCommand(text, chatMoreCommands...)
}

// PostbackPrefix returns the owned postback prefix.
func (h *Handler) PostbackPrefix() string { return PostbackPrefix }

// HandleMessage continues the conversation from recent history.
func (h *Handler) HandleMessage(ctx context.Context, _ string) []messaging_api.MessageInterface {
	userID := ctxutil.GetUserID(ctx)

	history, err := h.store.RecentHistory(ctx, userID, h.historySize)
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to load history")
		return reply(bot.MsgInternalError)
	}
	if len(history) == 0 {
		return reply(MsgNoHistory)
	}

	answer, err := h.complete(ctx, userID, genai.ChatMorePrompt(history))
	if err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Chat more failed")
		return reply(MsgChatMoreError)
	}

	// Replies stay out of history; it holds user messages only.
	return reply(answer)
}

// HandlePostback answers explain and prevent requests. data has the
// "action=" prefix removed.
func (h *Handler) HandlePostback(ctx context.Context, data string) []messaging_api.MessageInterface {
	action, _, _ := strings.Cut(data, "&")
	if action != ActionExplain && action != ActionPrevent {
		return nil
	}

	userID := ctxutil.GetUserID(ctx)
	res, err := h.store.LastResult(ctx, userID)
	if errors.Is(err, domerrors.ErrNotFound) {
		return reply(MsgNoResult)
	}
	if err != nil {
		h.logger.WithError(err).ErrorContext(ctx, "Failed to load last result")
		return reply(bot.MsgInternalError)
	}

	stageName, _ := detection.StageInfo(res.Stage)
	triggers := detection.TriggerText(res.Labels)

	prompt := genai.ExplainPrompt(res.Stage, stageName, triggers)
	if action == ActionPrevent {
		prompt = genai.PreventPrompt(res.Stage, stageName, triggers)
	}

	answer, err := h.complete(ctx, userID, prompt)
	if err != nil {
		h.logger.WithError(err).WithField("action", action).WarnContext(ctx, "LLM advice failed, using rule text")
		if action == ActionPrevent {
			return reply(msgFallbackNote + "\n\n" + PreventText(res))
		}
		return reply(msgFallbackNote + "\n\n" + ExplainText(res))
	}
	return reply(answer)
}

// complete runs one LLM call with the user's preferred provider.
func (h *Handler) complete(ctx context.Context, userID, prompt string) (string, error) {
	if h.chat == nil {
		return "", domerrors.ErrLLMUnavailable
	}
	if h.llmLimiter != nil && !h.llmLimiter.Allow(userID) {
		return "", domerrors.ErrRateLimitExceeded
	}

	preferred, err := h.store.Provider(ctx, userID)
	if err != nil {
		h.logger.WithError(err).WarnContext(ctx, "Failed to load provider preference")
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	answer, provider, err := h.chat.Complete(callCtx, prompt, genai.Provider(preferred))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%s: %w", provider, domerrors.ErrMalformedResponse)
	}
	return answer, nil
}

func reply(text string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(text, lineutil.CommonQuickReplies()...),
	}
}
