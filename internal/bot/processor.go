package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/ctxutil"
	"github.com/garyellow/scamguard-linebot-go/internal/lineutil"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
	"github.com/garyellow/scamguard-linebot-go/internal/ratelimit"
)

// Processor handles the core logic of processing LINE events.
// It orchestrates rate limiting, input validation and dispatching to handlers.
type Processor struct {
	registry    *Registry
	userLimiter *ratelimit.KeyedLimiter
	logger      *logger.Logger
	metrics     *metrics.Metrics

	webhookTimeout   time.Duration
	maxMessageLength int
	maxPostbackSize  int
}

// ProcessorConfig holds configuration for creating a new Processor.
type ProcessorConfig struct {
	Registry    *Registry
	UserLimiter *ratelimit.KeyedLimiter // optional
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	BotConfig   *config.BotConfig
}

// NewProcessor creates a new event processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		registry:         cfg.Registry,
		userLimiter:      cfg.UserLimiter,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		webhookTimeout:   cfg.BotConfig.WebhookTimeout,
		maxMessageLength: cfg.BotConfig.MaxMessageLength,
		maxPostbackSize:  cfg.BotConfig.MaxPostbackDataSize,
	}
}

// withSource injects chat and user IDs for downstream handlers and logs.
func withSource(ctx context.Context, source webhook.SourceInterface) context.Context {
	ctx = ctxutil.WithChatID(ctx, GetChatID(source))
	return ctxutil.WithUserID(ctx, SessionKey(source))
}

// ProcessMessage handles a message event.
func (p *Processor) ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error) {
	ctx = withSource(ctx, event.Source)
	personal := IsPersonalChat(event.Source)

	textMsg, ok := event.Message.(webhook.TextMessageContent)
	if !ok {
		// Images, stickers and files cannot be analysed.
		if personal {
			return []messaging_api.MessageInterface{
				lineutil.NewTextMessageWithQuickReply(MsgTextOnly, lineutil.CommonQuickReplies()...),
			}, nil
		}
		return nil, nil
	}

	text := textMsg.Text
	if !personal {
		// Groups are noisy; only explicit @mentions are analysed.
		if !isBotMentioned(textMsg) {
			return nil, nil
		}
		text = stripBotMentions(text, textMsg.Mention)
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if allowed, msgs := p.checkUserRateLimit(ctx, personal); !allowed {
		return msgs, nil
	}

	if n := utf8.RuneCountInString(text); n > p.maxMessageLength {
		p.logger.WithField("length", n).WarnContext(ctx, "Text message too long")
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithQuickReply(fmt.Sprintf(MsgTooLong, p.maxMessageLength), lineutil.CommonQuickReplies()...),
		}, nil
	}

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), p.webhookTimeout)
	defer cancel()

	msgs := p.registry.DispatchMessage(processCtx, text)
	if errors.Is(processCtx.Err(), context.DeadlineExceeded) {
		p.metrics.RecordHTTPError("timeout", "processor")
	}
	return msgs, nil
}

// ProcessPostback handles a postback event.
func (p *Processor) ProcessPostback(ctx context.Context, event webhook.PostbackEvent) ([]messaging_api.MessageInterface, error) {
	ctx = withSource(ctx, event.Source)

	var data string
	if event.Postback != nil {
		data = strings.TrimSpace(event.Postback.Data)
	}
	if data == "" {
		p.logger.WarnContext(ctx, "Empty postback data")
		return nil, nil
	}
	if len(data) > p.maxPostbackSize {
		p.logger.WithField("size", len(data)).WarnContext(ctx, "Postback data too long")
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithQuickReply(MsgPostbackTooLong, lineutil.CommonQuickReplies()...),
		}, nil
	}

	pb, err := ParsePostback(data)
	if err != nil {
		p.logger.WithError(err).WithField("data", data).WarnContext(ctx, "Malformed postback")
		return p.invalidPostback(), nil
	}
	p.logger.WithField("action", pb.Action).DebugContext(ctx, "Received postback")

	if allowed, msgs := p.checkUserRateLimit(ctx, IsPersonalChat(event.Source)); !allowed {
		return msgs, nil
	}

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), p.webhookTimeout)
	defer cancel()

	if msgs := p.registry.DispatchPostback(processCtx, data); len(msgs) > 0 {
		return msgs, nil
	}
	return p.invalidPostback(), nil
}

// ProcessFollow greets a user who added the bot.
func (p *Processor) ProcessFollow(ctx context.Context, event webhook.FollowEvent) ([]messaging_api.MessageInterface, error) {
	ctx = withSource(ctx, event.Source)
	p.logger.InfoContext(ctx, "New user followed the bot")

	return []messaging_api.MessageInterface{
		lineutil.NewTextMessage(MsgWelcome),
		lineutil.NewTextMessageWithQuickReply(MsgDisclaimer, lineutil.CommonQuickReplies()...),
	}, nil
}

func (p *Processor) invalidPostback() []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(MsgPostbackInvalid, lineutil.CommonQuickReplies()...),
	}
}

// checkUserRateLimit applies the per-user bucket. Groups are throttled silently.
func (p *Processor) checkUserRateLimit(ctx context.Context, personal bool) (bool, []messaging_api.MessageInterface) {
	if p.userLimiter == nil {
		return true, nil
	}

	key := ctxutil.GetUserID(ctx)
	if p.userLimiter.Allow(key) {
		return true, nil
	}

	p.logger.WithField("user_id", TruncateID(key)).WarnContext(ctx, "User rate limit exceeded")
	if !personal {
		return false, nil
	}
	return false, []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(MsgRateLimited, lineutil.CommonQuickReplies()...),
	}
}
