// Package webhook receives LINE webhook callbacks and replies to each event
// through the Messaging API.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/garyellow/scamguard-linebot-go/internal/bot"
	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/ctxutil"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
	"github.com/garyellow/scamguard-linebot-go/internal/ratelimit"
	"github.com/garyellow/scamguard-linebot-go/internal/sentry"
)

// loadingSeconds is the LINE maximum and matches config.WebhookProcessing.
const loadingSeconds int32 = 60

// EventProcessor turns a webhook event into reply messages.
// *bot.Processor implements it.
type EventProcessor interface {
	ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error)
	ProcessPostback(ctx context.Context, event webhook.PostbackEvent) ([]messaging_api.MessageInterface, error)
	ProcessFollow(ctx context.Context, event webhook.FollowEvent) ([]messaging_api.MessageInterface, error)
}

// Handler handles LINE webhook events
type Handler struct {
	channelSecret string
	client        *messaging_api.MessagingApiAPI
	metrics       *metrics.Metrics
	logger        *logger.Logger
	processor     EventProcessor
	rateLimiter   *ratelimit.Limiter // Global budget for reply API calls
	dedup         *eventCache
	wg            sync.WaitGroup

	maxMessagesPerReply int
	maxEventsPerWebhook int
	minReplyTokenLength int
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	ChannelSecret string
	ChannelToken  string

	// APIEndpoint overrides the Messaging API base URL. Empty uses LINE's.
	APIEndpoint string

	// DedupWindow is how long event IDs are remembered. Default
	// config.WebhookDedupWindow.
	DedupWindow time.Duration

	BotConfig *config.BotConfig
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	Processor EventProcessor
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	var opts []messaging_api.MessagingApiAPIOption
	if cfg.APIEndpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(cfg.APIEndpoint))
	}
	client, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}

	window := cfg.DedupWindow
	if window == 0 {
		window = config.WebhookDedupWindow
	}

	rps := cfg.BotConfig.GlobalRateLimitRPS
	return &Handler{
		channelSecret:       cfg.ChannelSecret,
		client:              client,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.WithModule("webhook"),
		processor:           cfg.Processor,
		rateLimiter:         ratelimit.New(rps, rps),
		dedup:               newEventCache(window),
		maxMessagesPerReply: cfg.BotConfig.MaxMessagesPerReply,
		maxEventsPerWebhook: cfg.BotConfig.MaxEventsPerWebhook,
		minReplyTokenLength: cfg.BotConfig.MinReplyTokenLength,
	}, nil
}

// Handle is the Gin handler for the webhook endpoint.
//
// The signature is verified synchronously; a bad signature yields 403 and a
// malformed body 400. Valid callbacks are acknowledged with 200 at once and
// their events processed in the background, in order.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("Invalid webhook signature")
			h.metrics.RecordHTTPError("invalid_signature", "webhook")
			c.Status(http.StatusForbidden)
			return
		}
		h.logger.WithError(err).Warn("Failed to parse webhook request")
		h.metrics.RecordHTTPError("bad_request", "webhook")
		c.Status(http.StatusBadRequest)
		return
	}

	c.Status(http.StatusOK)

	events := cb.Events
	if len(events) > h.maxEventsPerWebhook {
		h.logger.WithField("event_count", len(events)).
			WithField("limit", h.maxEventsPerWebhook).
			Warn("Too many events in webhook batch; truncating")
		events = events[:h.maxEventsPerWebhook]
	}
	if len(events) == 0 {
		// LINE console "Verify" sends an empty batch.
		return
	}

	// Copy events to avoid a race after the HTTP response completes.
	events = append([]webhook.EventInterface(nil), events...)
	start := time.Now()

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).Error("Panic in async event processing")
				sentry.CaptureException(fmt.Errorf("webhook panic: %v", r))
			}
		}()

		for _, event := range events {
			h.processEvent(context.Background(), event, start)
		}
	})
}

// eventMeta is the metadata shared by all replyable events.
type eventMeta struct {
	id         string
	timestamp  int64
	redelivery bool
	replyToken string
	source     webhook.SourceInterface
}

func extractEventMeta(event webhook.EventInterface) (eventMeta, bool) {
	var m eventMeta
	var dc *webhook.DeliveryContext
	switch e := event.(type) {
	case webhook.MessageEvent:
		m = eventMeta{e.WebhookEventId, e.Timestamp, false, e.ReplyToken, e.Source}
		dc = e.DeliveryContext
	case webhook.PostbackEvent:
		m = eventMeta{e.WebhookEventId, e.Timestamp, false, e.ReplyToken, e.Source}
		dc = e.DeliveryContext
	case webhook.FollowEvent:
		m = eventMeta{e.WebhookEventId, e.Timestamp, false, e.ReplyToken, e.Source}
		dc = e.DeliveryContext
	default:
		return m, false
	}
	if dc != nil {
		m.redelivery = dc.IsRedelivery
	}
	return m, true
}

// processEvent handles a single webhook event.
func (h *Handler) processEvent(ctx context.Context, event webhook.EventInterface, batchStart time.Time) {
	meta, ok := extractEventMeta(event)
	if !ok {
		h.logger.WithField("event_type", fmt.Sprintf("%T", event)).Debug("Unsupported event type")
		return
	}

	log := h.logger
	if meta.id != "" {
		ctx = ctxutil.WithEventID(ctx, meta.id)
		ctx = ctxutil.WithRequestID(ctx, meta.id)
		log = log.WithRequestID(meta.id)
	}
	log = log.WithField("is_redelivery", meta.redelivery)
	if meta.timestamp > 0 {
		log = log.WithField("event_timestamp_ms", meta.timestamp)
	}

	if h.dedup.isDuplicate(meta.id, meta.redelivery) {
		log.Info("Skipping redelivered event")
		h.metrics.RecordWebhookDuplicate()
		return
	}

	if h.shouldShowLoading(event) {
		if err := h.showLoadingAnimation(meta.source); err != nil {
			log.WithError(err).Debug("Failed to show loading animation")
		}
	}

	eventStart := time.Now()
	var (
		messages  []messaging_api.MessageInterface
		eventType string
		err       error
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		eventType = "message"
		messages, err = h.processor.ProcessMessage(ctx, e)
	case webhook.PostbackEvent:
		eventType = "postback"
		messages, err = h.processor.ProcessPostback(ctx, e)
	case webhook.FollowEvent:
		eventType = "follow"
		messages, err = h.processor.ProcessFollow(ctx, e)
	}

	status := "success"
	if err != nil {
		status = "error"
		log.WithError(err).WithField("event_type", eventType).Error("Failed to handle event")
		sentry.CaptureExceptionWithContext(ctx, err)
	}
	h.metrics.RecordWebhook(eventType, status, time.Since(eventStart).Seconds())

	if len(messages) > 0 && err == nil {
		if err := h.reply(ctx, meta.replyToken, messages, log); err != nil {
			h.metrics.RecordWebhook(eventType, "reply_error", time.Since(eventStart).Seconds())
		}
	}

	log.WithField("event_type", eventType).
		WithField("event_duration_ms", time.Since(eventStart).Milliseconds()).
		WithField("batch_duration_ms", time.Since(batchStart).Milliseconds()).
		Info("Event processed")
}

// reply sends messages with the event's reply token.
func (h *Handler) reply(ctx context.Context, replyToken string, messages []messaging_api.MessageInterface, log *logger.Logger) error {
	if len(messages) > h.maxMessagesPerReply {
		log.WithField("message_count", len(messages)).
			WithField("limit", h.maxMessagesPerReply).
			Warn("Message count exceeds limit; truncating")
		messages = messages[:h.maxMessagesPerReply]
	}

	if replyToken == "" {
		log.Debug("Empty reply token, skipping reply")
		return nil
	}
	if len(replyToken) < h.minReplyTokenLength {
		log.WithField("token_length", len(replyToken)).Debug("Invalid reply token format")
		return nil
	}

	if !h.rateLimiter.Allow() {
		log.Warn("Global rate limit exceeded; waiting")
		h.metrics.RecordRateLimiterDrop("global")
		if err := h.rateLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	_, err := h.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err == nil {
		return nil
	}

	switch msg := err.Error(); {
	case strings.Contains(msg, "Invalid reply token"):
		log.WithError(err).Debug("Reply token already used or invalid")
	default:
		log.WithError(err).WithField("reply_token", bot.TruncateID(replyToken)).Error("Failed to send reply")
		h.metrics.RecordHTTPError("reply", "webhook")
	}
	return err
}

// shouldShowLoading reports whether the event will get a reply. LINE only
// shows the animation in 1-on-1 chats.
func (h *Handler) shouldShowLoading(event webhook.EventInterface) bool {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return bot.IsPersonalChat(e.Source)
	case webhook.PostbackEvent:
		return bot.IsPersonalChat(e.Source)
	default:
		return false
	}
}

func (h *Handler) showLoadingAnimation(source webhook.SourceInterface) error {
	chatID := bot.GetChatID(source)
	if chatID == "" {
		return nil
	}

	if _, err := h.client.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: loadingSeconds,
	}); err != nil {
		return fmt.Errorf("failed to show loading animation: %w", err)
	}
	return nil
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
