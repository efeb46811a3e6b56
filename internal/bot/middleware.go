package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/garyellow/scamguard-linebot-go/internal/lineutil"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/sentry"
)

// HandlerFunc runs a handler on text (message text or postback data).
type HandlerFunc func(ctx context.Context, h Handler, text string) []messaging_api.MessageInterface

// Middleware wraps a HandlerFunc.
type Middleware func(ctx context.Context, h Handler, text string, next HandlerFunc) []messaging_api.MessageInterface

// LoggingMiddleware logs handler execution with timing and result info.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(ctx context.Context, h Handler, text string, next HandlerFunc) []messaging_api.MessageInterface {
		start := time.Now()

		log.WithField("module", h.Name()).
			WithField("text_length", len([]rune(text))).
			DebugContext(ctx, "Handler started")

		msgs := next(ctx, h, text)

		log.WithField("module", h.Name()).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("msg_count", len(msgs)).
			DebugContext(ctx, "Handler completed")

		return msgs
	}
}

// RecoveryMiddleware recovers from panics in handlers, reports them and
// replies with a generic error message.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(ctx context.Context, h Handler, text string, next HandlerFunc) (msgs []messaging_api.MessageInterface) {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("module", h.Name()).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					ErrorContext(ctx, "Handler panicked")
				sentry.CaptureWithTags(ctx, fmt.Errorf("handler panic: %v", r), map[string]string{"module": h.Name()})
				msgs = []messaging_api.MessageInterface{
					lineutil.NewTextMessageWithQuickReply(MsgInternalError, lineutil.CommonQuickReplies()...),
				}
			}
		}()

		return next(ctx, h, text)
	}
}
