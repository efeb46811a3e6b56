// Package bot provides the handler interface and event processing for the
// scam detection chatbot. Each module (detect, advice) implements Handler
// to process user messages and postback events.
package bot

import (
	"context"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Handler defines the interface that all bot modules must implement.
//
// The user ID of the sender is available through ctxutil.GetUserID.
type Handler interface {
	// Name identifies the module in logs.
	Name() string

	// CanHandle checks if this handler can process the given text message.
	CanHandle(text string) bool

	// HandleMessage processes a text message and returns LINE message responses
	// (max 5 messages per reply).
	HandleMessage(ctx context.Context, text string) []messaging_api.MessageInterface

	// PostbackPrefix returns the postback data prefix this handler owns,
	// e.g. "action=". Empty means the handler takes no postbacks.
	PostbackPrefix() string

	// HandlePostback processes a postback event. data has the prefix removed.
	HandlePostback(ctx context.Context, data string) []messaging_api.MessageInterface
}
