package bot

import (
	"context"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Registry manages bot handlers and dispatches messages/postbacks.
// Handlers are tried in registration order, so a catch-all handler must be
// registered last.
type Registry struct {
	handlers    []Handler
	middlewares []Middleware
}

// NewRegistry creates a new handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make([]Handler, 0),
	}
}

// Register adds a handler to the registry.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// Use appends middleware. The first added runs outermost.
func (r *Registry) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

// DispatchMessage dispatches a text message to the first handler that can handle it.
func (r *Registry) DispatchMessage(ctx context.Context, text string) []messaging_api.MessageInterface {
	for _, h := range r.handlers {
		if h.CanHandle(text) {
			return r.chain(func(ctx context.Context, h Handler, text string) []messaging_api.MessageInterface {
				return h.HandleMessage(ctx, text)
			})(ctx, h, text)
		}
	}
	return nil
}

// DispatchPostback dispatches a postback event based on the prefix.
func (r *Registry) DispatchPostback(ctx context.Context, data string) []messaging_api.MessageInterface {
	for _, h := range r.handlers {
		prefix := h.PostbackPrefix()
		if prefix != "" && strings.HasPrefix(data, prefix) {
			return r.chain(func(ctx context.Context, h Handler, data string) []messaging_api.MessageInterface {
				return h.HandlePostback(ctx, data)
			})(ctx, h, strings.TrimPrefix(data, prefix))
		}
	}
	return nil
}

// GetHandler returns a handler by name.
func (r *Registry) GetHandler(name string) Handler {
	for _, h := range r.handlers {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// chain wraps final with the registered middlewares.
func (r *Registry) chain(final HandlerFunc) HandlerFunc {
	next := final
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		mw, inner := r.middlewares[i], next
		next = func(ctx context.Context, h Handler, text string) []messaging_api.MessageInterface {
			return mw(ctx, h, text, inner)
		}
	}
	return next
}
