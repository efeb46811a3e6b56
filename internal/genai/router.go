package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
)

const (
	opClassify = "classify"
	opChat     = "chat"
)

// Router dispatches requests to the configured providers. The caller's
// preferred provider goes first, then the rest in fixed order.
// It implements detection.Classifier.
type Router struct {
	backends map[Provider]Backend
	retry    RetryConfig
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

var _ detection.Classifier = (*Router)(nil)

// NewRouter builds one backend per provider with an API key.
// Returns nil when no provider is configured (LLM features disabled).
func NewRouter(ctx context.Context, cfg Config, m *metrics.Metrics, log *logger.Logger) (*Router, error) {
	if !cfg.HasAnyProvider() {
		return nil, nil //nolint:nilnil // LLM disabled
	}

	backends := make([]Backend, 0, len(providerOrder))
	if b := newOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL); b != nil {
		backends = append(backends, b)
	}
	gb, err := newGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL)
	if err != nil {
		return nil, err
	}
	if gb != nil {
		backends = append(backends, gb)
	}

	return newRouter(backends, cfg.Retry, m, log), nil
}

func newRouter(backends []Backend, retry RetryConfig, m *metrics.Metrics, log *logger.Logger) *Router {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	r := &Router{
		backends: make(map[Provider]Backend, len(backends)),
		retry:    retry,
		metrics:  m,
		logger:   log.WithModule("genai"),
	}
	for _, b := range backends {
		r.backends[b.Provider()] = b
	}
	return r
}

// Providers returns the enabled providers in fallback order.
func (r *Router) Providers() []Provider {
	if r == nil {
		return nil
	}
	out := make([]Provider, 0, len(r.backends))
	for _, p := range providerOrder {
		if _, ok := r.backends[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Available reports whether p has a configured backend.
func (r *Router) Available(p Provider) bool {
	if r == nil {
		return false
	}
	_, ok := r.backends[p]
	return ok
}

// Classify implements detection.Classifier. An unknown preferred name is
// ignored.
func (r *Router) Classify(ctx context.Context, text, preferred string) (*detection.Classification, error) {
	p, _ := ParseProvider(preferred)
	cls, _, err := route(ctx, r, p, opClassify, func(ctx context.Context, b Backend) (*detection.Classification, error) {
		return b.Classify(ctx, text)
	})
	return cls, err
}

// Complete returns a free-form reply and the provider that produced it.
func (r *Router) Complete(ctx context.Context, prompt string, preferred Provider) (string, Provider, error) {
	return route(ctx, r, preferred, opChat, func(ctx context.Context, b Backend) (string, error) {
		return b.Complete(ctx, prompt)
	})
}

// Close releases all backends.
func (r *Router) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) order(preferred Provider) []Provider {
	providers := r.Providers()
	if i := slices.Index(providers, preferred); i > 0 {
		providers = append([]Provider{preferred}, slices.Delete(providers, i, i+1)...)
	}
	return providers
}

// route tries each provider in order, retrying transient errors on the same
// provider first. Any other error moves on to the next provider; only a done
// context stops the walk early.
func route[T any](ctx context.Context, r *Router, preferred Provider, op string, call func(context.Context, Backend) (T, error)) (T, Provider, error) {
	var zero T
	if r == nil || len(r.backends) == 0 {
		return zero, "", domerrors.ErrLLMUnavailable
	}

	var (
		lastErr  error
		previous Provider
	)
	for _, p := range r.order(preferred) {
		if ctx.Err() != nil {
			break
		}
		if previous != "" {
			r.metrics.RecordLLMFallback(string(previous), string(p))
			r.logger.WithError(lastErr).
				WithFields(map[string]any{"from": previous, "to": p, "operation": op}).
				Info("Falling back to next provider")
		}

		b := r.backends[p]
		start := time.Now()
		result, err := withRetry(ctx, r.retry, func(ctx context.Context) (T, error) {
			attemptStart := time.Now()
			v, err := call(ctx, b)
			r.metrics.RecordLLM(string(p), op, statusLabel(err), time.Since(attemptStart).Seconds())
			return v, err
		})
		if err == nil {
			r.logger.WithFields(map[string]any{
				"provider":    p,
				"operation":   op,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("LLM call succeeded")
			return result, p, nil
		}

		lastErr = err
		previous = p
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return zero, "", fmt.Errorf("%w: %w", domerrors.ErrLLMUnavailable, lastErr)
}
