// Package sentry wires the Sentry SDK to the Better Stack errors backend.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/scamguard-linebot-go/internal/buildinfo"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the ingesting host, e.g. "errors.betterstack.com".
	Host string

	Environment string

	// Release defaults to buildinfo.Release() when empty.
	Release string

	// SampleRate is clamped to (0, 1]; zero means 100%.
	SampleRate float64

	Debug bool
}

// DSN returns the Better Stack DSN: https://TOKEN@HOST/1.
// The project ID is required by the SDK and ignored by the backend.
func (c Config) DSN() string {
	return fmt.Sprintf("https://%s@%s/1", c.Token, c.Host)
}

// Initialize sets up the Sentry SDK.
// An empty Token disables Sentry and returns nil.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return errors.New("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}
	release := cfg.Release
	if release == "" {
		release = buildinfo.Release()
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN(),
		Environment:      cfg.Environment,
		Release:          release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       scrubEvent,
	})
}

// scrubEvent drops request bodies and user identifiers.
// Chat content is personal data and must not leave the service.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event == nil {
		return nil
	}
	if event.Request != nil {
		event.Request.Data = ""
		event.Request.Cookies = ""
	}
	event.User = sentry.User{}
	return event
}

// Flush waits for buffered events. Returns true if all were sent in time.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException captures an error and sends it to Sentry.
func CaptureException(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// CaptureExceptionWithContext uses the request hub when one is attached to ctx.
func CaptureExceptionWithContext(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}

// CaptureWithTags captures err in an isolated scope carrying tags,
// e.g. {"module": "detection", "provider": "openai"}.
func CaptureWithTags(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}
