// Package main provides the scam detection LINE bot server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/garyellow/scamguard-linebot-go/internal/app"
	"github.com/garyellow/scamguard-linebot-go/internal/buildinfo"
	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/sentry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		SampleRate:  cfg.SentrySampleRate,
		Debug:       cfg.Debug,
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize Sentry: %v\n", err)
		return 1
	}
	defer sentry.Flush(2 * time.Second)

	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize %s: %v\n", buildinfo.Release(), err)
		sentry.CaptureException(err)
		return 1
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		sentry.CaptureException(err)
		return 1
	}
	return 0
}
