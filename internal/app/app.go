// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/garyellow/scamguard-linebot-go/internal/bot"
	"github.com/garyellow/scamguard-linebot-go/internal/bot/advice"
	"github.com/garyellow/scamguard-linebot-go/internal/bot/detect"
	"github.com/garyellow/scamguard-linebot-go/internal/buildinfo"
	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	"github.com/garyellow/scamguard-linebot-go/internal/genai"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
	"github.com/garyellow/scamguard-linebot-go/internal/ratelimit"
	"github.com/garyellow/scamguard-linebot-go/internal/storage"
	"github.com/garyellow/scamguard-linebot-go/internal/webhook"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	llm            *genai.Router // nil when no provider is configured
	detector       *detection.Detector
	reloader       *detection.Reloader // nil without an external rule dictionary
	llmLimiter     *ratelimit.KeyedLimiter
	userLimiter    *ratelimit.KeyedLimiter
	webhookHandler *webhook.Handler
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "scamguard-linebot-go").WithField("release", buildinfo.Release())
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Set as default logger so package-level slog.*Context() calls carry
	// context values (userID, chatID, requestID).
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	db, err := storage.New(ctx, cfg.SessionDBPath, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SessionDBPath).WithField("history_limit", cfg.HistoryLimit).Info("Session store ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	llm, err := genai.NewRouter(ctx, buildLLMConfig(cfg), m, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}
	if llm != nil {
		log.WithField("providers", llm.Providers()).Info("LLM classification enabled")
	} else {
		log.Warn("No LLM provider configured; using the rule engine only")
	}

	var classifier detection.Classifier
	if llm != nil {
		classifier = llm
	}
	detector := detection.New(detection.Config{
		Classifier:      classifier,
		Timeout:         cfg.LLMTimeout,
		ShortCircuit:    cfg.RuleShortCircuit,
		DefaultProvider: cfg.LLMProvider,
		Metrics:         m,
		Logger:          log,
	})

	reloader, err := newRuleReloader(ctx, cfg, detector, m, log)
	if err != nil {
		_ = llm.Close()
		_ = db.Close()
		return nil, fmt.Errorf("rules: %w", err)
	}
	if reloader != nil {
		loadCtx, cancel := context.WithTimeout(ctx, config.RuleReloadTimeout)
		if _, err := reloader.Reload(loadCtx); err != nil {
			log.WithError(err).Warn("Initial rule dictionary load failed; using built-in rules")
		}
		cancel()
	}

	llmLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "llm",
		Burst:         cfg.Bot.LLMBurstTokens,
		RefillRate:    cfg.Bot.LLMRefillPerHour / 3600.0, // Convert hourly to per-second
		DailyLimit:    cfg.Bot.LLMDailyLimit,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})
	userLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "user",
		Burst:         cfg.Bot.UserRateLimitBurst,
		RefillRate:    cfg.Bot.UserRateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	adviceCfg := advice.Config{
		Store:       db,
		LLMLimiter:  llmLimiter,
		Logger:      log,
		HistorySize: cfg.Bot.ChatMoreHistory,
		Timeout:     config.LLMConversation,
	}
	var providers detect.ProviderChecker
	if llm != nil {
		adviceCfg.Chat = llm
		providers = llm
	}

	botRegistry := bot.NewRegistry()
	botRegistry.Use(bot.RecoveryMiddleware(log))
	botRegistry.Use(bot.LoggingMiddleware(log))
	botRegistry.Register(advice.NewHandler(adviceCfg))
	// Catch-all, must stay last.
	botRegistry.Register(detect.NewHandler(detector, db, providers, llmLimiter, m, log))

	processor := bot.NewProcessor(bot.ProcessorConfig{
		Registry:    botRegistry,
		UserLimiter: userLimiter,
		Logger:      log,
		Metrics:     m,
		BotConfig:   &cfg.Bot,
	})

	webhookHandler, err := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		ChannelToken:  cfg.LineChannelToken,
		DedupWindow:   cfg.DedupWindow,
		BotConfig:     &cfg.Bot,
		Metrics:       m,
		Logger:        log,
		Processor:     processor,
	})
	if err != nil {
		llmLimiter.Stop()
		userLimiter.Stop()
		_ = llm.Close()
		_ = db.Close()
		return nil, fmt.Errorf("webhook: %w", err)
	}

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		llm:            llm,
		detector:       detector,
		reloader:       reloader,
		llmLimiter:     llmLimiter,
		userLimiter:    userLimiter,
		webhookHandler: webhookHandler,
	}

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

func buildLLMConfig(cfg *config.Config) genai.Config {
	return genai.Config{
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		Retry:         genai.DefaultRetryConfig(),
	}
}

// Run starts the HTTP server and background jobs, then blocks until
// SIGINT/SIGTERM and shuts down gracefully.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

func (a *Application) startBackgroundJobs(ctx context.Context) {
	if a.reloader != nil && a.cfg.RulesRefreshEvery > 0 {
		a.wg.Go(func() {
			a.refreshRules(ctx, a.cfg.RulesRefreshEvery)
		})
	}
	a.wg.Go(func() {
		a.updateLimiterMetrics(ctx)
	})
}

func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown releases resources in dependency order: stop accepting requests,
// drain webhook events, then close clients and storage.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook events to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	a.logger.Info("Closing resources...")

	if err := a.llm.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "llm").Error("Component close error")
	}

	a.llmLimiter.Stop()
	a.userLimiter.Stop()

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
	return nil
}

// updateLimiterMetrics periodically exports the number of tracked users.
func (a *Application) updateLimiterMetrics(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.metrics.SetRateLimiterUsers("user", a.userLimiter.ActiveCount())
			a.metrics.SetRateLimiterUsers("llm", a.llmLimiter.ActiveCount())
		}
	}
}
