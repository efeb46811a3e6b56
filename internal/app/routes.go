package app

import (
	"context"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/sentry"
)

// routes builds the gin engine serving every HTTP endpoint.
func (a *Application) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(a.logger))

	authEnabled := a.cfg.MetricsPassword != ""

	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.POST("/callback", a.webhookHandler.Handle)
	router.GET("/metrics",
		basicAuthMiddleware(authEnabled, "metrics", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1",
		basicAuthMiddleware(authEnabled, "api", a.cfg.MetricsUsername, a.cfg.MetricsPassword))
	api.POST("/detect", a.detectAPI)

	return router
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) getFeatures() map[string]bool {
	return map[string]bool{
		"llm":           a.llm != nil,
		"rule_reload":   a.reloader != nil,
		"short_circuit": a.cfg.RuleShortCircuit,
	}
}

// readinessCheck reports ready once the session store answers. The detector
// always holds a rule set, the built-in one until a reload replaces it.
func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	rules := a.detector.Rules()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ready",
		"database":      "connected",
		"rules_version": rules.Version(),
		"labels":        len(rules.Labels()),
		"features":      a.getFeatures(),
	})
}
