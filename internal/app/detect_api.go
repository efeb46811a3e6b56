package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/scamguard-linebot-go/internal/config"
	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
	"github.com/garyellow/scamguard-linebot-go/internal/genai"
)

// apiKeyPrefix keeps API callers apart from LINE users in the limiters.
const apiKeyPrefix = "api:"

type detectRequest struct {
	Message  string `json:"message"`
	Provider string `json:"provider"`
}

// detectAPI classifies a single message outside of LINE.
func (a *Application) detectAPI(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.writeAPIError(c, domerrors.NewInputError("request body must be JSON", err))
		return
	}

	res, err := a.detectForAPI(c.Request.Context(), apiKeyPrefix+c.ClientIP(), req)
	if err != nil {
		a.writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *Application) detectForAPI(ctx context.Context, key string, req detectRequest) (*detection.DetectionResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domerrors.NewInputError("message is required", domerrors.ErrInvalidInput)
	}
	if limit := a.cfg.Bot.MaxMessageLength; limit > 0 && utf8.RuneCountInString(message) > limit {
		return nil, domerrors.NewInputError(fmt.Sprintf("message exceeds %d characters", limit), domerrors.ErrInvalidInput)
	}

	var provider string
	if req.Provider != "" {
		p, ok := genai.ParseProvider(req.Provider)
		if !ok {
			return nil, domerrors.NewInputError("provider must be openai or gemini", domerrors.ErrInvalidInput)
		}
		provider = p.String()
	}

	if !a.userLimiter.Allow(key) {
		return nil, domerrors.ErrRateLimitExceeded
	}

	if a.detector.WillUseLLM(message) && !a.llmLimiter.Allow(key) {
		res := a.detector.DetectRules(message)
		res.Rationale[detection.KeyLLM] = "rate_limited"
		return &res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, config.WebhookProcessing)
	defer cancel()

	res := a.detector.Detect(ctx, message, detection.Options{Provider: provider})
	return &res, nil
}

func (a *Application) writeAPIError(c *gin.Context, err error) {
	status := domerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.WithError(err).ErrorContext(c.Request.Context(), "Detect API failed")
	}
	c.JSON(status, gin.H{"message": domerrors.PublicMessage(err)})
}
