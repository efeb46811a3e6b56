package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
)

// ErrorAction defines the action to take based on error type.
type ErrorAction int

const (
	// ActionRetry retries the same provider after backoff.
	ActionRetry ErrorAction = iota
	// ActionFallback skips to the next provider.
	ActionFallback
	// ActionFail stops immediately.
	ActionFail
)

// String returns a human-readable string for the error action.
func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError wraps a provider error with its HTTP status.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
	RetryAfter time.Duration
}

func (e *LLMError) Error() string {
	msg := string(e.Provider) + ": " + e.Err.Error()
	if e.StatusCode > 0 {
		msg += " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return msg
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// WrapError attaches provider and status information from SDK errors.
func WrapError(err error, provider Provider) error {
	if err == nil {
		return nil
	}
	llmErr := &LLMError{Err: err, Provider: provider}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		llmErr.StatusCode = oaErr.StatusCode
		if oaErr.Response != nil {
			llmErr.RetryAfter = ParseRetryAfter(oaErr.Response.Header)
		}
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		llmErr.StatusCode = gErr.Code
	}
	return llmErr
}

// ClassifyError determines the appropriate action for err:
//   - transient errors (429, 5xx, network, timeouts) retry
//   - quota exhaustion and unusable replies fall back to another provider
//   - permanent errors (400, 401, 403, 404) fail
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}

	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}
	if errors.Is(err, domerrors.ErrMalformedResponse) {
		return ActionFallback
	}

	errStr := strings.ToLower(err.Error())

	// Quota is checked before status codes: it is reported as 429 but
	// will not recover within the request.
	if containsAny(errStr, "quota", "daily limit", "monthly limit", "billing", "insufficient_quota") {
		return ActionFallback
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}

	switch {
	case containsAny(errStr, "rate limit", "too many requests", "resource_exhausted", "429"):
		return ActionRetry
	case containsAny(errStr, "unavailable", "internal server error", "bad gateway",
		"gateway timeout", "overloaded", "capacity", "500", "502", "503", "504"):
		return ActionRetry
	case containsAny(errStr, "timeout", "deadline", "connection", "eof"):
		return ActionRetry
	case containsAny(errStr, "401", "unauthorized", "unauthenticated", "invalid api key",
		"403", "forbidden", "permission denied",
		"404", "not found", "400", "bad request", "invalid"):
		return ActionFail
	}

	return ActionRetry
}

func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500 && statusCode < 600:
		return ActionRetry
	case statusCode >= 400 && statusCode < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// ParseRetryAfter reads retry-after-ms or retry-after (seconds or HTTP date).
// Returns 0 when absent or invalid.
func ParseRetryAfter(headers http.Header) time.Duration {
	if headers == nil {
		return 0
	}
	if msStr := headers.Get("retry-after-ms"); msStr != "" {
		if ms, err := strconv.Atoi(msStr); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	if secStr := headers.Get("retry-after"); secStr != "" {
		if sec, err := strconv.Atoi(secStr); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
		if t, err := http.ParseTime(secStr); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	return 0
}

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ActionRetry
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// statusLabel is the metrics status for an error.
func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domerrors.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
