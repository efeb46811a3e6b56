package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError by the subsystem that raised it.
type Kind string

const (
	KindConfig     Kind = "config"
	KindClient     Kind = "client"
	KindDetection  Kind = "detection"
	KindValidation Kind = "validation"
)

// AppError is the base application error carrying an HTTP status.
type AppError struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

func (e *AppError) Error() string {
	prefix := map[Kind]string{
		KindConfig:     "[CONFIG]",
		KindClient:     "[LINE Client]",
		KindDetection:  "[DETECTION]",
		KindValidation: "[VALIDATION]",
	}[e.Kind]
	if prefix == "" {
		prefix = "[APP]"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewConfigError reports a misconfiguration. Always 500.
func NewConfigError(message string, cause error) *AppError {
	return &AppError{Kind: KindConfig, Message: message, Status: http.StatusInternalServerError, Cause: cause}
}

// NewClientError reports a LINE API client failure.
// A zero status defaults to 500.
func NewClientError(message string, status int, cause error) *AppError {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &AppError{Kind: KindClient, Message: message, Status: status, Cause: cause}
}

// NewDetectionError reports a detection pipeline failure.
// A zero status defaults to 500.
func NewDetectionError(message string, status int, cause error) *AppError {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &AppError{Kind: KindDetection, Message: message, Status: status, Cause: cause}
}

// NewInputError reports invalid request input. Always 400.
func NewInputError(message string, cause error) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Status: http.StatusBadRequest, Cause: cause}
}

// HTTPStatus maps an error to the status code returned to HTTP callers.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrLLMUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to expose in an HTTP response body.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Error()
	}
	return http.StatusText(HTTPStatus(err))
}
