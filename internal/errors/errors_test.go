package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{
			name:     "ErrNotFound is recognized",
			err:      ErrNotFound,
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "Joined ErrNotFound is recognized",
			err:      errors.Join(ErrNotFound, errors.New("additional context")),
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "Different error is not ErrNotFound",
			err:      ErrRateLimitExceeded,
			checkFn:  IsNotFound,
			expected: false,
		},
		{
			name:     "ErrRateLimitExceeded is recognized",
			err:      fmt.Errorf("user quota: %w", ErrRateLimitExceeded),
			checkFn:  IsRateLimitExceeded,
			expected: true,
		},
		{
			name:     "ValidationError is invalid input",
			err:      NewValidationError("message", "empty"),
			checkFn:  IsInvalidInput,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.checkFn(tt.err)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("message", "exceeds 5000 characters")

	expected := "validation failed on message: exceeds 5000 characters"
	if err.Error() != expected {
		t.Errorf("expected error '%s', got '%s'", expected, err.Error())
	}
}

func TestAppErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		err    *AppError
		want   string
		status int
	}{
		{"config", NewConfigError("missing secret", nil), "[CONFIG] missing secret", http.StatusInternalServerError},
		{"client", NewClientError("reply failed", 0, cause), "[LINE Client] reply failed: boom", http.StatusInternalServerError},
		{"client with status", NewClientError("bad token", http.StatusUnauthorized, nil), "[LINE Client] bad token", http.StatusUnauthorized},
		{"detection", NewDetectionError("classifier down", 0, cause), "[DETECTION] classifier down: boom", http.StatusInternalServerError},
		{"validation", NewInputError("empty message", nil), "[VALIDATION] empty message", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
		})
	}

	if !errors.Is(NewDetectionError("x", 0, cause), cause) {
		t.Error("AppError should unwrap to its cause")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"app error wins", fmt.Errorf("wrap: %w", NewInputError("bad", ErrTimeout)), http.StatusBadRequest},
		{"signature", fmt.Errorf("parse: %w", ErrInvalidSignature), http.StatusForbidden},
		{"invalid input", NewValidationError("f", "m"), http.StatusBadRequest},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"rate limit", ErrRateLimitExceeded, http.StatusTooManyRequests},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"llm unavailable", ErrLLMUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("other"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(NewDetectionError("classifier down", 0, errors.New("secret detail"))); got != "classifier down" {
		t.Errorf("PublicMessage(AppError) = %q", got)
	}
	if got := PublicMessage(errors.New("internal")); got != "Internal Server Error" {
		t.Errorf("PublicMessage(plain) = %q", got)
	}
	if got := PublicMessage(nil); got != "" {
		t.Errorf("PublicMessage(nil) = %q", got)
	}
}
