package sentry

import (
	"context"
	"errors"
	"testing"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_EmptyToken(t *testing.T) {
	require.NoError(t, Initialize(Config{Token: ""}))
}

func TestInitialize_MissingHost(t *testing.T) {
	err := Initialize(Config{Token: "test-token", Host: ""})
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Token: "abc", Host: "errors.betterstack.com"}
	assert.Equal(t, "https://abc@errors.betterstack.com/1", cfg.DSN())
}

func TestInitialize_ValidConfig(t *testing.T) {
	// Sentry uses global state; not parallel.
	err := Initialize(Config{
		Token:       "test-token",
		Host:        "errors.betterstack.com",
		Environment: "test",
		SampleRate:  5, // clamped
	})
	require.NoError(t, err)
	assert.True(t, IsEnabled())

	// Must not panic with or without a hub in context.
	CaptureException(nil)
	CaptureExceptionWithContext(context.Background(), errors.New("boom"))
	CaptureWithTags(context.Background(), errors.New("tagged"), map[string]string{"module": "detection"})

	Flush(100 * time.Millisecond)
}

func TestScrubEvent(t *testing.T) {
	event := &sentrygo.Event{
		Request: &sentrygo.Request{Data: `{"text":"寶貝匯款"}`, Cookies: "a=b"},
		User:    sentrygo.User{ID: "U123"},
	}

	got := scrubEvent(event, nil)
	require.NotNil(t, got)
	assert.Empty(t, got.Request.Data)
	assert.Empty(t, got.Request.Cookies)
	assert.Empty(t, got.User.ID)

	assert.Nil(t, scrubEvent(nil, nil))
}
