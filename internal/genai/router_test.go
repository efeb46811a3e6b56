package genai

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
	"github.com/garyellow/scamguard-linebot-go/internal/logger"
	"github.com/garyellow/scamguard-linebot-go/internal/metrics"
)

type fakeBackend struct {
	provider Provider
	classify func(ctx context.Context) (*detection.Classification, error)
	reply    func(ctx context.Context) (string, error)
	calls    atomic.Int32
}

func (f *fakeBackend) Provider() Provider { return f.provider }
func (f *fakeBackend) Close() error       { return nil }

func (f *fakeBackend) Classify(ctx context.Context, _ string) (*detection.Classification, error) {
	f.calls.Add(1)
	return f.classify(ctx)
}

func (f *fakeBackend) Complete(ctx context.Context, _ string) (string, error) {
	f.calls.Add(1)
	return f.reply(ctx)
}

func verdict(p Provider, stage int) func(context.Context) (*detection.Classification, error) {
	return func(context.Context) (*detection.Classification, error) {
		return &detection.Classification{Stage: stage, HasStage: true, Provider: string(p)}, nil
	}
}

func failing(err error) func(context.Context) (*detection.Classification, error) {
	return func(context.Context) (*detection.Classification, error) { return nil, err }
}

var fastRetry = RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func testRouter(t *testing.T, m *metrics.Metrics, backends ...Backend) *Router {
	t.Helper()
	return newRouter(backends, fastRetry, m, logger.NewWithWriter("error", io.Discard))
}

func TestRouter_PreferredFirst(t *testing.T) {
	t.Parallel()
	oa := &fakeBackend{provider: ProviderOpenAI, classify: verdict(ProviderOpenAI, 1)}
	gm := &fakeBackend{provider: ProviderGemini, classify: verdict(ProviderGemini, 3)}
	r := testRouter(t, nil, oa, gm)

	cls, err := r.Classify(context.Background(), "hi", "Gemini")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cls.Provider)
	assert.Equal(t, 3, cls.Stage)
	assert.Zero(t, oa.calls.Load())

	// Unknown names fall back to the fixed order.
	cls, err = r.Classify(context.Background(), "hi", "claude")
	require.NoError(t, err)
	assert.Equal(t, "openai", cls.Provider)
}

func TestRouter_FallbackOnError(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	oa := &fakeBackend{provider: ProviderOpenAI, classify: failing(errors.New("insufficient_quota"))}
	gm := &fakeBackend{provider: ProviderGemini, classify: verdict(ProviderGemini, 4)}
	r := testRouter(t, m, oa, gm)

	cls, err := r.Classify(context.Background(), "轉帳", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cls.Provider)
	assert.Equal(t, int32(1), oa.calls.Load(), "quota errors are not retried")

	assert.InDelta(t, 1, testutil.ToFloat64(m.LLMFallbackTotal.WithLabelValues("openai", "gemini")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("openai", "classify", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("gemini", "classify", "success")), 0)
}

func TestRouter_RetriesTransientErrors(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	oa := &fakeBackend{provider: ProviderOpenAI, classify: func(context.Context) (*detection.Classification, error) {
		if n.Add(1) == 1 {
			return nil, &LLMError{Err: errors.New("busy"), StatusCode: 503, Provider: ProviderOpenAI}
		}
		return &detection.Classification{Stage: 2, HasStage: true, Provider: "openai"}, nil
	}}
	r := testRouter(t, nil, oa)

	cls, err := r.Classify(context.Background(), "x", "openai")
	require.NoError(t, err)
	assert.Equal(t, 2, cls.Stage)
	assert.Equal(t, int32(2), oa.calls.Load())
}

func TestRouter_MalformedFallsBack(t *testing.T) {
	t.Parallel()
	oa := &fakeBackend{provider: ProviderOpenAI, classify: failing(domerrors.ErrMalformedResponse)}
	gm := &fakeBackend{provider: ProviderGemini, classify: verdict(ProviderGemini, 0)}
	r := testRouter(t, nil, oa, gm)

	cls, err := r.Classify(context.Background(), "x", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cls.Provider)
	assert.Equal(t, int32(1), oa.calls.Load())
}

func TestRouter_AllFail(t *testing.T) {
	t.Parallel()
	oa := &fakeBackend{provider: ProviderOpenAI, classify: failing(errors.New("invalid api key"))}
	gm := &fakeBackend{provider: ProviderGemini, classify: failing(errors.New("forbidden"))}
	r := testRouter(t, nil, oa, gm)

	_, err := r.Classify(context.Background(), "x", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domerrors.ErrLLMUnavailable)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestRouter_StopsWhenContextDone(t *testing.T) {
	t.Parallel()
	oa := &fakeBackend{provider: ProviderOpenAI, classify: func(ctx context.Context) (*detection.Classification, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	gm := &fakeBackend{provider: ProviderGemini, classify: verdict(ProviderGemini, 1)}
	r := testRouter(t, nil, oa, gm)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Classify(ctx, "x", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, gm.calls.Load())
}

func TestRouter_Complete(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gm := &fakeBackend{provider: ProviderGemini, reply: func(context.Context) (string, error) { return "小心為上", nil }}
	r := testRouter(t, m, gm)

	// Preferred provider without a key is skipped.
	reply, used, err := r.Complete(context.Background(), "prompt", ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "小心為上", reply)
	assert.Equal(t, ProviderGemini, used)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("gemini", "chat", "success")), 0)
}

func TestRouter_Nil(t *testing.T) {
	t.Parallel()
	var r *Router
	_, err := r.Classify(context.Background(), "x", "")
	assert.ErrorIs(t, err, domerrors.ErrLLMUnavailable)
	assert.False(t, r.Available(ProviderOpenAI))
	assert.Empty(t, r.Providers())
	assert.NoError(t, r.Close())
}

func TestRouter_Providers(t *testing.T) {
	t.Parallel()
	gm := &fakeBackend{provider: ProviderGemini}
	oa := &fakeBackend{provider: ProviderOpenAI}
	r := testRouter(t, nil, gm, oa)

	assert.Equal(t, []Provider{ProviderOpenAI, ProviderGemini}, r.Providers())
	assert.Equal(t, []Provider{ProviderGemini, ProviderOpenAI}, r.order(ProviderGemini))
	assert.True(t, r.Available(ProviderGemini))
}

func TestNewRouter_NoKeys(t *testing.T) {
	t.Parallel()
	r, err := NewRouter(context.Background(), Config{}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestParseProvider(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Provider
		ok   bool
	}{
		{"openai", ProviderOpenAI, true},
		{" OpenAI ", ProviderOpenAI, true},
		{"GEMINI", ProviderGemini, true},
		{"", "", false},
		{"groq", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseProvider(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
	assert.Equal(t, "OpenAI", ProviderOpenAI.DisplayName())
	assert.Equal(t, "Gemini", ProviderGemini.DisplayName())
}
