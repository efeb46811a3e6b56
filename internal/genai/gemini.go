package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
)

type geminiBackend struct {
	client *genai.Client
	model  string
}

// newGeminiBackend returns nil if apiKey is empty (provider disabled).
// baseURL is only set in tests.
func newGeminiBackend(ctx context.Context, apiKey, model, baseURL string) (*geminiBackend, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // provider disabled
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) Provider() Provider { return ProviderGemini }

// Close is a no-op: genai.Client holds no resources that need releasing.
func (b *geminiBackend) Close() error { return nil }

func (b *geminiBackend) Classify(ctx context.Context, text string) (*detection.Classification, error) {
	content, err := b.generate(ctx, text, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(ClassificationSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](classifyTemperature),
		MaxOutputTokens:   classifyMaxTokens,
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, err
	}

	cls, err := detection.ParseLLMResponse(content)
	if err != nil {
		return nil, WrapError(err, ProviderGemini)
	}
	cls.Provider = string(ProviderGemini)
	return &cls, nil
}

func (b *geminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return b.generate(ctx, prompt, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](chatTemperature),
		MaxOutputTokens: chatMaxTokens,
	})
}

func (b *geminiBackend) generate(ctx context.Context, text string, config *genai.GenerateContentConfig) (string, error) {
	start := time.Now()
	result, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(text), config)
	duration := time.Since(start)

	if err != nil {
		slog.WarnContext(ctx, "generate content failed",
			"provider", ProviderGemini,
			"model", b.model,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(fmt.Errorf("generate content: %w", err), ProviderGemini)
	}

	content := responseText(result)
	if content == "" {
		return "", WrapError(errors.Join(errors.New("no text in response"), domerrors.ErrMalformedResponse), ProviderGemini)
	}

	if result.UsageMetadata != nil {
		slog.DebugContext(ctx, "generate content done",
			"provider", ProviderGemini,
			"model", b.model,
			"input_tokens", result.UsageMetadata.PromptTokenCount,
			"output_tokens", result.UsageMetadata.CandidatesTokenCount,
			"duration_ms", duration.Milliseconds())
	}
	return content, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 {
		return ""
	}
	candidate := result.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
