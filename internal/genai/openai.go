package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
)

// openaiBackend talks to the Chat Completions API. Any OpenAI-compatible
// endpoint works through baseURL.
type openaiBackend struct {
	client openai.Client
	model  string
}

// newOpenAIBackend returns nil if apiKey is empty (provider disabled).
func newOpenAIBackend(apiKey, model, baseURL string) *openaiBackend {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are driven by the router so every attempt is measured.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openaiBackend{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (b *openaiBackend) Provider() Provider { return ProviderOpenAI }

func (b *openaiBackend) Close() error { return nil }

// Classify asks for a JSON verdict and parses it leniently.
func (b *openaiBackend) Classify(ctx context.Context, text string) (*detection.Classification, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(ClassificationSystemPrompt),
			openai.UserMessage(text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(classifyTemperature),
		MaxTokens:   openai.Int(classifyMaxTokens),
	}

	content, err := b.complete(ctx, params)
	if err != nil {
		return nil, err
	}

	cls, err := detection.ParseLLMResponse(content)
	if err != nil {
		return nil, WrapError(err, ProviderOpenAI)
	}
	cls.Provider = string(ProviderOpenAI)
	return &cls, nil
}

// Complete returns a free-form reply to prompt.
func (b *openaiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return b.complete(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(chatTemperature),
		MaxTokens:   openai.Int(chatMaxTokens),
	})
}

func (b *openaiBackend) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	start := time.Now()
	resp, err := b.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		slog.WarnContext(ctx, "chat completion failed",
			"provider", ProviderOpenAI,
			"model", b.model,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(fmt.Errorf("chat completion: %w", err), ProviderOpenAI)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", WrapError(fmt.Errorf("empty response from model: %w", domerrors.ErrMalformedResponse), ProviderOpenAI)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", WrapError(errors.Join(errors.New("empty message content"), domerrors.ErrMalformedResponse), ProviderOpenAI)
	}

	slog.DebugContext(ctx, "chat completion done",
		"provider", ProviderOpenAI,
		"model", b.model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", duration.Milliseconds())

	return content, nil
}
