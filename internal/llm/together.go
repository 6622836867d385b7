package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrModelUnavailable marks failures that will not go away for the rest of a
// model's pass, such as a bad key or an unknown model id.
var ErrModelUnavailable = errors.New("model unavailable")

// TogetherClient talks to Together's OpenAI-compatible chat completions API
type TogetherClient struct {
	client openai.Client
	logger *slog.Logger
}

// NewTogetherClient creates a client for baseURL. The SDK's own retries are
// disabled; callers skip and continue instead.
func NewTogetherClient(apiKey, baseURL string, logger *slog.Logger, opts ...option.RequestOption) (*TogetherClient, error) {
	if apiKey == "" {
		return nil, errors.New("TOGETHER_API_KEY is not set")
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &TogetherClient{
		client: openai.NewClient(clientOpts...),
		logger: logger,
	}, nil
}

// VisionRequest is one prompt plus one embedded image
type VisionRequest struct {
	Model       string
	Prompt      string
	ImageURL    string
	MaxTokens   int
	Temperature float64
}

// Describe sends one image and prompt to a vision model and returns its reply
func (c *TogetherClient) Describe(ctx context.Context, req VisionRequest) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: req.ImageURL,
		}),
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		Model:       req.Model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	return c.complete(ctx, req.Model, params)
}

// ChatRequest is a single user prompt for a text model
type ChatRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Chat sends one user message and returns the reply
func (c *TogetherClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Model:       req.Model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	return c.complete(ctx, req.Model, params)
}

func (c *TogetherClient) complete(ctx context.Context, model string, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", model)
	}

	c.logger.Debug("completion received",
		"model", model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func classify(model string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%w: %s: %w", ErrModelUnavailable, model, err)
		}
	}
	return err
}

// ChatGenerator binds a chat model and its sampling settings to a client
type ChatGenerator struct {
	client      *TogetherClient
	model       string
	maxTokens   int
	temperature float64
}

// Generator returns a text generator that always uses model
func (c *TogetherClient) Generator(model string, maxTokens int, temperature float64) *ChatGenerator {
	return &ChatGenerator{client: c, model: model, maxTokens: maxTokens, temperature: temperature}
}

// Model returns the bound model name
func (g *ChatGenerator) Model() string {
	return g.model
}

func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.Chat(ctx, ChatRequest{
		Model:       g.model,
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
}
