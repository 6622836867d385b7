package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/ollama/ollama/api"
)

// CaptionClient asks a locally served Ollama vision model for short image
// captions.
type CaptionClient struct {
	client    *api.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewCaptionClient builds a caption client. An empty host falls back to
// OLLAMA_HOST and then to the Ollama default.
func NewCaptionClient(host, model string, maxTokens int, logger *slog.Logger) (*CaptionClient, error) {
	var client *api.Client
	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to configure ollama client: %w", err)
		}
		client = c
	} else {
		base, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host '%s': %w", host, err)
		}
		client = api.NewClient(base, http.DefaultClient)
	}

	return &CaptionClient{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

// Model returns the caption model name
func (c *CaptionClient) Model() string {
	return c.model
}

// Ping fails if the Ollama server is not reachable
func (c *CaptionClient) Ping(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama is not reachable: %w", err)
	}
	return nil
}

// Caption returns one trimmed caption for the PNG image at path
func (c *CaptionClient) Caption(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read frame '%s': %w", path, err)
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: "Write a short caption for this image.",
		Images: []api.ImageData{data},
		Stream: &stream,
		Options: map[string]any{
			"num_predict": c.maxTokens,
		},
	}

	var sb strings.Builder
	err = c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}

	caption := strings.TrimSpace(sb.String())
	c.logger.Debug("caption generated", "frame", path, "caption", caption)
	return caption, nil
}
