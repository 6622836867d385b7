package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
	"github.com/ollama/ollama/api"
)

const summarySystemPrompt = "You are a video summarization assistant. " +
	"You receive descriptions of frames sampled from a single video and write clear, factual summaries of it."

// one user message plus one reply
const agentMaxSteps = 2

// AgentClient generates text with a local Ollama model through an agent
type AgentClient struct {
	agent *agent.Agent
	model string
}

// NewAgentClient checks that Ollama is up at baseURL:port and sets up an
// agent for model. The ollama provider itself always dials
// localhost:11434, so baseURL and port only steer the reachability check.
func NewAgentClient(ctx context.Context, baseURL string, port int, model string, logger *slog.Logger) (*AgentClient, error) {
	host, err := url.Parse(baseURL + ":" + strconv.Itoa(port))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama address: %w", err)
	}
	if err := api.NewClient(host, http.DefaultClient).Heartbeat(ctx); err != nil {
		return nil, fmt.Errorf("ollama is not reachable at %s: %w", host, err)
	}

	l := logr.FromSlogHandler(logger.Handler())
	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  &l,
		BaseURL: baseURL,
		Port:    port,
	})

	return newAgentClient(ctx, provider, model, logger)
}

func newAgentClient(ctx context.Context, provider core.Provider, model string, logger *slog.Logger) (*AgentClient, error) {
	if err := provider.UseModel(ctx, &core.Model{ID: model}); err != nil {
		return nil, fmt.Errorf("failed to select model %s: %w", model, err)
	}

	l := logr.FromSlogHandler(logger.Handler())
	a, err := agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithSystemPrompt(summarySystemPrompt),
		bootstrap.WithMaxSteps(agentMaxSteps),
		bootstrap.WithLogger(&l),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &AgentClient{agent: a, model: model}, nil
}

// Model returns the agent's model name
func (c *AgentClient) Model() string {
	return c.model
}

// Generate runs the agent once on prompt and returns its reply
func (c *AgentClient) Generate(ctx context.Context, prompt string) (string, error) {
	agg, err := c.agent.Run(ctx, agent.WithInput(prompt))
	if err != nil {
		return "", fmt.Errorf("agent run with model %s failed: %w", c.model, err)
	}

	reply := agg.Pop()
	if reply == nil || reply.Role != core.AssistantMessageRole {
		return "", errors.New("no response message received from model " + c.model)
	}
	return reply.Content, nil
}
