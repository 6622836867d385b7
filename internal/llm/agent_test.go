package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/agent-api/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	model    string
	useErr   error
	reply    string
	genErr   error
	requests []*core.GenerateOptions
}

func (p *fakeProvider) GetCapabilities(context.Context) (*core.Capabilities, error) {
	return nil, nil
}

func (p *fakeProvider) UseModel(_ context.Context, model *core.Model) error {
	p.model = model.ID
	return p.useErr
}

func (p *fakeProvider) Generate(_ context.Context, opts *core.GenerateOptions) (*core.Message, error) {
	p.requests = append(p.requests, opts)
	if p.genErr != nil {
		return nil, p.genErr
	}
	return &core.Message{Role: core.AssistantMessageRole, Content: p.reply}, nil
}

func (p *fakeProvider) GenerateStream(context.Context, *core.GenerateOptions) (<-chan *core.Message, <-chan string, <-chan error) {
	return nil, nil, nil
}

func TestAgentClientGenerate(t *testing.T) {
	provider := &fakeProvider{reply: "A penalty kick is scored."}

	client, err := newAgentClient(t.Context(), provider, "llama3.2", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", client.Model())
	assert.Equal(t, "llama3.2", provider.model)

	text, err := client.Generate(t.Context(), "summarize these frames")
	require.NoError(t, err)
	assert.Equal(t, "A penalty kick is scored.", text)

	require.Len(t, provider.requests, 1)
	messages := provider.requests[0].Messages
	require.NotEmpty(t, messages)
	assert.Equal(t, core.UserMessageRole, messages[len(messages)-1].Role)
	assert.Equal(t, "summarize these frames", messages[len(messages)-1].Content)
}

func TestAgentClientErrors(t *testing.T) {
	t.Run("ModelSelection", func(t *testing.T) {
		_, err := newAgentClient(t.Context(), &fakeProvider{useErr: errors.New("unknown model")}, "nope", discardLogger())
		assert.ErrorContains(t, err, "unknown model")
	})

	t.Run("ProviderFailure", func(t *testing.T) {
		boom := errors.New("connection refused")
		client, err := newAgentClient(t.Context(), &fakeProvider{genErr: boom}, "llama3.2", discardLogger())
		require.NoError(t, err)

		_, err = client.Generate(t.Context(), "prompt")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("EmptyReplyIsOneRequest", func(t *testing.T) {
		provider := &fakeProvider{reply: ""}
		client, err := newAgentClient(t.Context(), provider, "llama3.2", discardLogger())
		require.NoError(t, err)

		_, err = client.Generate(t.Context(), "prompt")
		assert.Error(t, err)
		assert.Len(t, provider.requests, 1)
	})
}

func TestNewAgentClientChecksOllama(t *testing.T) {
	t.Run("Reachable", func(t *testing.T) {
		var heartbeats int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				heartbeats++
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)

		client, err := NewAgentClient(t.Context(), "http://"+host, port, "llama3.2", discardLogger())
		require.NoError(t, err)
		assert.Equal(t, "llama3.2", client.Model())
		assert.Equal(t, 1, heartbeats)
	})

	t.Run("Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.Listener.Addr().String()
		srv.Close()

		host, portStr, err := net.SplitHostPort(addr)
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)

		_, err = NewAgentClient(t.Context(), "http://"+host, port, "llama3.2", discardLogger())
		assert.ErrorContains(t, err, "ollama is not reachable")
	})
}
