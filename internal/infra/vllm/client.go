package vllm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/inference"
)

// ChatClient talks to self-hosted vLLM servers through their OpenAI
// compatible API. One SDK client is cached per endpoint. SDK-level retries
// are disabled: the router owns the retry policy.
type ChatClient struct {
	mu      sync.Mutex
	clients map[string]openai.Client
}

func NewChatClient() *ChatClient {
	return &ChatClient{
		clients: make(map[string]openai.Client),
	}
}

var _ inference.ChatClient = (*ChatClient)(nil)

func (c *ChatClient) clientFor(backend inference.Backend) openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[backend.Endpoint]; ok {
		return client
	}

	apiKey := backend.APIKey
	if apiKey == "" {
		// vLLM requires a bearer token header even when auth is disabled.
		apiKey = "none"
	}
	client := openai.NewClient(
		option.WithBaseURL(backend.Endpoint+"/v1"),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	c.clients[backend.Endpoint] = client
	return client
}

// Chat executes one completion. Failures are wrapped in the inference
// sentinels so the router can classify them: 4xx responses become
// ErrBackendError, everything else transient becomes ErrBackendUnavailable.
func (c *ChatClient) Chat(ctx context.Context, backend inference.Backend, req inference.ChatRequest) (*inference.ChatResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(backend.Model),
		Messages:    toSDKMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	client := c.clientFor(backend)
	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, backend, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s returned no choices", inference.ErrBackendError, backend.Name)
	}

	return &inference.ChatResponse{
		Content:    completion.Choices[0].Message.Content,
		Model:      string(completion.Model),
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

func toSDKMessages(messages []inference.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case inference.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case inference.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func classify(ctx context.Context, backend inference.Backend, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s returned %d", inference.ErrBackendUnavailable, backend.Name, apiErr.StatusCode)
		}
		return fmt.Errorf("%w: %s returned %d: %v", inference.ErrBackendError, backend.Name, apiErr.StatusCode, err)
	}
	return fmt.Errorf("%w: %s: %v", inference.ErrBackendUnavailable, backend.Name, err)
}

// Prober checks vLLM's health endpoint.
type Prober struct {
	httpClient *http.Client
}

func NewProber() *Prober {
	return &Prober{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

var _ inference.Prober = (*Prober)(nil)

func (p *Prober) Probe(ctx context.Context, backend inference.Backend) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, backend.Endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}
