package embedhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/embedding"
)

const (
	// DefaultBatchSize caps how many texts are sent per request.
	DefaultBatchSize = 32
	// DefaultMaxAttempts bounds retries for transport and server errors.
	DefaultMaxAttempts = 3

	defaultBaseBackoff = 500 * time.Millisecond
	maxBackoff         = 8 * time.Second
)

// Client calls a self-hosted embedding service over its JSON batch endpoint.
// Requests are split into sub-batches; transport failures and 5xx responses
// are retried with exponential backoff and jitter, while malformed responses
// fail immediately.
type Client struct {
	baseURL     string
	model       string
	dimension   int
	batchSize   int
	maxAttempts int
	baseBackoff time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

type Option func(*Client)

func WithBatchSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.batchSize = size
		}
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the base backoff between retries.
func WithRetryBackoff(base time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseBackoff = base
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the embedding service at baseURL. dimension is the
// expected vector width; responses with any other width are rejected.
func New(baseURL, model string, dimension int, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		model:       model,
		dimension:   dimension,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ embedding.Embedder = (*Client)(nil)

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// EmbedBatch embeds texts in input order, splitting into sub-batches.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// embedOnce sends one sub-batch, retrying transient failures.
func (c *Client) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleepBackoff(ctx, attempt-1); err != nil {
				return nil, err
			}
			c.logger.Warn("retrying embedding request",
				"attempt", attempt,
				"batch_size", len(texts),
				"error", lastErr,
			)
		}

		vectors, retryable, err := c.doRequest(ctx, body, len(texts))
		if err == nil {
			return vectors, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %d attempts failed: %v", embedding.ErrBackendUnavailable, c.maxAttempts, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte, want int) (vectors [][]float32, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("embedding service returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: embedding service returned %d", embedding.ErrBackendRejection, resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("%w: decode response: %v", embedding.ErrInvalidResponse, err)
	}
	if len(parsed.Vectors) != want {
		return nil, false, fmt.Errorf("%w: got %d vectors for %d texts", embedding.ErrInvalidResponse, len(parsed.Vectors), want)
	}
	for i, v := range parsed.Vectors {
		if len(v) != c.dimension {
			return nil, false, fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				embedding.ErrDimensionMismatch, i, len(v), c.dimension)
		}
	}
	return parsed.Vectors, false, nil
}

// Healthy reports whether the service health endpoint responds with 200.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) ModelName() string {
	return c.model
}

func (c *Client) sleepBackoff(ctx context.Context, failures int) error {
	backoff := c.baseBackoff << (failures - 1)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff + jitter):
		return nil
	}
}
