package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/vectorstore"
)

// Store is a REST client to Qdrant implementing the vector store with cosine
// distance and must-match payload filters.
type Store struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Store)

func WithAPIKey(apiKey string) Option {
	return func(s *Store) {
		s.apiKey = apiKey
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Store) {
		s.httpClient = httpClient
	}
}

func New(baseURL string, opts ...Option) *Store {
	s := &Store{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ vectorstore.Store = (*Store)(nil)

// EnsureCollection creates the collection with cosine distance. Qdrant
// answers 200 when the collection already exists with the same schema.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", vectorstore.ErrDimensionMismatch, dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.baseURL, collection), body, nil)
}

func (s *Store) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	qdrantPoints := make([]map[string]any, len(points))
	for i, p := range points {
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload["chunk_id"] = p.ChunkID.String()
		qdrantPoints[i] = map[string]any{
			"id":      p.ChunkID.String(),
			"vector":  p.Vector,
			"payload": payload,
		}
	}
	body := map[string]any{"points": qdrantPoints}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.baseURL, collection), body, nil)
}

func (s *Store) Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.ScoredPoint, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
		req["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.baseURL, collection), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]vectorstore.ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := vectorstore.ScoredPoint{
			Score:   r.Score,
			Payload: make(map[string]string, len(r.Payload)),
		}
		if id, err := uuid.Parse(r.ID); err == nil {
			hit.ChunkID = id
		}
		for key, value := range r.Payload {
			if str, ok := value.(string); ok {
				hit.Payload[key] = str
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *Store) putJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, out)
}

func (s *Store) postJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *Store) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal qdrant request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, url)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
