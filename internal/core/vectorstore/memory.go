package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used for tests and single-node setups
// without an external vector database.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	points    map[uuid.UUID]Point
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.collections[collection]; ok {
		if existing.dimension != dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
				ErrDimensionMismatch, collection, existing.dimension, dimension)
		}
		return nil
	}
	s.collections[collection] = &memoryCollection{
		dimension: dimension,
		points:    make(map[uuid.UUID]Point),
	}
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	for _, p := range points {
		if len(p.Vector) != col.dimension {
			return fmt.Errorf("%w: point %s has %d dimensions, collection %q wants %d",
				ErrDimensionMismatch, p.ChunkID, len(p.Vector), collection, col.dimension)
		}
	}
	for _, p := range points {
		stored := Point{
			ChunkID: p.ChunkID,
			Vector:  append([]float32(nil), p.Vector...),
			Payload: make(map[string]string, len(p.Payload)),
		}
		for k, v := range p.Payload {
			stored.Payload[k] = v
		}
		col.points[p.ChunkID] = stored
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, collection string, vector []float32, k int, filter map[string]string) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, collection)
	}
	if len(vector) != col.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q wants %d",
			ErrDimensionMismatch, len(vector), collection, col.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]ScoredPoint, 0, len(col.points))
	for _, p := range col.points {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		hits = append(hits, ScoredPoint{
			ChunkID: p.ChunkID,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	// Equal scores tie-break on chunk ID so results are stable.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return strings.Compare(hits[i].ChunkID.String(), hits[j].ChunkID.String()) < 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func matchesFilter(payload, filter map[string]string) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
