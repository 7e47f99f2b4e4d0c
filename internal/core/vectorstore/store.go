package vectorstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrDimensionMismatch is returned when a point's vector width differs
	// from the collection's configured dimension.
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
	// ErrCollectionNotFound is returned when operating on a collection that
	// was never created.
	ErrCollectionNotFound = errors.New("vectorstore: collection not found")
)

// Point is one stored vector with its chunk identity and filterable payload.
type Point struct {
	ChunkID uuid.UUID
	Vector  []float32
	Payload map[string]string
}

// ScoredPoint is a search hit. Score is cosine similarity in [-1, 1], higher
// is more similar.
type ScoredPoint struct {
	ChunkID uuid.UUID
	Score   float32
	Payload map[string]string
}

// Store persists and searches embedding vectors grouped into named
// collections. Upserts are idempotent on ChunkID: re-writing a point replaces
// the stored vector and payload.
type Store interface {
	// EnsureCollection creates the collection if missing. Calling it again
	// with the same dimension is a no-op.
	EnsureCollection(ctx context.Context, collection string, dimension int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns the k nearest points by cosine similarity, most similar
	// first. filter restricts hits to points whose payload contains every
	// given key/value pair.
	Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]ScoredPoint, error)
}
