package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/vectorstore"
	"github.com/wongivan852/legal-financial-ai-vault/pkg/db"
)

// VectorStore keeps embeddings in the vector_points table using pgvector
// cosine distance. It shares the relational database, trading search
// throughput for one less moving part compared to the Qdrant store.
type VectorStore struct {
	db *db.DB
}

func NewVectorStore(database *db.DB) *VectorStore {
	return &VectorStore{db: database}
}

var _ vectorstore.Store = (*VectorStore)(nil)

func (s *VectorStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", vectorstore.ErrDimensionMismatch, dimension)
	}

	var existing int
	err := s.db.Pool.QueryRow(ctx,
		`SELECT dimension FROM vector_collections WHERE name = $1`, collection).Scan(&existing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = s.db.Pool.Exec(ctx, `
			INSERT INTO vector_collections (name, dimension) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING`, collection, dimension)
		if err != nil {
			return fmt.Errorf("create collection %q: %w", collection, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("lookup collection %q: %w", collection, err)
	case existing != dimension:
		return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
			vectorstore.ErrDimensionMismatch, collection, existing, dimension)
	}
	return nil
}

func (s *VectorStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	dimension, err := s.collectionDimension(ctx, collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != dimension {
			return fmt.Errorf("%w: point %s has %d dimensions, collection %q wants %d",
				vectorstore.ErrDimensionMismatch, p.ChunkID, len(p.Vector), collection, dimension)
		}
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO vector_points (collection, chunk_id, embedding, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (collection, chunk_id)
			DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`,
			collection, p.ChunkID, pgvector.NewVector(p.Vector), payload)
		if err != nil {
			return fmt.Errorf("upsert point %s: %w", p.ChunkID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *VectorStore) Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.ScoredPoint, error) {
	dimension, err := s.collectionDimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %q wants %d",
			vectorstore.ErrDimensionMismatch, len(vector), collection, dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}

	// Cosine similarity is 1 - cosine distance (<=> operator).
	rows, err := s.db.Pool.Query(ctx, `
		SELECT chunk_id, 1 - (embedding <=> $2) AS score, payload
		FROM vector_points
		WHERE collection = $1 AND payload @> $3
		ORDER BY embedding <=> $2, chunk_id
		LIMIT $4`,
		collection, pgvector.NewVector(vector), filterJSON, k)
	if err != nil {
		return nil, fmt.Errorf("search collection %q: %w", collection, err)
	}
	defer rows.Close()

	var hits []vectorstore.ScoredPoint
	for rows.Next() {
		var (
			hit     vectorstore.ScoredPoint
			score   float64
			payload []byte
		)
		if err := rows.Scan(&hit.ChunkID, &score, &payload); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hit.Score = float32(score)
		if err := json.Unmarshal(payload, &hit.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *VectorStore) collectionDimension(ctx context.Context, collection string) (int, error) {
	var dimension int
	err := s.db.Pool.QueryRow(ctx,
		`SELECT dimension FROM vector_collections WHERE name = $1`, collection).Scan(&dimension)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", vectorstore.ErrCollectionNotFound, collection)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup collection %q: %w", collection, err)
	}
	return dimension, nil
}
