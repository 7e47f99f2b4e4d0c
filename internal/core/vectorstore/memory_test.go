package vectorstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreEnsureCollection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.EnsureCollection(ctx, "legal_contracts", 3))
	require.NoError(t, store.EnsureCollection(ctx, "legal_contracts", 3), "re-creating is a no-op")

	err := store.EnsureCollection(ctx, "legal_contracts", 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryStoreUpsertValidatesDimension(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureCollection(ctx, "c", 3))

	err := store.Upsert(ctx, "c", []Point{{ChunkID: uuid.New(), Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = store.Upsert(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestMemoryStoreUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureCollection(ctx, "c", 2))

	id := uuid.New()
	require.NoError(t, store.Upsert(ctx, "c", []Point{
		{ChunkID: id, Vector: []float32{1, 0}, Payload: map[string]string{"v": "old"}},
	}))
	require.NoError(t, store.Upsert(ctx, "c", []Point{
		{ChunkID: id, Vector: []float32{0, 1}, Payload: map[string]string{"v": "new"}},
	}))

	hits, err := store.Search(ctx, "c", []float32{0, 1}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1, "re-upserting the same chunk must not duplicate it")
	assert.Equal(t, id, hits[0].ChunkID)
	assert.Equal(t, "new", hits[0].Payload["v"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestMemoryStoreSearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureCollection(ctx, "c", 2))

	near := uuid.New()
	mid := uuid.New()
	far := uuid.New()
	require.NoError(t, store.Upsert(ctx, "c", []Point{
		{ChunkID: far, Vector: []float32{-1, 0}},
		{ChunkID: near, Vector: []float32{1, 0}},
		{ChunkID: mid, Vector: []float32{1, 1}},
	}))

	hits, err := store.Search(ctx, "c", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, near, hits[0].ChunkID)
	assert.Equal(t, mid, hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemoryStoreSearchPayloadFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureCollection(ctx, "c", 2))

	docA := uuid.New()
	docB := uuid.New()
	require.NoError(t, store.Upsert(ctx, "c", []Point{
		{ChunkID: docA, Vector: []float32{1, 0}, Payload: map[string]string{"document_id": "a"}},
		{ChunkID: docB, Vector: []float32{1, 0}, Payload: map[string]string{"document_id": "b"}},
	}))

	hits, err := store.Search(ctx, "c", []float32{1, 0}, 10, map[string]string{"document_id": "b"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, docB, hits[0].ChunkID)
}

func TestMemoryStoreSearchErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureCollection(ctx, "c", 2))

	_, err := store.Search(ctx, "missing", []float32{1, 0}, 1, nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = store.Search(ctx, "c", []float32{1, 0, 0}, 1, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
