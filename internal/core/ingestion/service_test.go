package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/audit"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/chunk"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/document"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/vectorstore"
)

type fakeRepo struct {
	saved      *document.Document
	chunks     []chunk.Chunk
	vectorized []uuid.UUID
	saveErr    error
}

func (r *fakeRepo) SaveDocument(_ context.Context, doc *document.Document, chunks []chunk.Chunk) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = doc
	r.chunks = chunks
	return nil
}

func (r *fakeRepo) MarkVectorized(_ context.Context, documentID uuid.UUID) error {
	r.vectorized = append(r.vectorized, documentID)
	return nil
}

type fakeEmbedder struct {
	dimension int
	err       error
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, e.dimension)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}
func (e *fakeEmbedder) Dimension() int    { return e.dimension }
func (e *fakeEmbedder) ModelName() string { return "fake" }

func newPipeline(t *testing.T, repo *fakeRepo, auditStore audit.Store, opts ...Option) *Service {
	t.Helper()
	chunker, err := chunk.New(200, 20)
	require.NoError(t, err)
	return NewService(document.New(), chunker, repo, audit.NewRecorder(auditStore), opts...)
}

func TestIngestPersistsAndVectorizes(t *testing.T) {
	repo := &fakeRepo{}
	auditStore := audit.NewMemoryStore()
	vectors := vectorstore.NewMemoryStore()
	svc := newPipeline(t, repo, auditStore,
		WithVectorization(&fakeEmbedder{dimension: 4}, vectors, "legal_documents"))

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Raw:      []byte("The seller shall deliver the goods. The buyer shall pay within thirty days."),
		Format:   document.FormatText,
		ActorID:  "analyst-1",
		Metadata: map[string]string{"document_type": "contract"},
	})
	require.NoError(t, err)

	assert.True(t, res.Vectorized)
	assert.Equal(t, 1, res.Chunks)
	require.NotNil(t, repo.saved)
	assert.Equal(t, "contract", repo.saved.Metadata["document_type"])
	assert.Equal(t, 13, repo.saved.WordCount)
	require.Len(t, repo.vectorized, 1)
	assert.Equal(t, repo.saved.ID, repo.vectorized[0])

	// The chunk vector is searchable and carries the payload.
	query := make([]float32, 4)
	query[0] = 1
	hits, err := vectors.Search(context.Background(), "legal_documents", query, 1,
		map[string]string{"document_id": repo.saved.ID.String()})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, repo.chunks[0].ID, hits[0].ChunkID)
	assert.Equal(t, "contract", hits[0].Payload["document_type"])
	assert.Contains(t, hits[0].Payload["text"], "seller shall deliver")

	records := auditStore.Records()
	require.Len(t, records, 1)
	assert.Equal(t, audit.ActionDocumentIngest, records[0].ActionType)
	assert.Equal(t, audit.StatusSuccess, records[0].Status)
	assert.Equal(t, repo.saved.ID.String(), records[0].ResourceRef)
}

func TestIngestSurvivesEmbeddingFailure(t *testing.T) {
	repo := &fakeRepo{}
	auditStore := audit.NewMemoryStore()
	svc := newPipeline(t, repo, auditStore,
		WithVectorization(&fakeEmbedder{dimension: 4, err: errors.New("embedding service down")},
			vectorstore.NewMemoryStore(), "legal_documents"))

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Raw:    []byte("Short contract body."),
		Format: document.FormatText,
	})
	require.NoError(t, err, "a vectorization failure must not fail the ingest")

	assert.False(t, res.Vectorized)
	assert.NotNil(t, repo.saved)
	assert.Empty(t, repo.vectorized)

	records := auditStore.Records()
	require.Len(t, records, 1)
	assert.Equal(t, audit.StatusSuccess, records[0].Status)
	assert.Contains(t, records[0].ErrorMessage, "embedding service down")
}

func TestIngestWithoutVectorization(t *testing.T) {
	repo := &fakeRepo{}
	svc := newPipeline(t, repo, audit.NewMemoryStore())

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Raw:    []byte("Plain stored document."),
		Format: document.FormatText,
	})
	require.NoError(t, err)
	assert.False(t, res.Vectorized)
	assert.NotNil(t, repo.saved)
}

func TestIngestNormalizeFailureIsAudited(t *testing.T) {
	auditStore := audit.NewMemoryStore()
	svc := newPipeline(t, &fakeRepo{}, auditStore)

	_, err := svc.Ingest(context.Background(), IngestRequest{
		Raw:    []byte("   "),
		Format: document.FormatText,
	})
	assert.ErrorIs(t, err, document.ErrMalformedInput)

	records := auditStore.Records()
	require.Len(t, records, 1)
	assert.Equal(t, audit.StatusFailure, records[0].Status)
}

func TestIngestPersistFailure(t *testing.T) {
	repo := &fakeRepo{saveErr: errors.New("db unavailable")}
	svc := newPipeline(t, repo, audit.NewMemoryStore())

	_, err := svc.Ingest(context.Background(), IngestRequest{
		Raw:    []byte("Body."),
		Format: document.FormatText,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist document")
}
