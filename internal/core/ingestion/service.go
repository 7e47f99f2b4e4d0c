package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/audit"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/chunk"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/document"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/embedding"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/vectorstore"
)

// Repository persists normalized documents and their chunks.
type Repository interface {
	SaveDocument(ctx context.Context, doc *document.Document, chunks []chunk.Chunk) error
	// MarkVectorized flags the document once its chunk vectors are stored.
	MarkVectorized(ctx context.Context, documentID uuid.UUID) error
}

// IngestRequest carries one raw file into the pipeline. Metadata supplies
// caller-provided fields such as document_type; metadata parsed from the file
// itself takes precedence on conflicts.
type IngestRequest struct {
	Raw      []byte
	Format   document.Format
	ActorID  string
	Metadata map[string]string
}

// IngestResult reports what the pipeline produced. Vectorized is false when
// embedding or vector storage failed; the document and chunks are still
// persisted and can be vectorized later.
type IngestResult struct {
	Document   *document.Document
	Chunks     int
	Vectorized bool
}

// Service runs the ingestion pipeline: normalize, chunk, persist, embed,
// upsert vectors, audit. Persisting the document is mandatory; vectorization
// is best-effort.
type Service struct {
	normalizer *document.Normalizer
	chunker    *chunk.Chunker
	repo       Repository
	embedder   embedding.Embedder
	vectors    vectorstore.Store
	recorder   *audit.Recorder
	collection string
	logger     *slog.Logger
}

type Option func(*Service)

// WithVectorization wires the embedding client and vector store. Without it
// documents are persisted but never vectorized.
func WithVectorization(embedder embedding.Embedder, store vectorstore.Store, collection string) Option {
	return func(s *Service) {
		s.embedder = embedder
		s.vectors = store
		s.collection = collection
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(normalizer *document.Normalizer, chunker *chunk.Chunker, repo Repository, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		normalizer: normalizer,
		chunker:    chunker,
		repo:       repo,
		recorder:   recorder,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest processes one raw document end to end.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	doc, err := s.normalizer.Normalize(req.Raw, req.Format)
	if err != nil {
		s.auditIngest(ctx, req.ActorID, "", audit.StatusFailure, err)
		return nil, fmt.Errorf("normalize: %w", err)
	}
	for k, v := range req.Metadata {
		if _, exists := doc.Metadata[k]; !exists {
			doc.Metadata[k] = v
		}
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		s.auditIngest(ctx, req.ActorID, doc.ID.String(), audit.StatusFailure, err)
		return nil, fmt.Errorf("chunk: %w", err)
	}

	if err := s.repo.SaveDocument(ctx, doc, chunks); err != nil {
		s.auditIngest(ctx, req.ActorID, doc.ID.String(), audit.StatusFailure, err)
		return nil, fmt.Errorf("persist document: %w", err)
	}

	result := &IngestResult{Document: doc, Chunks: len(chunks)}

	vecErr := s.vectorize(ctx, doc, chunks)
	switch {
	case vecErr != nil:
		s.logger.Warn("vectorization failed, document stored without vectors",
			"document_id", doc.ID,
			"error", vecErr,
		)
	case s.vectors != nil && len(chunks) > 0:
		result.Vectorized = true
	}

	s.auditIngest(ctx, req.ActorID, doc.ID.String(), audit.StatusSuccess, vecErr)
	s.logger.Info("document ingested",
		"document_id", doc.ID,
		"format", string(doc.SourceFormat),
		"sections", len(doc.Sections),
		"chunks", len(chunks),
		"words", doc.WordCount,
		"partial", doc.Partial,
		"vectorized", result.Vectorized,
	)
	return result, nil
}

// vectorize embeds the chunks and upserts them into the document collection.
func (s *Service) vectorize(ctx context.Context, doc *document.Document, chunks []chunk.Chunk) error {
	if s.vectors == nil || s.embedder == nil || len(chunks) == 0 {
		return nil
	}

	if err := s.vectors.EnsureCollection(ctx, s.collection, s.embedder.Dimension()); err != nil {
		return fmt.Errorf("ensure collection %q: %w", s.collection, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.Point{
			ChunkID: c.ID,
			Vector:  vectors[i],
			Payload: pointPayload(doc, c),
		}
	}
	if err := s.vectors.Upsert(ctx, s.collection, points); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	if err := s.repo.MarkVectorized(ctx, doc.ID); err != nil {
		return fmt.Errorf("mark vectorized: %w", err)
	}
	return nil
}

func pointPayload(doc *document.Document, c chunk.Chunk) map[string]string {
	payload := map[string]string{
		"document_id": doc.ID.String(),
		"ordinal":     strconv.Itoa(c.Ordinal),
		"text":        c.Text,
	}
	if doc.Language != "" {
		payload["language"] = doc.Language
	}
	if docType := doc.Metadata["document_type"]; docType != "" {
		payload["document_type"] = docType
	}
	return payload
}

func (s *Service) auditIngest(ctx context.Context, actorID, resourceRef string, status audit.Status, err error) {
	_, _ = s.recorder.Record(ctx, audit.Event{
		ActorID:     actorID,
		ActionType:  audit.ActionDocumentIngest,
		ResourceRef: resourceRef,
		Status:      status,
		Err:         err,
	})
}
