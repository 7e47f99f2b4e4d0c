package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/analysis"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/chunk"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/document"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/inference"
	"github.com/wongivan852/legal-financial-ai-vault/internal/core/ingestion"
	"github.com/wongivan852/legal-financial-ai-vault/pkg/db"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("postgres: not found")

// Repository persists documents, sections, chunks and analyses.
type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

var (
	_ ingestion.Repository   = (*Repository)(nil)
	_ analysis.DocumentStore = (*Repository)(nil)
)

// SaveDocument stores the document with its sections and chunks in one
// transaction.
func (r *Repository) SaveDocument(ctx context.Context, doc *document.Document, chunks []chunk.Chunk) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, source_format, language, metadata, partial, word_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, string(doc.SourceFormat), doc.Language, metadata, doc.Partial, doc.WordCount, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	for _, s := range doc.Sections {
		_, err = tx.Exec(ctx, `
			INSERT INTO document_sections (document_id, ordinal, heading, body, level)
			VALUES ($1, $2, $3, $4, $5)`,
			doc.ID, s.Ordinal, s.Heading, s.Body, s.Level)
		if err != nil {
			return fmt.Errorf("insert section %d: %w", s.Ordinal, err)
		}
	}

	for _, c := range chunks {
		refs := make([]int32, len(c.SectionRefs))
		for i, ref := range c.SectionRefs {
			refs[i] = int32(ref)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO document_chunks (id, document_id, ordinal, section_refs, chunk_text, start_offset, end_offset, overlap_with_prev)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.DocumentID, c.Ordinal, refs, c.Text, c.StartOffset, c.EndOffset, c.OverlapWithPrev)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Ordinal, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) MarkVectorized(ctx context.Context, documentID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET vectorized = TRUE WHERE id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("mark vectorized: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	var (
		doc      document.Document
		format   string
		metadata []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, source_format, language, metadata, partial, word_count, created_at
		FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &format, &doc.Language, &metadata, &doc.Partial, &doc.WordCount, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	doc.SourceFormat = document.Format(format)
	if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT ordinal, heading, body, level
		FROM document_sections WHERE document_id = $1 ORDER BY ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("select sections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s document.Section
		if err := rows.Scan(&s.Ordinal, &s.Heading, &s.Body, &s.Level); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		doc.Sections = append(doc.Sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return &doc, nil
}

// IsVectorized reports whether the document's chunk vectors were stored.
func (r *Repository) IsVectorized(ctx context.Context, id uuid.UUID) (bool, error) {
	var vectorized bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT vectorized FROM documents WHERE id = $1`, id).Scan(&vectorized)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if err != nil {
		return false, err
	}
	return vectorized, nil
}

func (r *Repository) GetChunks(ctx context.Context, documentID uuid.UUID) ([]chunk.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, document_id, ordinal, section_refs, chunk_text, start_offset, end_offset, overlap_with_prev
		FROM document_chunks WHERE document_id = $1 ORDER BY ordinal`, documentID)
	if err != nil {
		return nil, fmt.Errorf("select chunks: %w", err)
	}
	defer rows.Close()

	var chunks []chunk.Chunk
	for rows.Next() {
		var (
			c    chunk.Chunk
			refs []int32
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &refs, &c.Text,
			&c.StartOffset, &c.EndOffset, &c.OverlapWithPrev); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.SectionRefs = make([]int, len(refs))
		for i, ref := range refs {
			c.SectionRefs[i] = int(ref)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

func (r *Repository) SaveAnalysis(ctx context.Context, a *analysis.Analysis) error {
	var documentID *uuid.UUID
	if a.DocumentID != uuid.Nil {
		documentID = &a.DocumentID
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO analyses (id, document_id, agent, query, result, tokens_used, chunks_used, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, documentID, string(a.Agent), a.Query, a.Result, a.TokensUsed, a.ChunksUsed, a.Model, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetAnalyses lists a document's analyses, newest first.
func (r *Repository) GetAnalyses(ctx context.Context, documentID uuid.UUID) ([]analysis.Analysis, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, document_id, agent, query, result, tokens_used, chunks_used, model, created_at
		FROM analyses WHERE document_id = $1 ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("select analyses: %w", err)
	}
	defer rows.Close()

	var out []analysis.Analysis
	for rows.Next() {
		var (
			a     analysis.Analysis
			docID *uuid.UUID
			agent string
		)
		if err := rows.Scan(&a.ID, &docID, &agent, &a.Query, &a.Result,
			&a.TokensUsed, &a.ChunksUsed, &a.Model, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		if docID != nil {
			a.DocumentID = *docID
		}
		a.Agent = inference.AgentType(agent)
		out = append(out, a)
	}
	return out, rows.Err()
}
