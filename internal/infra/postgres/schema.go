package postgres

import (
	"context"
	"fmt"

	"github.com/wongivan852/legal-financial-ai-vault/pkg/db"
)

// schema is applied idempotently at startup. The vector extension backs the
// pgvector-based vector store.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		source_format TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}',
		partial BOOLEAN NOT NULL DEFAULT FALSE,
		word_count INTEGER NOT NULL DEFAULT 0,
		vectorized BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS document_sections (
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		heading TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (document_id, ordinal)
	)`,

	`CREATE TABLE IF NOT EXISTS document_chunks (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		ordinal INTEGER NOT NULL,
		section_refs INTEGER[] NOT NULL DEFAULT '{}',
		chunk_text TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		overlap_with_prev BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (document_id, ordinal)
	)`,

	`CREATE TABLE IF NOT EXISTS analyses (
		id UUID PRIMARY KEY,
		document_id UUID REFERENCES documents(id) ON DELETE SET NULL,
		agent TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL,
		tokens_used INTEGER NOT NULL DEFAULT 0,
		chunks_used INTEGER NOT NULL DEFAULT 0,
		model TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS audit_records (
		id UUID PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		action_type TEXT NOT NULL,
		resource_ref TEXT NOT NULL DEFAULT '',
		agent_type TEXT NOT NULL DEFAULT '',
		prompt_hash TEXT NOT NULL DEFAULT '',
		response_hash TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		retention_until TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS audit_records_retention_idx
		ON audit_records (retention_until)`,

	`CREATE TABLE IF NOT EXISTS vector_collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS vector_points (
		collection TEXT NOT NULL REFERENCES vector_collections(name) ON DELETE CASCADE,
		chunk_id UUID NOT NULL,
		embedding vector NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}',
		PRIMARY KEY (collection, chunk_id)
	)`,

	`CREATE INDEX IF NOT EXISTS vector_points_payload_idx
		ON vector_points USING gin (payload)`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, database *db.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := database.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
