package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/audit"
	"github.com/wongivan852/legal-financial-ai-vault/pkg/db"
)

// AuditStore is the append-only audit trail backed by the audit_records
// table. Records are never updated; purging is the only delete path.
type AuditStore struct {
	db *db.DB
}

func NewAuditStore(database *db.DB) *AuditStore {
	return &AuditStore{db: database}
}

var _ audit.Store = (*AuditStore)(nil)

func (s *AuditStore) Append(ctx context.Context, record audit.Record) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO audit_records
			(id, ts, actor_id, action_type, resource_ref, agent_type,
			 prompt_hash, response_hash, tokens_used, latency_ms, status,
			 error_message, retention_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.ID, record.Timestamp, record.ActorID, record.ActionType,
		record.ResourceRef, record.AgentType, record.PromptHash,
		record.ResponseHash, record.TokensUsed, record.Latency.Milliseconds(),
		string(record.Status), record.ErrorMessage, record.RetentionUntil)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *AuditStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM audit_records WHERE retention_until < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge audit records: %w", err)
	}
	return tag.RowsAffected(), nil
}
