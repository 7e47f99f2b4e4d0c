package analysis

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wongivan852/legal-financial-ai-vault/internal/core/inference"
)

var (
	// ErrNoChunks is returned when a document has no stored chunks to analyze.
	ErrNoChunks = errors.New("analysis: document has no chunks")
)

// AnalyzeRequest asks one agent to analyze a stored document.
type AnalyzeRequest struct {
	DocumentID uuid.UUID
	Agent      inference.AgentType
	Query      string
	ActorID    string
}

// Analysis is a completed agent run. For document-less operations such as
// legal research, DocumentID is uuid.Nil.
type Analysis struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Agent      inference.AgentType
	Query      string
	Result     string
	TokensUsed int
	ChunksUsed int
	Model      string
	CreatedAt  time.Time
}
