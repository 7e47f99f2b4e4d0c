package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Status marks whether the audited operation succeeded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Action names for the audited operations.
const (
	ActionDocumentIngest    = "document_ingest"
	ActionInferenceDispatch = "inference_dispatch"
	ActionAnalysis          = "analysis"
	ActionSearch            = "search"
)

// Record is one immutable audit entry. Prompt and response bodies are never
// stored, only their SHA-256 digests, so the trail can prove integrity
// without retaining privileged content.
type Record struct {
	ID             uuid.UUID
	Timestamp      time.Time
	ActorID        string
	ActionType     string
	ResourceRef    string
	AgentType      string
	PromptHash     string
	ResponseHash   string
	TokensUsed     int
	Latency        time.Duration
	Status         Status
	ErrorMessage   string
	RetentionUntil time.Time
}

// HashContent returns the hex SHA-256 digest of content. Empty content hashes
// to the empty string, not the digest of zero bytes.
func HashContent(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
