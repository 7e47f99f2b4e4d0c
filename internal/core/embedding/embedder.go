package embedding

import (
	"context"
	"errors"
)

var (
	// ErrBackendUnavailable is returned when the embedding backend cannot be
	// reached or keeps failing after retries.
	ErrBackendUnavailable = errors.New("embedding: backend unavailable")
	// ErrBackendRejection is returned when the backend rejects the request
	// itself. Retrying the same request cannot succeed.
	ErrBackendRejection = errors.New("embedding: request rejected by backend")
	// ErrInvalidResponse is returned when the backend answers with a response
	// the client cannot use, such as an undecodable body or a vector count
	// that does not match the input.
	ErrInvalidResponse = errors.New("embedding: invalid backend response")
	// ErrDimensionMismatch is returned when a backend produces vectors whose
	// dimension differs from the configured one.
	ErrDimensionMismatch = errors.New("embedding: vector dimension mismatch")
)

// Embedder produces dense vectors for text. Implementations must return one
// vector per input text, in input order, each with exactly Dimension elements.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}
