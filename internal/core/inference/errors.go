package inference

import "errors"

var (
	// ErrNoHealthyBackend is returned without contacting the backend when the
	// agent's backend is marked down.
	ErrNoHealthyBackend = errors.New("inference: no healthy backend")
	// ErrTimeout is returned when a backend call exceeds the dispatch timeout.
	ErrTimeout = errors.New("inference: backend timed out")
	// ErrBackendError marks a non-retryable backend rejection (a malformed or
	// refused request). It does not count against backend health.
	ErrBackendError = errors.New("inference: backend rejected request")
	// ErrBackendUnavailable marks a transient failure: connection errors and
	// server-side 5xx responses. Eligible for one retry.
	ErrBackendUnavailable = errors.New("inference: backend unavailable")
	// ErrUnknownAgent is returned for agent types with no configured backend.
	ErrUnknownAgent = errors.New("inference: unknown agent")
)
