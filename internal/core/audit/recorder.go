package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAuditDelivery is returned when an audit record could not be persisted.
// Callers treat audit persistence as best-effort: the failure is surfaced but
// never aborts the operation being audited.
var ErrAuditDelivery = errors.New("audit: record delivery failed")

// DefaultRetentionDays is seven years, matching legal record-keeping
// obligations for financial and contractual documents.
const DefaultRetentionDays = 2555

// Store persists audit records.
type Store interface {
	Append(ctx context.Context, record Record) error
	// PurgeExpired deletes records whose retention window has passed,
	// returning how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Event is the caller-facing input for one audit entry. Prompt and Response
// carry the raw bodies; the recorder stores only their hashes.
type Event struct {
	ActorID     string
	ActionType  string
	ResourceRef string
	AgentType   string
	Prompt      string
	Response    string
	TokensUsed  int
	Latency     time.Duration
	Status      Status
	Err         error
}

// Recorder builds and persists audit records. A failed append is logged and
// reported as ErrAuditDelivery without blocking the audited operation.
type Recorder struct {
	store     Store
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type RecorderOption func(*Recorder)

func WithRetentionDays(days int) RecorderOption {
	return func(r *Recorder) {
		if days > 0 {
			r.retention = time.Duration(days) * 24 * time.Hour
		}
	}
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:     store,
		retention: DefaultRetentionDays * 24 * time.Hour,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists one audit entry and returns it.
func (r *Recorder) Record(ctx context.Context, event Event) (Record, error) {
	now := r.now().UTC()
	record := Record{
		ID:             uuid.New(),
		Timestamp:      now,
		ActorID:        event.ActorID,
		ActionType:     event.ActionType,
		ResourceRef:    event.ResourceRef,
		AgentType:      event.AgentType,
		PromptHash:     HashContent(event.Prompt),
		ResponseHash:   HashContent(event.Response),
		TokensUsed:     event.TokensUsed,
		Latency:        event.Latency,
		Status:         event.Status,
		RetentionUntil: now.Add(r.retention),
	}
	if event.Err != nil {
		record.ErrorMessage = event.Err.Error()
	}

	if err := r.store.Append(ctx, record); err != nil {
		r.logger.Error("audit record lost",
			"action", record.ActionType,
			"resource", record.ResourceRef,
			"error", err,
		)
		return record, fmt.Errorf("%w: %v", ErrAuditDelivery, err)
	}
	return record, nil
}

// PurgeExpired removes records past their retention window.
func (r *Recorder) PurgeExpired(ctx context.Context) (int64, error) {
	return r.store.PurgeExpired(ctx, r.now().UTC())
}

// MemoryStore is an in-process Store for tests and single-node use.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var purged int64
	for _, rec := range s.records {
		if rec.RetentionUntil.Before(now) {
			purged++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return purged, nil
}

// Records returns a copy of all stored records in append order.
func (s *MemoryStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}
