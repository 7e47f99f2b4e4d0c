package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashContent(t *testing.T) {
	sum := sha256.Sum256([]byte("confidential clause"))
	assert.Equal(t, hex.EncodeToString(sum[:]), HashContent("confidential clause"))
	assert.Equal(t, HashContent("a"), HashContent("a"), "hashing is deterministic")
	assert.Empty(t, HashContent(""))
}

func TestRecorderStoresHashesNotContent(t *testing.T) {
	store := NewMemoryStore()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recorder := NewRecorder(store, WithClock(func() time.Time { return fixed }), WithRetentionDays(30))

	rec, err := recorder.Record(context.Background(), Event{
		ActorID:     "analyst-1",
		ActionType:  ActionInferenceDispatch,
		ResourceRef: "doc-123",
		AgentType:   "contract_review",
		Prompt:      "review the indemnity clause",
		Response:    "the clause is mutual",
		TokensUsed:  64,
		Latency:     250 * time.Millisecond,
		Status:      StatusSuccess,
	})
	require.NoError(t, err)

	assert.Equal(t, HashContent("review the indemnity clause"), rec.PromptHash)
	assert.Equal(t, HashContent("the clause is mutual"), rec.ResponseHash)
	assert.NotContains(t, rec.PromptHash, "indemnity")
	assert.Equal(t, fixed, rec.Timestamp)
	assert.Equal(t, fixed.Add(30*24*time.Hour), rec.RetentionUntil)
	assert.Empty(t, rec.ErrorMessage)

	require.Len(t, store.Records(), 1)
}

func TestRecorderCapturesFailures(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store)

	rec, err := recorder.Record(context.Background(), Event{
		ActionType: ActionInferenceDispatch,
		Status:     StatusFailure,
		Err:        errors.New("backend timed out"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, rec.Status)
	assert.Equal(t, "backend timed out", rec.ErrorMessage)
}

type failingStore struct{}

func (failingStore) Append(context.Context, Record) error { return errors.New("disk full") }
func (failingStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("disk full")
}

func TestRecorderReportsDeliveryFailure(t *testing.T) {
	recorder := NewRecorder(failingStore{})

	rec, err := recorder.Record(context.Background(), Event{
		ActionType: ActionAnalysis,
		Status:     StatusSuccess,
	})
	assert.ErrorIs(t, err, ErrAuditDelivery)
	// The record is still returned so callers can log it.
	assert.NotEmpty(t, rec.ID)
}

func TestPurgeExpired(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := NewRecorder(store,
		WithClock(func() time.Time { return now.AddDate(0, 0, -10) }),
		WithRetentionDays(5))
	_, err := old.Record(context.Background(), Event{ActionType: ActionSearch, Status: StatusSuccess})
	require.NoError(t, err)

	fresh := NewRecorder(store,
		WithClock(func() time.Time { return now }),
		WithRetentionDays(5))
	_, err = fresh.Record(context.Background(), Event{ActionType: ActionSearch, Status: StatusSuccess})
	require.NoError(t, err)

	purged, err := fresh.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	require.Len(t, store.Records(), 1)
	assert.True(t, store.Records()[0].RetentionUntil.After(now))
}
