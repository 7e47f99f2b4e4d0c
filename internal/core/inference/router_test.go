package inference

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatClient struct {
	calls     int
	responses []stubCall
}

type stubCall struct {
	resp *ChatResponse
	err  error
	wait time.Duration
}

func (c *stubChatClient) Chat(ctx context.Context, backend Backend, req ChatRequest) (*ChatResponse, error) {
	call := c.responses[c.calls]
	c.calls++
	if call.wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(call.wait):
		}
	}
	return call.resp, call.err
}

func testBackends() map[AgentType]Backend {
	return map[AgentType]Backend{
		AgentContractReview: {Name: "vllm-contract", Endpoint: "http://contract:8000", Model: "llama-3-8b"},
		AgentCompliance:     {Name: "vllm-compliance", Endpoint: "http://compliance:8000", Model: "llama-3-8b"},
	}
}

func TestDispatchSuccess(t *testing.T) {
	client := &stubChatClient{responses: []stubCall{
		{resp: &ChatResponse{Content: "reviewed", TokensUsed: 42}},
	}}
	router := NewRouter(testBackends(), NewRegistry(3, 3), client)

	resp, err := router.Dispatch(context.Background(), AgentContractReview, ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "review this"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "reviewed", resp.Content)
	assert.Equal(t, 1, client.calls)
}

func TestDispatchUnknownAgent(t *testing.T) {
	router := NewRouter(testBackends(), NewRegistry(3, 3), &stubChatClient{})

	_, err := router.Dispatch(context.Background(), AgentType("summarizer"), ChatRequest{})
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestDispatchFailsFastWhenBackendDown(t *testing.T) {
	registry := NewRegistry(1, 1)
	registry.RecordFailure("vllm-contract")
	registry.RecordFailure("vllm-contract")
	require.Equal(t, StateDown, registry.State("vllm-contract"))

	client := &stubChatClient{}
	router := NewRouter(testBackends(), registry, client)

	_, err := router.Dispatch(context.Background(), AgentContractReview, ChatRequest{})
	assert.ErrorIs(t, err, ErrNoHealthyBackend)
	assert.Equal(t, 0, client.calls, "a down backend must not be contacted")
}

func TestDispatchRetriesTransientOnce(t *testing.T) {
	client := &stubChatClient{responses: []stubCall{
		{err: ErrBackendUnavailable},
		{resp: &ChatResponse{Content: "ok"}},
	}}
	registry := NewRegistry(3, 3)
	router := NewRouter(testBackends(), registry, client, WithRetryDelay(time.Millisecond))

	resp, err := router.Dispatch(context.Background(), AgentContractReview, ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, StateHealthy, registry.State("vllm-contract"))
}

func TestDispatchGivesUpAfterOneRetry(t *testing.T) {
	client := &stubChatClient{responses: []stubCall{
		{err: ErrBackendUnavailable},
		{err: ErrBackendUnavailable},
	}}
	registry := NewRegistry(3, 3)
	router := NewRouter(testBackends(), registry, client, WithRetryDelay(time.Millisecond))

	_, err := router.Dispatch(context.Background(), AgentContractReview, ChatRequest{})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, 2, client.calls)

	snap := registry.Snapshot()
	assert.Equal(t, 2, snap["vllm-contract"].ConsecutiveFailures)
}

func TestDispatchDoesNotRetryRejections(t *testing.T) {
	client := &stubChatClient{responses: []stubCall{
		{err: ErrBackendError},
	}}
	registry := NewRegistry(1, 1)
	router := NewRouter(testBackends(), registry, client)

	_, err := router.Dispatch(context.Background(), AgentContractReview, ChatRequest{})
	assert.ErrorIs(t, err, ErrBackendError)
	assert.Equal(t, 1, client.calls)
	// Rejections say nothing about backend availability.
	assert.Equal(t, StateHealthy, registry.State("vllm-contract"))
}

func TestDispatchTimeout(t *testing.T) {
	client := &stubChatClient{responses: []stubCall{
		{wait: time.Second, err: context.DeadlineExceeded},
	}}
	registry := NewRegistry(1, 1)
	router := NewRouter(testBackends(), registry, client, WithTimeout(10*time.Millisecond))

	_, err := router.Dispatch(context.Background(), AgentContractReview, ChatRequest{})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, client.calls, "timeouts are not retried")
	assert.Equal(t, StateDegraded, registry.State("vllm-contract"))
}

func TestHealthReportsAllBackends(t *testing.T) {
	registry := NewRegistry(1, 1)
	registry.RecordFailure("vllm-contract")
	router := NewRouter(testBackends(), registry, &stubChatClient{})

	health := router.Health()
	assert.Equal(t, StateDegraded, health["vllm-contract"].State)
	assert.Equal(t, StateHealthy, health["vllm-compliance"].State)
}

type countingChatClient struct {
	calls atomic.Int32
}

func (c *countingChatClient) Chat(ctx context.Context, backend Backend, req ChatRequest) (*ChatResponse, error) {
	c.calls.Add(1)
	return &ChatResponse{Content: "ok"}, nil
}

func TestConcurrentDispatchOnDegradedBackend(t *testing.T) {
	registry := NewRegistry(1, 3)
	registry.RecordFailure("vllm-contract")
	require.Equal(t, StateDegraded, registry.State("vllm-contract"))

	client := &countingChatClient{}
	router := NewRouter(testBackends(), registry, client)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = router.Dispatch(context.Background(), AgentContractReview, ChatRequest{
				Messages: []Message{{Role: RoleUser, Content: "review this"}},
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(2), client.calls.Load())
	assert.Equal(t, StateHealthy, registry.State("vllm-contract"))
}

type stubProber struct{ err error }

func (p *stubProber) Probe(ctx context.Context, backend Backend) error { return p.err }

func TestProbeRestoresDownBackend(t *testing.T) {
	registry := NewRegistry(1, 1)
	registry.RecordFailure("vllm-contract")
	registry.RecordFailure("vllm-contract")
	require.Equal(t, StateDown, registry.State("vllm-contract"))

	router := NewRouter(testBackends(), registry, &stubChatClient{},
		WithProber(&stubProber{}, time.Hour))
	router.probeUnhealthy(context.Background())

	assert.Equal(t, StateHealthy, registry.State("vllm-contract"))
}

func TestProbeFailureKeepsState(t *testing.T) {
	registry := NewRegistry(1, 1)
	registry.RecordFailure("vllm-contract")
	registry.RecordFailure("vllm-contract")

	router := NewRouter(testBackends(), registry, &stubChatClient{},
		WithProber(&stubProber{err: context.DeadlineExceeded}, time.Hour))
	router.probeUnhealthy(context.Background())

	assert.Equal(t, StateDown, registry.State("vllm-contract"))
}
