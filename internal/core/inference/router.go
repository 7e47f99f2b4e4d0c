package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

const (
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 120 * time.Second
	// DefaultProbeInterval is how often down or degraded backends are probed.
	DefaultProbeInterval = 30 * time.Second

	defaultRetryDelay = time.Second
)

// ChatClient executes one chat completion against a backend. Implementations
// wrap failures in the package sentinels: ErrBackendError for request
// rejections, ErrBackendUnavailable for transient failures.
type ChatClient interface {
	Chat(ctx context.Context, backend Backend, req ChatRequest) (*ChatResponse, error)
}

// Prober checks whether a backend is reachable again.
type Prober interface {
	Probe(ctx context.Context, backend Backend) error
}

// Router dispatches prompts to the backend pinned to each agent, enforcing
// per-call timeouts, one retry for transient failures, and fail-fast refusal
// when the backend is down.
type Router struct {
	backends      map[AgentType]Backend
	registry      *Registry
	client        ChatClient
	prober        Prober
	timeout       time.Duration
	retryDelay    time.Duration
	probeInterval time.Duration
	logger        *slog.Logger
}

type RouterOption func(*Router)

func WithTimeout(timeout time.Duration) RouterOption {
	return func(r *Router) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

func WithRetryDelay(delay time.Duration) RouterOption {
	return func(r *Router) {
		if delay > 0 {
			r.retryDelay = delay
		}
	}
}

func WithProber(prober Prober, interval time.Duration) RouterOption {
	return func(r *Router) {
		r.prober = prober
		if interval > 0 {
			r.probeInterval = interval
		}
	}
}

func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a router over the given agent-to-backend table.
func NewRouter(backends map[AgentType]Backend, registry *Registry, client ChatClient, opts ...RouterOption) *Router {
	r := &Router{
		backends:      backends,
		registry:      registry,
		client:        client,
		timeout:       DefaultTimeout,
		retryDelay:    defaultRetryDelay,
		probeInterval: DefaultProbeInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend returns the backend pinned to the agent.
func (r *Router) Backend(agent AgentType) (Backend, bool) {
	b, ok := r.backends[agent]
	return b, ok
}

// Health reports the health of every configured backend.
func (r *Router) Health() map[string]BackendHealth {
	for _, b := range r.backends {
		// Touch the entry so untried backends report as healthy.
		_ = r.registry.State(b.Name)
	}
	return r.registry.Snapshot()
}

// Dispatch sends the request to the agent's backend. A down backend is
// refused without any network call. Transient failures get exactly one
// jittered retry; timeouts and request rejections do not.
func (r *Router) Dispatch(ctx context.Context, agent AgentType, req ChatRequest) (*ChatResponse, error) {
	backend, ok := r.backends[agent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, agent)
	}
	if r.registry.State(backend.Name) == StateDown {
		return nil, fmt.Errorf("%w: %s is down", ErrNoHealthyBackend, backend.Name)
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := r.dispatchOnce(ctx, backend, req)
		if err == nil {
			r.registry.RecordSuccess(backend.Name)
			return resp, nil
		}

		switch {
		case errors.Is(err, ErrTimeout):
			r.registry.RecordFailure(backend.Name)
			return nil, err
		case errors.Is(err, context.Canceled):
			return nil, err
		case errors.Is(err, ErrBackendError):
			// The request itself was rejected; the backend is fine.
			return nil, err
		}

		state := r.registry.RecordFailure(backend.Name)
		lastErr = err
		r.logger.Warn("backend call failed",
			"backend", backend.Name,
			"agent", string(agent),
			"attempt", attempt,
			"state", string(state),
			"error", err,
		)
		if attempt == 1 {
			if err := sleepJittered(ctx, r.retryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, lastErr)
}

func (r *Router) dispatchOnce(ctx context.Context, backend Backend, req ChatRequest) (*ChatResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.Chat(callCtx, backend, req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, backend.Name, r.timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	resp.Latency = time.Since(start)
	return resp, nil
}

// RunProbes periodically probes unhealthy backends and restores them on the
// first successful probe. It blocks until the context is canceled.
func (r *Router) RunProbes(ctx context.Context) {
	if r.prober == nil {
		return
	}
	ticker := time.NewTicker(r.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probeUnhealthy(ctx)
		}
	}
}

func (r *Router) probeUnhealthy(ctx context.Context) {
	for _, backend := range r.backends {
		if r.registry.State(backend.Name) == StateHealthy {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.prober.Probe(probeCtx, backend)
		cancel()
		if err != nil {
			r.logger.Debug("probe failed", "backend", backend.Name, "error", err)
			continue
		}
		r.registry.RecordSuccess(backend.Name)
		r.logger.Info("backend recovered", "backend", backend.Name)
	}
}

func sleepJittered(ctx context.Context, delay time.Duration) error {
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay + jitter):
		return nil
	}
}
