package inference

import (
	"sync"
	"time"
)

// HealthState is the availability of one backend.
type HealthState string

const (
	StateHealthy  HealthState = "healthy"
	StateDegraded HealthState = "degraded"
	StateDown     HealthState = "down"
)

// BackendHealth is a point-in-time view of one backend's health.
type BackendHealth struct {
	State               HealthState
	ConsecutiveFailures int
	LastChange          time.Time
}

// Registry tracks per-backend health. Consecutive transient failures move a
// backend Healthy -> Degraded -> Down; any success returns it to Healthy.
// The failure counter resets on every state transition, so each step needs
// its own run of consecutive failures.
type Registry struct {
	mu            sync.Mutex
	degradedAfter int
	downAfter     int
	now           func() time.Time
	entries       map[string]*BackendHealth
}

// NewRegistry creates a registry. degradedAfter failures mark a healthy
// backend degraded; downAfter further failures mark it down.
func NewRegistry(degradedAfter, downAfter int) *Registry {
	if degradedAfter < 1 {
		degradedAfter = 1
	}
	if downAfter < 1 {
		downAfter = 1
	}
	return &Registry{
		degradedAfter: degradedAfter,
		downAfter:     downAfter,
		now:           time.Now,
		entries:       make(map[string]*BackendHealth),
	}
}

func (r *Registry) entry(name string) *BackendHealth {
	e, ok := r.entries[name]
	if !ok {
		e = &BackendHealth{State: StateHealthy, LastChange: r.now()}
		r.entries[name] = e
	}
	return e
}

// RecordSuccess marks the backend healthy and clears its failure count.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(name)
	if e.State != StateHealthy {
		e.State = StateHealthy
		e.LastChange = r.now()
	}
	e.ConsecutiveFailures = 0
}

// RecordFailure counts one transient failure and transitions the state when
// the relevant threshold is reached. It returns the resulting state.
func (r *Registry) RecordFailure(name string) HealthState {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(name)
	e.ConsecutiveFailures++
	switch e.State {
	case StateHealthy:
		if e.ConsecutiveFailures >= r.degradedAfter {
			e.State = StateDegraded
			e.ConsecutiveFailures = 0
			e.LastChange = r.now()
		}
	case StateDegraded:
		if e.ConsecutiveFailures >= r.downAfter {
			e.State = StateDown
			e.ConsecutiveFailures = 0
			e.LastChange = r.now()
		}
	}
	return e.State
}

// State returns the backend's current state. Unknown backends are healthy.
func (r *Registry) State(name string) HealthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(name).State
}

// Snapshot copies the current health of all tracked backends.
func (r *Registry) Snapshot() map[string]BackendHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]BackendHealth, len(r.entries))
	for name, e := range r.entries {
		out[name] = *e
	}
	return out
}
