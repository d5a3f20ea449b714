// Package resilience provides the provider health registry, circuit breaking,
// and retry with exponential backoff for chat-completion calls.
package resilience

import (
	"sync"
	"time"
)

// HealthState is the per-provider status inferred from call outcomes.
type HealthState int

const (
	// StatusUnknown means no call outcome has been recorded yet.
	StatusUnknown HealthState = iota
	// StatusHealthy means the most recent call succeeded.
	StatusHealthy
	// StatusUnhealthy means the most recent call failed.
	StatusUnhealthy
)

func (s HealthState) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ProviderHealth is a snapshot of one provider's health record.
type ProviderHealth struct {
	Status              HealthState `json:"status"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	LastCheckedAt       *time.Time  `json:"last_checked_at,omitempty"`
	Available           bool        `json:"available"`
}

// RegistryConfig controls circuit breaker behavior.
type RegistryConfig struct {
	// MaxConsecutiveFailures is how many failures in a row open the breaker.
	// Default: 3.
	MaxConsecutiveFailures int

	// CircuitBreakerTimeout is how long an opened breaker blocks a provider
	// before it becomes eligible for optimistic reinstatement. Default: 15m.
	CircuitBreakerTimeout time.Duration
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxConsecutiveFailures: 3,
		CircuitBreakerTimeout:  15 * time.Minute,
	}
}

// healthEntry is the mutable record for one provider. Each entry carries its
// own mutex so concurrent generation requests against different providers
// never contend.
type healthEntry struct {
	mu                  sync.Mutex
	status              HealthState
	consecutiveFailures int
	lastCheckedAt       time.Time
	available           bool
	// reinstated marks a provider on post-reinstatement probation: one
	// failure re-opens the breaker, one success ends probation.
	reinstated bool
}

// Registry tracks per-provider health and owns all mutation of it. Health is
// inferred purely from call outcomes recorded by the dispatcher; there are no
// background probes.
type Registry struct {
	cfg     RegistryConfig
	mu      sync.RWMutex
	entries map[string]*healthEntry

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewRegistry creates a health registry with the given config.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 3
	}
	if cfg.CircuitBreakerTimeout <= 0 {
		cfg.CircuitBreakerTimeout = 15 * time.Minute
	}
	return &Registry{
		cfg:     cfg,
		entries: make(map[string]*healthEntry),
		nowFunc: time.Now,
	}
}

// Register adds a provider with an unknown, available health record.
// Registering an existing name is a no-op.
func (r *Registry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return
	}
	r.entries[name] = &healthEntry{status: StatusUnknown, available: true}
}

// RecordSuccess resets the failure counter and marks the provider healthy.
func (r *Registry) RecordSuccess(name string) {
	e := r.entry(name)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = StatusHealthy
	e.consecutiveFailures = 0
	e.available = true
	e.reinstated = false
	e.lastCheckedAt = r.nowFunc()
}

// RecordFailure increments the failure counter; at the threshold the breaker
// opens and the provider becomes unavailable until the timeout elapses. A
// failure while on post-reinstatement probation re-opens the breaker
// immediately.
func (r *Registry) RecordFailure(name string) {
	e := r.entry(name)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = StatusUnhealthy
	e.consecutiveFailures++
	e.lastCheckedAt = r.nowFunc()
	if e.reinstated || e.consecutiveFailures >= r.cfg.MaxConsecutiveFailures {
		e.available = false
		e.reinstated = false
	}
}

// Available reports whether the provider is currently selectable without
// reinstatement.
func (r *Registry) Available(name string) bool {
	e := r.entry(name)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// TimeoutElapsed reports whether an unavailable provider's breaker timeout
// has passed, making it eligible for optimistic reinstatement.
func (r *Registry) TimeoutElapsed(name string) bool {
	e := r.entry(name)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.available {
		return false
	}
	return r.nowFunc().Sub(e.lastCheckedAt) > r.cfg.CircuitBreakerTimeout
}

// Reinstate optimistically resets an unavailable provider after its breaker
// timeout: available again, failure counter cleared, but on probation — the
// next failure re-opens the breaker immediately, while a success clears the
// probation and failure counting starts over from zero.
func (r *Registry) Reinstate(name string) {
	e := r.entry(name)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.available = true
	e.consecutiveFailures = 0
	e.reinstated = true
}

// Health returns a snapshot of one provider's record.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	e := r.entry(name)
	if e == nil {
		return ProviderHealth{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.snapshotLocked(e), true
}

// Snapshot returns a copy of every provider's health record.
func (r *Registry) Snapshot() map[string]ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ProviderHealth, len(r.entries))
	for name, e := range r.entries {
		e.mu.Lock()
		out[name] = r.snapshotLocked(e)
		e.mu.Unlock()
	}
	return out
}

func (r *Registry) snapshotLocked(e *healthEntry) ProviderHealth {
	h := ProviderHealth{
		Status:              e.status,
		ConsecutiveFailures: e.consecutiveFailures,
		Available:           e.available,
	}
	if !e.lastCheckedAt.IsZero() {
		t := e.lastCheckedAt
		h.LastCheckedAt = &t
	}
	return h
}

func (r *Registry) entry(name string) *healthEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}
