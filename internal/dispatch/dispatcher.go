// Package dispatch routes generation requests to an available provider and
// fails over to an alternate when the primary is exhausted.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/regsuite/attrgen/internal/llm"
	"github.com/regsuite/attrgen/internal/resilience"
)

// overloadedDelayScale stretches backoff for overloaded responses.
const overloadedDelayScale = 3.0

// NoProviderAvailableError is raised when both the primary and the single
// failover attempt are exhausted, or when no provider is selectable at all.
// It carries both underlying errors so the failure is diagnosable without
// re-running.
type NoProviderAvailableError struct {
	PrimaryProvider  string
	PrimaryErr       error
	FallbackProvider string
	FallbackErr      error
}

func (e *NoProviderAvailableError) Error() string {
	if e.PrimaryProvider == "" {
		return "no provider available"
	}
	if e.FallbackProvider == "" {
		return fmt.Sprintf("no provider available: %s failed (%v), no fallback selectable", e.PrimaryProvider, e.PrimaryErr)
	}
	return fmt.Sprintf("no provider available: %s failed (%v), failover %s failed (%v)",
		e.PrimaryProvider, e.PrimaryErr, e.FallbackProvider, e.FallbackErr)
}

func (e *NoProviderAvailableError) Unwrap() error {
	return e.PrimaryErr
}

// Dispatcher selects providers, invokes adapters with adapter-level retry,
// records outcomes in the health registry, and performs exactly one failover
// on exhausted failure.
type Dispatcher struct {
	providers map[string]llm.Provider
	// order is the fixed global preference order.
	order    []string
	registry *resilience.Registry
	retries  map[string]llm.RetryPolicy
	log      *zap.Logger
}

// New creates a dispatcher over the given providers in preference order.
// Retry policies are keyed by provider name; providers without an entry get
// resilience defaults.
func New(providers []llm.Provider, registry *resilience.Registry, retries map[string]llm.RetryPolicy) *Dispatcher {
	d := &Dispatcher{
		providers: make(map[string]llm.Provider, len(providers)),
		registry:  registry,
		retries:   retries,
		log:       zap.L().With(zap.String("component", "dispatch")),
	}
	for _, p := range providers {
		d.providers[p.Name()] = p
		d.order = append(d.order, p.Name())
		registry.Register(p.Name())
	}
	return d
}

// Providers returns the registered providers in preference order.
func (d *Dispatcher) Providers() []llm.Provider {
	out := make([]llm.Provider, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.providers[name])
	}
	return out
}

// SelectProvider returns the provider to use for a request: the preferred one
// if available, else the first available provider in global order, else any
// provider whose breaker timeout has elapsed (optimistically reinstated).
// Returns nil when nothing is selectable.
func (d *Dispatcher) SelectProvider(preferred string) llm.Provider {
	if preferred != "" {
		if p, ok := d.providers[preferred]; ok && d.registry.Available(preferred) {
			return p
		}
	}

	for _, name := range d.order {
		if name == preferred {
			continue // already ruled out above
		}
		if d.registry.Available(name) {
			return d.providers[name]
		}
	}

	// Last resort: reinstate the first provider whose breaker has cooled off.
	for _, name := range d.order {
		if d.registry.TimeoutElapsed(name) {
			d.log.Info("reinstating provider after circuit breaker timeout",
				zap.String("provider", name))
			d.registry.Reinstate(name)
			return d.providers[name]
		}
	}

	return nil
}

// Dispatch routes one generation request. The selected provider is invoked
// through the adapter-level retry loop; if it is ultimately exhausted, exactly
// one failover to a different available provider is attempted. Authentication
// failures propagate immediately and never fail over.
func (d *Dispatcher) Dispatch(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResult, error) {
	primary := d.SelectProvider(req.PreferredProvider)
	if primary == nil {
		return nil, &NoProviderAvailableError{}
	}

	result, primaryErr := d.callWithRetry(ctx, primary, req)
	if primaryErr == nil {
		d.registry.RecordSuccess(primary.Name())
		return result, nil
	}
	d.registry.RecordFailure(primary.Name())

	if llm.KindOf(primaryErr) == llm.KindAuthFailed {
		// Misconfiguration, not a transient fault. Surface it distinctly.
		d.log.Error("provider authentication failed",
			zap.String("provider", primary.Name()),
			zap.Error(primaryErr))
		return nil, primaryErr
	}

	fallback := d.selectFallback(primary.Name())
	if fallback == nil {
		return nil, &NoProviderAvailableError{
			PrimaryProvider: primary.Name(),
			PrimaryErr:      primaryErr,
		}
	}

	d.log.Warn("failing over to alternate provider",
		zap.String("failed_provider", primary.Name()),
		zap.String("fallback_provider", fallback.Name()),
		zap.Error(primaryErr))

	result, fallbackErr := d.callWithRetry(ctx, fallback, req)
	if fallbackErr != nil {
		d.registry.RecordFailure(fallback.Name())
		return nil, &NoProviderAvailableError{
			PrimaryProvider:  primary.Name(),
			PrimaryErr:       primaryErr,
			FallbackProvider: fallback.Name(),
			FallbackErr:      fallbackErr,
		}
	}
	d.registry.RecordSuccess(fallback.Name())

	result.FailoverUsed = true
	result.FailedProvider = primary.Name()
	return result, nil
}

// selectFallback returns the first available provider other than excluded.
// Failover never chains: one alternate, no reinstatement scan.
func (d *Dispatcher) selectFallback(excluded string) llm.Provider {
	for _, name := range d.order {
		if name == excluded {
			continue
		}
		if d.registry.Available(name) {
			return d.providers[name]
		}
	}
	return nil
}

// callWithRetry invokes one adapter under its retry policy. Timeouts,
// rate limits, and overloaded responses are retried with exponential backoff
// (overloaded with a 3x stretched delay); everything else returns immediately.
func (d *Dispatcher) callWithRetry(ctx context.Context, p llm.Provider, req llm.GenerationRequest) (*llm.GenerationResult, error) {
	cfg := resilience.DefaultRetryConfig()
	if policy, ok := d.retries[p.Name()]; ok {
		// An explicit zero means "no retries", so apply the policy as-is.
		cfg.MaxRetries = policy.MaxRetries
		if policy.BaseDelay > 0 {
			cfg.BaseDelay = policy.BaseDelay
		}
		if policy.BackoffFactor > 0 {
			cfg.Multiplier = policy.BackoffFactor
		}
	}
	cfg.ShouldRetry = llm.Retryable
	cfg.DelayScale = func(err error) float64 {
		if llm.KindOf(err) == llm.KindOverloaded {
			return overloadedDelayScale
		}
		return 1
	}
	cfg.OnRetry = resilience.RetryLogger(p.Name(), "generate")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*llm.GenerationResult, error) {
		return p.Generate(ctx, req)
	})
}
