// Package llm defines the provider abstraction for chat-completion backends.
package llm

import (
	"context"
	"time"
)

// GenerationRequest is a single chat-completion request.
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	// PreferredProvider is a hint consumed by the dispatcher, not by adapters.
	PreferredProvider string
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// GenerationResult is the outcome of a successful generation.
// Success is true iff Content is non-empty and the call returned no error.
type GenerationResult struct {
	Success        bool    `json:"success"`
	Content        string  `json:"content"`
	ProviderUsed   string  `json:"provider_used"`
	Usage          *Usage  `json:"usage,omitempty"`
	CostEstimate   float64 `json:"cost_estimate_usd,omitempty"`
	FailoverUsed   bool    `json:"failover_used"`
	FailedProvider string  `json:"failed_provider,omitempty"`
}

// HealthState is the coarse status of a provider health probe.
type HealthState string

const (
	StateHealthy   HealthState = "healthy"
	StateDegraded  HealthState = "degraded"
	StateUnhealthy HealthState = "unhealthy"
)

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	State  HealthState `json:"state"`
	Detail string      `json:"detail,omitempty"`
}

// Provider is a uniform interface over one backing chat-completion API.
// Implementations own model parameters, per-call timeouts, and raw
// request/response translation.
type Provider interface {
	// Name returns the provider identifier used in config, preference order,
	// and batch-size policy lookups.
	Name() string
	// Generate performs one chat completion. Failures are returned as *Error
	// so the dispatcher can drive retry and failover by kind.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	// HealthCheck reports reachability without issuing a content call.
	HealthCheck(ctx context.Context) HealthStatus
	// Metrics returns a snapshot of running call metrics.
	Metrics() MetricsSnapshot
}

// RetryPolicy bounds adapter-level retries before failover kicks in.
type RetryPolicy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	BackoffFactor float64
}

// Descriptor captures the immutable identity and tuning of one provider.
type Descriptor struct {
	Name            string
	Model           string
	Temperature     float64
	MaxTokens       int64
	RateLimitPerMin int
	Timeout         time.Duration
	Retry           RetryPolicy
}
