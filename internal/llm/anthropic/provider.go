// Package anthropic adapts the official Anthropic SDK to the llm.Provider
// contract.
package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/regsuite/attrgen/internal/llm"
)

// ProviderName is the identifier used in preference order and policy lookups.
const ProviderName = "anthropic"

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	// model → {input $/MTok, output $/MTok}
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// EstimateCost computes an estimated cost in USD for a usage/model pair.
// Returns 0 for unknown models.
func EstimateCost(usage llm.Usage, model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	inCost := (float64(usage.InputTokens) / 1e6) * pricing[0]
	outCost := (float64(usage.OutputTokens) / 1e6) * pricing[1]
	return inCost + outCost
}

// messenger is the slice of the SDK used by the adapter, extracted for test
// injection.
type messenger interface {
	New(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Provider implements llm.Provider over the Anthropic messages API.
type Provider struct {
	desc     llm.Descriptor
	messages messenger
	limiter  *rate.Limiter
	metrics  llm.Metrics
}

// New creates an Anthropic provider from its descriptor and API key.
func New(desc llm.Descriptor, apiKey string) *Provider {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return newWithMessenger(desc, &client.Messages)
}

func newWithMessenger(desc llm.Descriptor, m messenger) *Provider {
	if desc.Name == "" {
		desc.Name = ProviderName
	}
	if desc.Timeout <= 0 {
		desc.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if desc.RateLimitPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(desc.RateLimitPerMin)/60.0), desc.RateLimitPerMin)
	}
	return &Provider{desc: desc, messages: m, limiter: limiter}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return p.desc.Name }

// Metrics returns a snapshot of running call metrics.
func (p *Provider) Metrics() llm.MetricsSnapshot { return p.metrics.Snapshot() }

// Generate performs one message call with the provider's model parameters,
// per-call timeout, and rate limit.
func (p *Provider) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, llm.NewError(llm.KindTimeout, p.desc.Name, "rate limiter wait", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.desc.Timeout)
	defer cancel()

	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.desc.Model),
		MaxTokens: p.desc.MaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if p.desc.Temperature > 0 {
		params.Temperature = sdk.Float(p.desc.Temperature)
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	start := time.Now()
	msg, err := p.messages.New(callCtx, params)
	latency := time.Since(start)

	if err != nil {
		p.metrics.RecordCall(latency, nil, 0, true)
		return nil, p.classify(err)
	}

	content := extractText(msg)
	usage := &llm.Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}
	cost := EstimateCost(*usage, p.desc.Model)
	p.metrics.RecordCall(latency, usage, cost, false)

	return &llm.GenerationResult{
		Success:      content != "",
		Content:      content,
		ProviderUsed: p.desc.Name,
		Usage:        usage,
		CostEstimate: cost,
	}, nil
}

// HealthCheck issues a minimal one-token probe on a short deadline. It never
// shares a request path with content calls.
func (p *Provider) HealthCheck(ctx context.Context) llm.HealthStatus {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.messages.New(probeCtx, sdk.MessageNewParams{
		Model:     sdk.Model(p.desc.Model),
		MaxTokens: 1,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock("ping")),
		},
	})
	if err == nil {
		return llm.HealthStatus{State: llm.StateHealthy}
	}

	classified := p.classify(err)
	switch llm.KindOf(classified) {
	case llm.KindRateLimited, llm.KindOverloaded:
		return llm.HealthStatus{State: llm.StateDegraded, Detail: classified.Error()}
	default:
		return llm.HealthStatus{State: llm.StateUnhealthy, Detail: classified.Error()}
	}
}

// classify maps SDK and transport errors to typed llm errors.
func (p *Provider) classify(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		kind := llm.KindForStatus(apierr.StatusCode)
		if kind == llm.KindUnknown && strings.Contains(strings.ToLower(err.Error()), "overloaded") {
			kind = llm.KindOverloaded
		}
		return llm.NewError(kind, p.desc.Name, "message call", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.NewError(llm.KindTimeout, p.desc.Name, "message call timed out", err)
	}
	return llm.NewError(llm.KindUnknown, p.desc.Name, "message call", err)
}

// extractText concatenates all text content blocks.
func extractText(msg *sdk.Message) string {
	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
