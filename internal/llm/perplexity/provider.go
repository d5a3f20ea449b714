// Package perplexity adapts the Perplexity chat-completions API to the
// llm.Provider contract.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/regsuite/attrgen/internal/llm"
)

// ProviderName is the identifier used in preference order and policy lookups.
const ProviderName = "perplexity"

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar-pro"
)

// perQueryCostUSD is the flat per-query pricing used for cost estimates.
const perQueryCostUSD = 0.005

// chatCompletionRequest is the request body for POST /chat/completions.
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int64    `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the response from POST /chat/completions.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int     `json:"index"`
		Message message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) { p.http = hc }
}

// Provider implements llm.Provider over the Perplexity HTTP API.
type Provider struct {
	desc    llm.Descriptor
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	metrics llm.Metrics
}

// New creates a Perplexity provider from its descriptor and API key.
func New(desc llm.Descriptor, apiKey string, opts ...Option) *Provider {
	if desc.Name == "" {
		desc.Name = ProviderName
	}
	if desc.Model == "" {
		desc.Model = defaultModel
	}
	if desc.Timeout <= 0 {
		desc.Timeout = 30 * time.Second
	}

	p := &Provider{
		desc:    desc,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	if desc.RateLimitPerMin > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(float64(desc.RateLimitPerMin)/60.0), desc.RateLimitPerMin)
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return p.desc.Name }

// Metrics returns a snapshot of running call metrics.
func (p *Provider) Metrics() llm.MetricsSnapshot { return p.metrics.Snapshot() }

// Generate performs one chat completion with the provider's model parameters,
// per-call timeout, and rate limit.
func (p *Provider) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, llm.NewError(llm.KindTimeout, p.desc.Name, "rate limiter wait", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.desc.Timeout)
	defer cancel()

	msgs := make([]message, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, message{Role: "user", Content: req.Prompt})

	body := chatCompletionRequest{
		Model:    p.desc.Model,
		Messages: msgs,
	}
	if p.desc.Temperature > 0 {
		t := p.desc.Temperature
		body.Temperature = &t
	}
	if p.desc.MaxTokens > 0 {
		mt := p.desc.MaxTokens
		body.MaxTokens = &mt
	}

	start := time.Now()
	resp, err := p.chatCompletion(callCtx, body)
	latency := time.Since(start)

	if err != nil {
		p.metrics.RecordCall(latency, nil, 0, true)
		return nil, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	usage := &llm.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	p.metrics.RecordCall(latency, usage, perQueryCostUSD, false)

	return &llm.GenerationResult{
		Success:      content != "",
		Content:      content,
		ProviderUsed: p.desc.Name,
		Usage:        usage,
		CostEstimate: perQueryCostUSD,
	}, nil
}

// HealthCheck issues a minimal one-token probe on a short deadline.
func (p *Provider) HealthCheck(ctx context.Context) llm.HealthStatus {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	one := int64(1)
	_, err := p.chatCompletion(probeCtx, chatCompletionRequest{
		Model:     p.desc.Model,
		Messages:  []message{{Role: "user", Content: "ping"}},
		MaxTokens: &one,
	})
	if err == nil {
		return llm.HealthStatus{State: llm.StateHealthy}
	}

	switch llm.KindOf(err) {
	case llm.KindRateLimited, llm.KindOverloaded:
		return llm.HealthStatus{State: llm.StateDegraded, Detail: err.Error()}
	default:
		return llm.HealthStatus{State: llm.StateUnhealthy, Detail: err.Error()}
	}
}

func (p *Provider) chatCompletion(ctx context.Context, req chatCompletionRequest) (*chatCompletionResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, llm.NewError(llm.KindUnknown, p.desc.Name, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, llm.NewError(llm.KindUnknown, p.desc.Name, "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, llm.NewError(llm.KindTimeout, p.desc.Name, "request timed out", err)
		}
		return nil, llm.NewError(llm.KindUnknown, p.desc.Name, "send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewError(llm.KindUnknown, p.desc.Name, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := llm.KindForStatus(resp.StatusCode)
		return nil, llm.NewError(kind, p.desc.Name, string(respBody),
			eris.Errorf("perplexity: unexpected status %d", resp.StatusCode))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, llm.NewError(llm.KindUnknown, p.desc.Name, "unmarshal response", err)
	}

	return &result, nil
}
