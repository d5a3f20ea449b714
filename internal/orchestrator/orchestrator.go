// Package orchestrator runs the two-phase attribute generation pipeline:
// one discovery call for a flat list of attribute names, then sequential
// detail calls over provider-sized batches.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/regsuite/attrgen/internal/llm"
	"github.com/regsuite/attrgen/internal/parse"
	"github.com/regsuite/attrgen/internal/policy"
	"github.com/regsuite/attrgen/internal/prompt"
)

// Template names consumed from the prompt store.
const (
	discoveryTemplate = "attribute_discovery"
	detailsTemplate   = "attribute_details"
)

// rawResponseLimit bounds how much model output a ParsingError carries.
const rawResponseLimit = 500

// Phase identifies which half of the pipeline an error came from.
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhaseDetails   Phase = "details"
)

// ParsingError is raised when an entire phase yields no parseable output.
// A single bad batch is logged and skipped, never escalated to this.
type ParsingError struct {
	Phase       Phase
	Provider    string
	RawResponse string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("orchestrator: %s phase produced no parseable output (provider %s): %s",
		e.Phase, e.Provider, e.RawResponse)
}

// Dispatcher is the slice of the failover dispatcher the orchestrator needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResult, error)
}

// Config tunes the pipeline.
type Config struct {
	// DefaultDiscoveryProvider handles discovery when the caller has no
	// preference. Default: "anthropic".
	DefaultDiscoveryProvider string
	// DefaultDetailsProvider handles detail batches when the caller has no
	// preference. Default: "anthropic".
	DefaultDetailsProvider string
	// InterBatchDelay is the mandatory pause between detail batches.
	// Default: 2s.
	InterBatchDelay time.Duration
	// RateLimitDelay replaces InterBatchDelay after a rate-limited batch.
	// Default: 5s.
	RateLimitDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultDiscoveryProvider == "" {
		c.DefaultDiscoveryProvider = "anthropic"
	}
	if c.DefaultDetailsProvider == "" {
		c.DefaultDetailsProvider = "anthropic"
	}
	if c.InterBatchDelay <= 0 {
		c.InterBatchDelay = 2 * time.Second
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = 5 * time.Second
	}
	return c
}

// TwoPhaseParams are the caller-supplied inputs for one generation run.
type TwoPhaseParams struct {
	RegulatoryContext string
	ReportType        string
	Regulation        string
	Schedule          string
	// DiscoveryProvider / DetailsProvider override the configured defaults.
	DiscoveryProvider string
	DetailsProvider   string
}

// BatchResult is the outcome of one two-phase run. Attributes preserve
// discovery order.
type BatchResult struct {
	RunID             string            `json:"run_id,omitempty"`
	Attributes        []AttributeRecord `json:"attributes"`
	DiscoveredCount   int               `json:"discovered_count"`
	DetailedCount     int               `json:"detailed_count"`
	BatchesProcessed  int               `json:"batches_processed"`
	DiscoveryProvider string            `json:"discovery_provider"`
	DetailsProvider   string            `json:"details_provider"`
	TotalCostUSD      float64           `json:"total_cost_usd"`
}

// Orchestrator owns one generation run's accumulated records; nothing is
// retained across calls.
type Orchestrator struct {
	cfg        Config
	dispatcher Dispatcher
	resolver   *prompt.Resolver
	policies   *policy.Table
	log        *zap.Logger

	// sleep allows test injection of the inter-batch delay.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator.
func New(cfg Config, dispatcher Dispatcher, resolver *prompt.Resolver, policies *policy.Table) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		dispatcher: dispatcher,
		resolver:   resolver,
		policies:   policies,
		log:        zap.L().With(zap.String("component", "orchestrator")),
		sleep:      sleepCtx,
	}
}

// GenerateAttributes runs discovery then batched detail generation. Detail
// batches run strictly sequentially: providers rate-limit per account, and
// concurrent batches have produced interleaved response mix-ups before.
// The caller bounds the whole pipeline through ctx.
func (o *Orchestrator) GenerateAttributes(ctx context.Context, params TwoPhaseParams) (*BatchResult, error) {
	discoveryProvider := params.DiscoveryProvider
	if discoveryProvider == "" {
		discoveryProvider = o.cfg.DefaultDiscoveryProvider
	}
	detailsProvider := params.DetailsProvider
	if detailsProvider == "" {
		detailsProvider = o.cfg.DefaultDetailsProvider
	}

	names, discoveredBy, discoveryCost, err := o.discover(ctx, params, discoveryProvider)
	if err != nil {
		return nil, err
	}

	batchSize := o.policies.DetailBatchSize(detailsProvider)
	batches := partition(names, batchSize)

	o.log.Info("discovery complete",
		zap.Int("attributes", len(names)),
		zap.String("provider", discoveredBy),
		zap.Int("batch_size", batchSize),
		zap.Int("batches", len(batches)))

	result := &BatchResult{
		DiscoveredCount:   len(names),
		DiscoveryProvider: discoveredBy,
		DetailsProvider:   detailsProvider,
		TotalCostUSD:      discoveryCost,
	}

	detailTmpl, err := o.resolver.Resolve(detailsTemplate, params.Regulation, params.Schedule)
	if err != nil {
		return nil, err
	}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			// Caller deadline. Report what we have as a hard failure so a
			// partial run is never mistaken for a complete one.
			return nil, err
		}

		delay := o.cfg.InterBatchDelay
		records, usedProvider, batchCost, batchErr := o.detailBatch(ctx, detailTmpl, params, batch, detailsProvider)
		result.TotalCostUSD += batchCost
		if batchErr != nil {
			// Partial-result tolerant: log and move on to the next batch.
			o.log.Warn("detail batch failed",
				zap.Int("batch", i+1),
				zap.Int("batch_size", len(batch)),
				zap.Error(batchErr))
			if llm.KindOf(batchErr) == llm.KindRateLimited {
				delay = o.cfg.RateLimitDelay
			}
		} else {
			result.Attributes = append(result.Attributes, records...)
			if usedProvider != "" {
				result.DetailsProvider = usedProvider
			}
		}
		result.BatchesProcessed++

		if i < len(batches)-1 {
			if err := o.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	if len(result.Attributes) == 0 {
		return nil, &ParsingError{
			Phase:    PhaseDetails,
			Provider: detailsProvider,
			RawResponse: fmt.Sprintf("all %d detail batches failed to yield records",
				len(batches)),
		}
	}

	result.DetailedCount = len(result.Attributes)
	return result, nil
}

// discover runs phase 1 and returns the flat list of attribute names in the
// order the model produced them.
func (o *Orchestrator) discover(ctx context.Context, params TwoPhaseParams, preferred string) ([]string, string, float64, error) {
	tmpl, err := o.resolver.Resolve(discoveryTemplate, params.Regulation, params.Schedule)
	if err != nil {
		return nil, "", 0, err
	}

	rendered, err := tmpl.Render(map[string]string{
		"regulatory_context": params.RegulatoryContext,
		"report_type":        params.ReportType,
		"regulation":         params.Regulation,
		"schedule":           params.Schedule,
	})
	if err != nil {
		return nil, "", 0, err
	}

	res, err := o.dispatcher.Dispatch(ctx, llm.GenerationRequest{
		Prompt:            rendered,
		SystemPrompt:      "You are a regulatory reporting analyst. Respond only with the requested structure.",
		PreferredProvider: preferred,
	})
	if err != nil {
		return nil, "", 0, err
	}

	names, ok := parse.ExtractNames(res.Content)
	if !ok || len(names) == 0 {
		return nil, "", res.CostEstimate, &ParsingError{
			Phase:       PhaseDiscovery,
			Provider:    res.ProviderUsed,
			RawResponse: truncate(res.Content, rawResponseLimit),
		}
	}

	return names, res.ProviderUsed, res.CostEstimate, nil
}

// detailBatch runs one phase-2 batch and returns its normalized records.
func (o *Orchestrator) detailBatch(ctx context.Context, tmpl *prompt.Template, params TwoPhaseParams, names []string, preferred string) ([]AttributeRecord, string, float64, error) {
	rendered, err := tmpl.Render(map[string]string{
		"attribute_names":    strings.Join(names, ", "),
		"regulatory_context": params.RegulatoryContext,
		"report_type":        params.ReportType,
		"regulation":         params.Regulation,
		"schedule":           params.Schedule,
	})
	if err != nil {
		return nil, "", 0, err
	}

	res, err := o.dispatcher.Dispatch(ctx, llm.GenerationRequest{
		Prompt:            rendered,
		SystemPrompt:      "You are a regulatory reporting analyst. Respond only with a JSON array.",
		PreferredProvider: preferred,
	})
	if err != nil {
		return nil, "", 0, err
	}

	objs, ok := parse.ExtractObjects(res.Content)
	if !ok {
		o.log.Warn("detail batch produced no parseable objects",
			zap.String("provider", res.ProviderUsed),
			zap.String("raw", truncate(res.Content, rawResponseLimit)))
		return nil, res.ProviderUsed, res.CostEstimate, nil
	}

	return normalizeBatch(objs, o.log), res.ProviderUsed, res.CostEstimate, nil
}

// partition slices names into consecutive batches of size; the last batch may
// be smaller. Order is preserved.
func partition(names []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var batches [][]string
	for start := 0; start < len(names); start += size {
		end := start + size
		if end > len(names) {
			end = len(names)
		}
		batches = append(batches, names[start:end])
	}
	return batches
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
