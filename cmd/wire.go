package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/regsuite/attrgen/internal/config"
	"github.com/regsuite/attrgen/internal/dispatch"
	"github.com/regsuite/attrgen/internal/journal"
	"github.com/regsuite/attrgen/internal/llm"
	"github.com/regsuite/attrgen/internal/llm/anthropic"
	"github.com/regsuite/attrgen/internal/llm/perplexity"
	"github.com/regsuite/attrgen/internal/orchestrator"
	"github.com/regsuite/attrgen/internal/policy"
	"github.com/regsuite/attrgen/internal/prompt"
	"github.com/regsuite/attrgen/internal/resilience"
	"github.com/regsuite/attrgen/internal/service"
)

// buildService wires the full engine from loaded config. The journal is
// optional: a missing path disables run observability, nothing else.
func buildService(ctx context.Context, cfg *config.Config, withJournal bool) (*service.Service, func(), error) {
	byName := map[string]llm.Provider{}
	if cfg.Anthropic.Key != "" {
		byName[anthropic.ProviderName] = anthropic.New(
			cfg.Anthropic.Descriptor(anthropic.ProviderName), cfg.Anthropic.Key)
	}
	if cfg.Perplexity.Key != "" {
		byName[perplexity.ProviderName] = perplexity.New(
			cfg.Perplexity.Descriptor(perplexity.ProviderName), cfg.Perplexity.Key)
	}

	// Preference order from config decides failover order.
	var providers []llm.Provider
	for _, name := range cfg.Failover.Order {
		if p, ok := byName[name]; ok {
			providers = append(providers, p)
		}
	}
	if len(providers) == 0 {
		return nil, nil, eris.New("no provider configured: set anthropic.key or perplexity.key")
	}

	registry := resilience.NewRegistry(resilience.RegistryConfig{
		MaxConsecutiveFailures: cfg.Failover.MaxConsecutiveFailures,
		CircuitBreakerTimeout:  time.Duration(cfg.Failover.CircuitBreakerTimeoutSecs) * time.Second,
	})

	retries := map[string]llm.RetryPolicy{
		anthropic.ProviderName:  cfg.Anthropic.Descriptor(anthropic.ProviderName).Retry,
		perplexity.ProviderName: cfg.Perplexity.Descriptor(perplexity.ProviderName).Retry,
	}
	dispatcher := dispatch.New(providers, registry, retries)

	policies := policy.Defaults()
	if cfg.Pipeline.BatchPolicyPath != "" {
		loaded, err := policy.Load(cfg.Pipeline.BatchPolicyPath)
		if err != nil {
			return nil, nil, err
		}
		policies = loaded
	}

	resolver := prompt.NewResolver(prompt.NewDirStore(cfg.Prompts.Dir))

	orch := orchestrator.New(orchestrator.Config{
		DefaultDiscoveryProvider: cfg.Pipeline.DiscoveryProvider,
		DefaultDetailsProvider:   cfg.Pipeline.DetailsProvider,
		InterBatchDelay:          time.Duration(cfg.Pipeline.InterBatchDelaySecs) * time.Second,
		RateLimitDelay:           time.Duration(cfg.Pipeline.RateLimitDelaySecs) * time.Second,
	}, dispatcher, resolver, policies)

	var jnl *journal.Journal
	cleanup := func() {}
	if withJournal && cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return nil, nil, err
		}
		jnl = j
		cleanup = func() {
			if err := j.Close(); err != nil {
				zap.L().Warn("closing journal", zap.Error(err))
			}
		}
	}

	return service.New(dispatcher, orch, registry, jnl), cleanup, nil
}
