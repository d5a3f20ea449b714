// Package service exposes the generation engine to the rest of the platform:
// single-prompt generation, provider health, and two-phase attribute
// generation. The service is constructed once and passed by dependency
// injection; there is no lazily-initialized global.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/regsuite/attrgen/internal/journal"
	"github.com/regsuite/attrgen/internal/llm"
	"github.com/regsuite/attrgen/internal/orchestrator"
	"github.com/regsuite/attrgen/internal/resilience"
)

// OverallStatus summarizes provider health across the fleet.
type OverallStatus string

const (
	OverallHealthy   OverallStatus = "healthy"
	OverallDegraded  OverallStatus = "degraded"
	OverallUnhealthy OverallStatus = "unhealthy"
)

// ProviderReport combines a live probe result with the registry's inferred
// health record for one provider.
type ProviderReport struct {
	Status  llm.HealthStatus          `json:"status"`
	Health  resilience.ProviderHealth `json:"health"`
	Metrics llm.MetricsSnapshot       `json:"metrics"`
}

// HealthReport is the full health-check response.
type HealthReport struct {
	Overall     OverallStatus             `json:"overall"`
	PerProvider map[string]ProviderReport `json:"per_provider"`
}

// Dispatcher is the slice of the failover dispatcher the service needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResult, error)
	Providers() []llm.Provider
}

// AttributeGenerator runs the two-phase pipeline.
type AttributeGenerator interface {
	GenerateAttributes(ctx context.Context, params orchestrator.TwoPhaseParams) (*orchestrator.BatchResult, error)
}

// Service is the constructed engine facade.
type Service struct {
	dispatcher   Dispatcher
	orchestrator AttributeGenerator
	registry     *resilience.Registry
	journal      *journal.Journal
	log          *zap.Logger
}

// New creates a service. journal may be nil when run observability is not
// wanted (tests, one-off invocations).
func New(d Dispatcher, o AttributeGenerator, r *resilience.Registry, j *journal.Journal) *Service {
	return &Service{
		dispatcher:   d,
		orchestrator: o,
		registry:     r,
		journal:      j,
		log:          zap.L().With(zap.String("component", "service")),
	}
}

// Generate routes one generation request through retry and failover.
func (s *Service) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResult, error) {
	return s.dispatcher.Dispatch(ctx, req)
}

// HealthCheck probes every provider concurrently and merges the probe results
// with registry state. Probes use a dedicated request path and never touch
// the registry, so they cannot race with content calls.
func (s *Service) HealthCheck(ctx context.Context) *HealthReport {
	providers := s.dispatcher.Providers()
	reports := make([]ProviderReport, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			reports[i] = ProviderReport{
				Status:  p.HealthCheck(gctx),
				Metrics: p.Metrics(),
			}
			return nil
		})
	}
	_ = g.Wait() // probes report status, they never error

	out := &HealthReport{PerProvider: make(map[string]ProviderReport, len(providers))}
	healthy := 0
	for i, p := range providers {
		rep := reports[i]
		if h, ok := s.registry.Health(p.Name()); ok {
			rep.Health = h
		}
		out.PerProvider[p.Name()] = rep
		if rep.Status.State == llm.StateHealthy {
			healthy++
		}
	}

	switch {
	case healthy == len(providers):
		out.Overall = OverallHealthy
	case healthy > 0:
		out.Overall = OverallDegraded
	default:
		out.Overall = OverallUnhealthy
	}
	return out
}

// GenerateAttributesTwoPhase runs the discovery → detail pipeline and
// journals the run outcome. Journal failures are logged, never fatal.
func (s *Service) GenerateAttributesTwoPhase(ctx context.Context, params orchestrator.TwoPhaseParams) (*orchestrator.BatchResult, error) {
	runID := uuid.NewString()
	started := time.Now()

	result, err := s.orchestrator.GenerateAttributes(ctx, params)

	rec := journal.RunRecord{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Regulation: params.Regulation,
		Schedule:   params.Schedule,
		ReportType: params.ReportType,
	}
	if err != nil {
		rec.Status = journal.RunFailed
		rec.Error = err.Error()
	} else {
		rec.Status = journal.RunSucceeded
		rec.DiscoveredCount = result.DiscoveredCount
		rec.DetailedCount = result.DetailedCount
		rec.BatchesProcessed = result.BatchesProcessed
		rec.DiscoveryProvider = result.DiscoveryProvider
		rec.DetailsProvider = result.DetailsProvider
		rec.CostUSD = result.TotalCostUSD
		result.RunID = runID
	}

	if s.journal != nil {
		// Runs that died on the caller's deadline are the ones most worth a
		// record, so the write is detached from the request context.
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if jerr := s.journal.Record(jctx, rec); jerr != nil {
			s.log.Warn("failed to journal generation run",
				zap.String("run_id", runID),
				zap.Error(jerr))
		}
	}

	return result, err
}

// Runs lists recent generation runs from the journal.
func (s *Service) Runs(ctx context.Context, limit int) ([]journal.RunRecord, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.List(ctx, limit)
}
