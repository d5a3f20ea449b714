package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regsuite/attrgen/internal/journal"
	"github.com/regsuite/attrgen/internal/llm"
	"github.com/regsuite/attrgen/internal/orchestrator"
	"github.com/regsuite/attrgen/internal/resilience"
)

type stubProvider struct {
	name  string
	state llm.HealthState
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(context.Context, llm.GenerationRequest) (*llm.GenerationResult, error) {
	return &llm.GenerationResult{Success: true, Content: "ok", ProviderUsed: s.name}, nil
}

func (s *stubProvider) HealthCheck(context.Context) llm.HealthStatus {
	return llm.HealthStatus{State: s.state}
}

func (s *stubProvider) Metrics() llm.MetricsSnapshot { return llm.MetricsSnapshot{Requests: 7} }

type stubDispatcher struct {
	providers []llm.Provider
	result    *llm.GenerationResult
	err       error
}

func (s *stubDispatcher) Dispatch(context.Context, llm.GenerationRequest) (*llm.GenerationResult, error) {
	return s.result, s.err
}

func (s *stubDispatcher) Providers() []llm.Provider { return s.providers }

type stubGenerator struct {
	result *orchestrator.BatchResult
	err    error
	params orchestrator.TwoPhaseParams
}

func (s *stubGenerator) GenerateAttributes(_ context.Context, params orchestrator.TwoPhaseParams) (*orchestrator.BatchResult, error) {
	s.params = params
	return s.result, s.err
}

func newHealthService(states map[string]llm.HealthState) *Service {
	var providers []llm.Provider
	reg := resilience.NewRegistry(resilience.DefaultRegistryConfig())
	for name, state := range states {
		providers = append(providers, &stubProvider{name: name, state: state})
		reg.Register(name)
	}
	return New(&stubDispatcher{providers: providers}, &stubGenerator{}, reg, nil)
}

func TestHealthCheck_Overall(t *testing.T) {
	tests := []struct {
		name   string
		states map[string]llm.HealthState
		want   OverallStatus
	}{
		{"all healthy", map[string]llm.HealthState{"anthropic": llm.StateHealthy, "perplexity": llm.StateHealthy}, OverallHealthy},
		{"one down", map[string]llm.HealthState{"anthropic": llm.StateHealthy, "perplexity": llm.StateUnhealthy}, OverallDegraded},
		{"all down", map[string]llm.HealthState{"anthropic": llm.StateUnhealthy, "perplexity": llm.StateUnhealthy}, OverallUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newHealthService(tt.states).HealthCheck(context.Background())
			assert.Equal(t, tt.want, report.Overall)
			assert.Len(t, report.PerProvider, len(tt.states))
		})
	}
}

func TestHealthCheck_MergesRegistryAndMetrics(t *testing.T) {
	svc := newHealthService(map[string]llm.HealthState{"anthropic": llm.StateHealthy})
	svc.registry.RecordSuccess("anthropic")

	report := svc.HealthCheck(context.Background())
	rep := report.PerProvider["anthropic"]
	assert.Equal(t, llm.StateHealthy, rep.Status.State)
	assert.Equal(t, resilience.StatusHealthy, rep.Health.Status)
	assert.EqualValues(t, 7, rep.Metrics.Requests)
}

func TestGenerate_PassesThrough(t *testing.T) {
	want := &llm.GenerationResult{Success: true, Content: "hi", ProviderUsed: "anthropic"}
	svc := New(&stubDispatcher{result: want}, &stubGenerator{}, resilience.NewRegistry(resilience.DefaultRegistryConfig()), nil)

	got, err := svc.Generate(context.Background(), llm.GenerationRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestTwoPhase_AssignsRunIDAndJournals(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	gen := &stubGenerator{result: &orchestrator.BatchResult{
		DiscoveredCount:   10,
		DetailedCount:     9,
		BatchesProcessed:  1,
		DiscoveryProvider: "anthropic",
		DetailsProvider:   "anthropic",
		TotalCostUSD:      0.42,
	}}
	svc := New(&stubDispatcher{}, gen, resilience.NewRegistry(resilience.DefaultRegistryConfig()), j)

	res, err := svc.GenerateAttributesTwoPhase(ctx, orchestrator.TwoPhaseParams{
		Regulation: "FR Y-14M",
		ReportType: "credit card portfolio",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)

	runs, err := svc.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, journal.RunSucceeded, runs[0].Status)
	assert.Equal(t, 10, runs[0].DiscoveredCount)
	assert.InDelta(t, 0.42, runs[0].CostUSD, 1e-9)
}

func TestTwoPhase_FailureIsJournaled(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	gen := &stubGenerator{err: eris.New("discovery produced nothing")}
	svc := New(&stubDispatcher{}, gen, resilience.NewRegistry(resilience.DefaultRegistryConfig()), j)

	_, err = svc.GenerateAttributesTwoPhase(ctx, orchestrator.TwoPhaseParams{})
	require.Error(t, err)

	runs, lerr := svc.Runs(ctx, 10)
	require.NoError(t, lerr)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "discovery produced nothing")
}

func TestTwoPhase_DeadlineExpiryStillJournaled(t *testing.T) {
	j, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	gen := &stubGenerator{err: context.DeadlineExceeded}
	svc := New(&stubDispatcher{}, gen, resilience.NewRegistry(resilience.DefaultRegistryConfig()), j)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // the caller's deadline already fired

	_, err = svc.GenerateAttributesTwoPhase(ctx, orchestrator.TwoPhaseParams{ReportType: "credit card portfolio"})
	require.Error(t, err)

	runs, lerr := svc.Runs(context.Background(), 10)
	require.NoError(t, lerr)
	require.Len(t, runs, 1, "a deadline-killed run must still leave a journal record")
	assert.Equal(t, journal.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "deadline")
}

func TestTwoPhase_NilJournalIsFine(t *testing.T) {
	gen := &stubGenerator{result: &orchestrator.BatchResult{DiscoveredCount: 1, DetailedCount: 1, BatchesProcessed: 1}}
	svc := New(&stubDispatcher{}, gen, resilience.NewRegistry(resilience.DefaultRegistryConfig()), nil)

	res, err := svc.GenerateAttributesTwoPhase(context.Background(), orchestrator.TwoPhaseParams{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)

	runs, err := svc.Runs(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, runs)
}
