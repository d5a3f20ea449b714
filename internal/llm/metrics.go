package llm

import (
	"sync"
	"time"
)

// Metrics accumulates running call statistics for one adapter. Values are
// observability-only and never feed control flow.
type Metrics struct {
	mu            sync.Mutex
	requests      int64
	failures      int64
	inputTokens   int64
	outputTokens  int64
	totalLatency  time.Duration
	cumulativeUSD float64
}

// MetricsSnapshot is a point-in-time copy of adapter metrics.
type MetricsSnapshot struct {
	Requests      int64         `json:"requests"`
	Failures      int64         `json:"failures"`
	InputTokens   int64         `json:"input_tokens"`
	OutputTokens  int64         `json:"output_tokens"`
	AvgLatency    time.Duration `json:"avg_latency"`
	CumulativeUSD float64       `json:"cumulative_cost_usd"`
}

// RecordCall folds one completed call into the running totals.
func (m *Metrics) RecordCall(latency time.Duration, usage *Usage, costUSD float64, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	if failed {
		m.failures++
	}
	if usage != nil {
		m.inputTokens += usage.InputTokens
		m.outputTokens += usage.OutputTokens
	}
	m.totalLatency += latency
	m.cumulativeUSD += costUSD
}

// Snapshot returns a copy of the current totals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Requests:      m.requests,
		Failures:      m.failures,
		InputTokens:   m.inputTokens,
		OutputTokens:  m.outputTokens,
		CumulativeUSD: m.cumulativeUSD,
	}
	if m.requests > 0 {
		snap.AvgLatency = m.totalLatency / time.Duration(m.requests)
	}
	return snap
}
