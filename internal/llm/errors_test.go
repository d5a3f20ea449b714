package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", errors.New("boom"), KindUnknown},
		{"typed rate limit", NewError(KindRateLimited, "anthropic", "429", nil), KindRateLimited},
		{"typed auth", NewError(KindAuthFailed, "perplexity", "bad key", nil), KindAuthFailed},
		{"wrapped typed error", fmt.Errorf("dispatch: %w", NewError(KindOverloaded, "anthropic", "", nil)), KindOverloaded},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(NewError(KindTimeout, "anthropic", "", nil)))
	assert.True(t, Retryable(NewError(KindRateLimited, "anthropic", "", nil)))
	assert.True(t, Retryable(NewError(KindOverloaded, "anthropic", "", nil)))

	assert.False(t, Retryable(NewError(KindAuthFailed, "anthropic", "", nil)))
	assert.False(t, Retryable(errors.New("malformed response")))
	assert.False(t, Retryable(nil))
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindAuthFailed},
		{403, KindAuthFailed},
		{408, KindTimeout},
		{429, KindRateLimited},
		{503, KindOverloaded},
		{529, KindOverloaded},
		{500, KindUnknown},
		{200, KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindForStatus(tt.status), "status %d", tt.status)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindTimeout, "perplexity", "request failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "perplexity")
	assert.Contains(t, err.Error(), "timeout")
}

func TestMetricsSnapshot(t *testing.T) {
	var m Metrics
	m.RecordCall(100, &Usage{InputTokens: 500, OutputTokens: 200}, 0.0125, false)
	m.RecordCall(300, nil, 0, true)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.Requests)
	assert.EqualValues(t, 1, snap.Failures)
	assert.EqualValues(t, 500, snap.InputTokens)
	assert.EqualValues(t, 200, snap.OutputTokens)
	assert.EqualValues(t, 200, snap.AvgLatency)
	assert.InDelta(t, 0.0125, snap.CumulativeUSD, 1e-9)
}
