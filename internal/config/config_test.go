package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"anthropic", "perplexity"}, cfg.Failover.Order)
	assert.Equal(t, 3, cfg.Failover.MaxConsecutiveFailures)
	assert.Equal(t, 900, cfg.Failover.CircuitBreakerTimeoutSecs)

	assert.Equal(t, "anthropic", cfg.Pipeline.DiscoveryProvider)
	assert.Equal(t, 2, cfg.Pipeline.InterBatchDelaySecs)
	assert.Equal(t, 5, cfg.Pipeline.RateLimitDelaySecs)

	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, 3, cfg.Anthropic.Retry.MaxRetries)

	assert.Equal(t, "prompts", cfg.Prompts.Dir)
	assert.Equal(t, "attrgen.db", cfg.Journal.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ATTRGEN_PIPELINE_DETAILS_PROVIDER", "perplexity")
	t.Setenv("ATTRGEN_ANTHROPIC_KEY", "sk-test")
	t.Setenv("ATTRGEN_FAILOVER_CIRCUIT_BREAKER_TIMEOUT_SECS", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "perplexity", cfg.Pipeline.DetailsProvider)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, 60, cfg.Failover.CircuitBreakerTimeoutSecs)
}

func TestProviderConfig_Descriptor(t *testing.T) {
	pc := ProviderConfig{
		Model:           "claude-sonnet-4-5-20250929",
		Temperature:     0.2,
		MaxTokens:       8192,
		RateLimitPerMin: 50,
		TimeoutSecs:     45,
		Retry: RetryConfig{
			MaxRetries:    4,
			BaseDelayMs:   500,
			BackoffFactor: 2.5,
		},
	}

	desc := pc.Descriptor("anthropic")
	assert.Equal(t, "anthropic", desc.Name)
	assert.Equal(t, 45*time.Second, desc.Timeout)
	assert.Equal(t, 500*time.Millisecond, desc.Retry.BaseDelay)
	assert.InDelta(t, 2.5, desc.Retry.BackoffFactor, 1e-9)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	require.Error(t, err)
}
