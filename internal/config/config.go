// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/regsuite/attrgen/internal/llm"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity ProviderConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Failover   FailoverConfig `yaml:"failover" mapstructure:"failover"`
	Pipeline   PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Prompts    PromptsConfig  `yaml:"prompts" mapstructure:"prompts"`
	Journal    JournalConfig  `yaml:"journal" mapstructure:"journal"`
	Log        LogConfig      `yaml:"log" mapstructure:"log"`
}

// ProviderConfig holds one provider's credentials and model tuning.
type ProviderConfig struct {
	Key             string      `yaml:"key" mapstructure:"key"`
	Model           string      `yaml:"model" mapstructure:"model"`
	Temperature     float64     `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens       int64       `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimitPerMin int         `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
	TimeoutSecs     int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry           RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig bounds adapter-level retries.
type RetryConfig struct {
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelayMs   int     `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	BackoffFactor float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
}

// FailoverConfig configures provider selection and circuit breaking.
type FailoverConfig struct {
	// Order is the fixed global preference order.
	Order                     []string `yaml:"order" mapstructure:"order"`
	MaxConsecutiveFailures    int      `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
	CircuitBreakerTimeoutSecs int      `yaml:"circuit_breaker_timeout_secs" mapstructure:"circuit_breaker_timeout_secs"`
}

// PipelineConfig configures the two-phase generation pipeline.
type PipelineConfig struct {
	DiscoveryProvider   string `yaml:"discovery_provider" mapstructure:"discovery_provider"`
	DetailsProvider     string `yaml:"details_provider" mapstructure:"details_provider"`
	InterBatchDelaySecs int    `yaml:"inter_batch_delay_secs" mapstructure:"inter_batch_delay_secs"`
	RateLimitDelaySecs  int    `yaml:"rate_limit_delay_secs" mapstructure:"rate_limit_delay_secs"`
	BatchPolicyPath     string `yaml:"batch_policy_path" mapstructure:"batch_policy_path"`
}

// PromptsConfig locates the on-disk template tree.
type PromptsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Descriptor converts a provider config into an immutable llm.Descriptor.
func (p ProviderConfig) Descriptor(name string) llm.Descriptor {
	return llm.Descriptor{
		Name:            name,
		Model:           p.Model,
		Temperature:     p.Temperature,
		MaxTokens:       p.MaxTokens,
		RateLimitPerMin: p.RateLimitPerMin,
		Timeout:         time.Duration(p.TimeoutSecs) * time.Second,
		Retry: llm.RetryPolicy{
			MaxRetries:    p.Retry.MaxRetries,
			BaseDelay:     time.Duration(p.Retry.BaseDelayMs) * time.Millisecond,
			BackoffFactor: p.Retry.BackoffFactor,
		},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATTRGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("prompts.dir", "prompts")
	v.SetDefault("journal.path", "attrgen.db")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.rate_limit_per_min", 50)
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("anthropic.retry.max_retries", 3)
	v.SetDefault("anthropic.retry.base_delay_ms", 1000)
	v.SetDefault("anthropic.retry.backoff_factor", 2.0)
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.temperature", 0.2)
	v.SetDefault("perplexity.max_tokens", 4096)
	v.SetDefault("perplexity.rate_limit_per_min", 20)
	v.SetDefault("perplexity.timeout_secs", 30)
	v.SetDefault("perplexity.retry.max_retries", 3)
	v.SetDefault("perplexity.retry.base_delay_ms", 1000)
	v.SetDefault("perplexity.retry.backoff_factor", 2.0)
	v.SetDefault("failover.order", []string{"anthropic", "perplexity"})
	v.SetDefault("failover.max_consecutive_failures", 3)
	v.SetDefault("failover.circuit_breaker_timeout_secs", 900)
	v.SetDefault("pipeline.discovery_provider", "anthropic")
	v.SetDefault("pipeline.details_provider", "anthropic")
	v.SetDefault("pipeline.inter_batch_delay_secs", 2)
	v.SetDefault("pipeline.rate_limit_delay_secs", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
