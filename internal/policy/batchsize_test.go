package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch_sizes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults_Validate(t *testing.T) {
	require.NoError(t, Defaults().validate())

	bs, ok := Defaults().Lookup("anthropic", OpAttributeDetails)
	require.True(t, ok)
	assert.Equal(t, 50, bs.Default)
	assert.Equal(t, 75, bs.Max)

	bs, ok = Defaults().Lookup("perplexity", OpAttributeDetails)
	require.True(t, ok)
	assert.Equal(t, 25, bs.Default)
}

func TestLoad_ValidFile(t *testing.T) {
	path := writePolicy(t, `
batch_sizes:
  anthropic:
    attribute_details:
      min: 5
      default: 40
      max: 60
      optimal_for_speed: 60
      optimal_for_quality: 20
`)
	table, err := Load(path)
	require.NoError(t, err)

	bs, ok := table.Lookup("anthropic", OpAttributeDetails)
	require.True(t, ok)
	assert.Equal(t, BatchSize{Min: 5, Default: 40, Max: 60, OptimalForSpeed: 60, OptimalForQuality: 20}, bs)
}

func TestLoad_RejectsMinDefaultMaxViolation(t *testing.T) {
	path := writePolicy(t, `
batch_sizes:
  anthropic:
    attribute_details:
      min: 30
      default: 20
      max: 60
      optimal_for_speed: 60
      optimal_for_quality: 20
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min <= default <= max")
}

func TestLoad_RejectsQualityAboveSpeed(t *testing.T) {
	path := writePolicy(t, `
batch_sizes:
  perplexity:
    attribute_details:
      min: 5
      default: 20
      max: 40
      optimal_for_speed: 20
      optimal_for_quality: 40
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "optimal_for_quality")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDetailBatchSize_Fallback(t *testing.T) {
	table := Defaults()
	assert.Equal(t, 50, table.DetailBatchSize("anthropic"))
	assert.Equal(t, 25, table.DetailBatchSize("perplexity"))
	assert.Equal(t, 25, table.DetailBatchSize("unknown"), "unknown providers use the conservative default")
}
