// Package policy holds the static per-provider, per-operation batch-size
// table. Loaded once at startup and treated as immutable.
package policy

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Operation names used in policy lookups.
const (
	OpAttributeDiscovery = "attribute_discovery"
	OpAttributeDetails   = "attribute_details"
)

// BatchSize bounds how many items are requested per call for one
// provider/operation pair.
type BatchSize struct {
	Min               int `yaml:"min"`
	Default           int `yaml:"default"`
	Max               int `yaml:"max"`
	OptimalForSpeed   int `yaml:"optimal_for_speed"`
	OptimalForQuality int `yaml:"optimal_for_quality"`
}

// Table is the full provider × operation policy.
type Table struct {
	entries map[string]map[string]BatchSize
}

// Defaults returns the built-in table used when no policy file is configured.
// Providers with larger context windows get larger detail batches.
func Defaults() *Table {
	return &Table{entries: map[string]map[string]BatchSize{
		"anthropic": {
			OpAttributeDiscovery: {Min: 1, Default: 1, Max: 1, OptimalForSpeed: 1, OptimalForQuality: 1},
			OpAttributeDetails:   {Min: 5, Default: 50, Max: 75, OptimalForSpeed: 75, OptimalForQuality: 25},
		},
		"perplexity": {
			OpAttributeDiscovery: {Min: 1, Default: 1, Max: 1, OptimalForSpeed: 1, OptimalForQuality: 1},
			OpAttributeDetails:   {Min: 5, Default: 25, Max: 40, OptimalForSpeed: 40, OptimalForQuality: 15},
		},
	}}
}

// Load reads a policy table from a YAML file and validates every entry.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read %s", path)
	}

	// The YAML has a top-level "batch_sizes" key.
	var wrapper struct {
		BatchSizes map[string]map[string]BatchSize `yaml:"batch_sizes"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "policy: parse")
	}

	t := &Table{entries: wrapper.BatchSizes}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// validate enforces min <= default <= max and quality <= speed for every
// entry, at load time rather than per-request.
func (t *Table) validate() error {
	for provider, ops := range t.entries {
		for op, bs := range ops {
			if bs.Min <= 0 || bs.Min > bs.Default || bs.Default > bs.Max {
				return eris.Errorf("policy: %s/%s: min <= default <= max violated (%d/%d/%d)",
					provider, op, bs.Min, bs.Default, bs.Max)
			}
			if bs.OptimalForQuality > bs.OptimalForSpeed {
				return eris.Errorf("policy: %s/%s: optimal_for_quality %d exceeds optimal_for_speed %d",
					provider, op, bs.OptimalForQuality, bs.OptimalForSpeed)
			}
		}
	}
	return nil
}

// Lookup returns the batch size entry for a provider/operation pair.
func (t *Table) Lookup(provider, operation string) (BatchSize, bool) {
	ops, ok := t.entries[provider]
	if !ok {
		return BatchSize{}, false
	}
	bs, ok := ops[operation]
	return bs, ok
}

// DetailBatchSize returns the default detail batch size for a provider,
// falling back to the most conservative built-in when the provider has no
// entry.
func (t *Table) DetailBatchSize(provider string) int {
	if bs, ok := t.Lookup(provider, OpAttributeDetails); ok {
		return bs.Default
	}
	return 25
}
