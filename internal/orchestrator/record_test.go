package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeRecord_FullyPopulated(t *testing.T) {
	rec, ok := normalizeRecord(map[string]any{
		"name":                     "Credit Limit",
		"data_type":                "Decimal",
		"mandatory":                true,
		"description":              "The account's credit limit.",
		"validation_rules":         "Non-negative.",
		"typical_source_documents": "Account master file.",
		"keywords_to_look_for":     "limit, line",
		"testing_approach":         "Recompute from source.",
	})
	require.True(t, ok)
	assert.Equal(t, "credit_limit", rec.Name, "names are slugged")
	assert.Equal(t, "decimal", rec.DataType, "data types are lowercased")
	assert.True(t, rec.Mandatory)
	assert.False(t, rec.Synthesized)
}

func TestNormalizeRecord_MissingNameDropped(t *testing.T) {
	_, ok := normalizeRecord(map[string]any{"data_type": "string", "description": "orphan"})
	assert.False(t, ok)

	_, ok = normalizeRecord(map[string]any{"name": "   "})
	assert.False(t, ok, "whitespace-only name is no name")
}

func TestNormalizeRecord_BackfillsMissingCoreFields(t *testing.T) {
	rec, ok := normalizeRecord(map[string]any{"name": "days_past_due"})
	require.True(t, ok)
	assert.True(t, rec.Synthesized, "backfilled core fields mark the record synthesized")
	assert.Equal(t, defaultDataType, rec.DataType)
	assert.False(t, rec.Mandatory)
	assert.Equal(t, defaultDescription, rec.Description)
	assert.Equal(t, defaultValidationRules, rec.ValidationRules)
	assert.Equal(t, defaultTestingApproach, rec.TestingApproach)
}

func TestNormalizeRecord_KeyAliases(t *testing.T) {
	rec, ok := normalizeRecord(map[string]any{
		"attribute_name": "APR",
		"dataType":       "decimal",
		"required":       "yes",
	})
	require.True(t, ok)
	assert.Equal(t, "apr", rec.Name)
	assert.Equal(t, "decimal", rec.DataType)
	assert.True(t, rec.Mandatory)
}

func TestNormalizeRecord_BoolFromString(t *testing.T) {
	tests := []struct {
		raw     any
		want    bool
		present bool
	}{
		{true, true, true},
		{false, false, true},
		{"true", true, true},
		{"Mandatory", true, true},
		{"no", false, true},
		{"Optional", false, true},
		{"maybe", false, false},
		{42.0, false, false},
	}
	for _, tt := range tests {
		got, ok := boolField(map[string]any{"mandatory": tt.raw}, "mandatory")
		assert.Equal(t, tt.present, ok, "input %v", tt.raw)
		if tt.present {
			assert.Equal(t, tt.want, got, "input %v", tt.raw)
		}
	}
}

func TestNormalizeBatch_PreservesOrderAndDropsNameless(t *testing.T) {
	objs := []map[string]any{
		{"name": "loan_id", "data_type": "string"},
		{"description": "no name here"},
		{"name": "credit_limit", "data_type": "decimal"},
	}
	records := normalizeBatch(objs, zap.NewNop())
	require.Len(t, records, 2)
	assert.Equal(t, "loan_id", records[0].Name)
	assert.Equal(t, "credit_limit", records[1].Name)
}
