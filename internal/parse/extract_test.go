package parse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_DirectJSON(t *testing.T) {
	v, ok := Extract(`["loan_id", "credit_limit"]`, false)
	require.True(t, ok)
	assert.Equal(t, []any{"loan_id", "credit_limit"}, v)
}

func TestExtract_FencedObjectList(t *testing.T) {
	var entries []string
	for i := 1; i <= 5; i++ {
		entries = append(entries, fmt.Sprintf(`{"name": "attr_%d", "data_type": "string"}`, i))
	}
	text := "```json\n[" + strings.Join(entries, ",\n") + "]\n```"

	objs, ok := ExtractObjects(text)
	require.True(t, ok)
	require.Len(t, objs, 5)
	for i, obj := range objs {
		assert.Equal(t, fmt.Sprintf("attr_%d", i+1), obj["name"], "order must be preserved")
	}
}

func TestExtract_JSONEmbeddedInProse(t *testing.T) {
	text := `Here are the attributes you asked for:

["account_number", "cycle_date", "current_balance"]

Let me know if you need more detail.`

	names, ok := ExtractNames(text)
	require.True(t, ok)
	assert.Equal(t, []string{"account_number", "cycle_date", "current_balance"}, names)
}

func TestExtract_SkipsUnbalancedBracketBeforeJSON(t *testing.T) {
	// The stray "[sic]" must not stop the scan from reaching the real payload.
	text := `Per the instructions [sic, see section 3: {"name": "credit_score", "data_type": "integer"}`

	objs, ok := ExtractObjects(text)
	require.True(t, ok)
	require.Len(t, objs, 1)
	assert.Equal(t, "credit_score", objs[0]["name"])
}

func TestExtract_TrailingCommaRepaired(t *testing.T) {
	text := `[{"name": "apr", "mandatory": true,},]`

	objs, ok := ExtractObjects(text)
	require.True(t, ok)
	require.Len(t, objs, 1)
	assert.Equal(t, "apr", objs[0]["name"])
	assert.Equal(t, true, objs[0]["mandatory"])
}

func TestExtract_NumberedListFallback(t *testing.T) {
	lines := []string{
		"The key attributes are:",
		"1. Loan ID",
		"2. Credit Limit",
		"3. Current Balance",
		"4. Days Past Due",
		"5. Account Status",
		"6. Origination Date",
		"7. Credit Score",
		"8. Interest Rate",
	}
	names, ok := ExtractNames(strings.Join(lines, "\n"))
	require.True(t, ok)
	assert.Equal(t, []string{
		"loan_id", "credit_limit", "current_balance", "days_past_due",
		"account_status", "origination_date", "credit_score", "interest_rate",
	}, names)
}

func TestExtract_NumberedListBelowThresholdFails(t *testing.T) {
	text := "1. First\n2. Second\n3. Third\n4. Fourth"
	_, ok := Extract(text, false)
	assert.False(t, ok, "fewer than 5 numbered entries is incidental prose")
}

func TestExtract_NumberedListNotUsedForObjects(t *testing.T) {
	text := "1. First\n2. Second\n3. Third\n4. Fourth\n5. Fifth\n6. Sixth"
	_, ok := Extract(text, true)
	assert.False(t, ok, "numbered-list fallback only applies to flat name lists")
}

func TestExtract_EmptyAndGarbage(t *testing.T) {
	for _, text := range []string{"", "   \n  ", "no structure here at all", "[unclosed"} {
		_, ok := Extract(text, false)
		assert.False(t, ok, "input %q", text)
	}
}

func TestExtractNames_ObjectEntries(t *testing.T) {
	// Some models return objects even when asked for a name list.
	text := `[{"name": "Loan ID"}, {"name": "Credit Limit"}, "Days Past Due"]`

	names, ok := ExtractNames(text)
	require.True(t, ok)
	assert.Equal(t, []string{"loan_id", "credit_limit", "days_past_due"}, names)
}

func TestExtractObjects_SingleObject(t *testing.T) {
	objs, ok := ExtractObjects(`{"name": "apr", "data_type": "decimal"}`)
	require.True(t, ok)
	require.Len(t, objs, 1)
	assert.Equal(t, "apr", objs[0]["name"])
}

func TestExtract_BracketsInsideStrings(t *testing.T) {
	text := `[{"name": "note", "description": "see [1] and {braces} in text"}]`

	objs, ok := ExtractObjects(text)
	require.True(t, ok)
	require.Len(t, objs, 1)
	assert.Equal(t, "see [1] and {braces} in text", objs[0]["description"])
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Loan ID", "loan_id"},
		{"Schedule D.1", "schedule_d_1"},
		{"FR Y-14M", "fr_y_14m"},
		{"  Days   Past Due  ", "days_past_due"},
		{"already_slugged", "already_slugged"},
		{"Trailing punctuation!", "trailing_punctuation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in), "input %q", tt.in)
	}
}
