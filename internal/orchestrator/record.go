package orchestrator

import (
	"strings"

	"go.uber.org/zap"

	"github.com/regsuite/attrgen/internal/parse"
)

// Documented defaults for backfilled fields.
const (
	defaultDataType        = "string"
	defaultDescription     = "No description provided by the model."
	defaultValidationRules = "None specified."
	defaultSourceDocuments = "Not specified."
	defaultKeywords        = "Not specified."
	defaultTestingApproach = "Manual review against source documents."
)

// AttributeRecord is one fully-populated regulatory attribute.
type AttributeRecord struct {
	Name                   string `json:"name"`
	DataType               string `json:"data_type"`
	Mandatory              bool   `json:"mandatory"`
	Description            string `json:"description"`
	ValidationRules        string `json:"validation_rules"`
	TypicalSourceDocuments string `json:"typical_source_documents"`
	KeywordsToLookFor      string `json:"keywords_to_look_for"`
	TestingApproach        string `json:"testing_approach"`
	// Synthesized marks records whose core fields (other than name) were
	// backfilled with defaults rather than returned by the model.
	Synthesized bool `json:"synthesized,omitempty"`
}

// normalizeRecord converts one parsed detail object into an AttributeRecord.
// A record without a name cannot be keyed and is dropped (ok=false, logged by
// the caller). Missing core fields other than name are backfilled and flag
// the record as synthesized; missing optional fields get defaults silently.
func normalizeRecord(obj map[string]any) (AttributeRecord, bool) {
	name := parse.Slug(stringField(obj, "name", "attribute_name", "attribute"))
	if name == "" {
		return AttributeRecord{}, false
	}

	rec := AttributeRecord{Name: name}

	if dt := stringField(obj, "data_type", "dataType", "type"); dt != "" {
		rec.DataType = strings.ToLower(dt)
	} else {
		rec.DataType = defaultDataType
		rec.Synthesized = true
	}

	if m, ok := boolField(obj, "mandatory", "mandatory_flag", "required"); ok {
		rec.Mandatory = m
	} else {
		rec.Mandatory = false
		rec.Synthesized = true
	}

	if d := stringField(obj, "description"); d != "" {
		rec.Description = d
	} else {
		rec.Description = defaultDescription
		rec.Synthesized = true
	}

	rec.ValidationRules = stringFieldOr(obj, defaultValidationRules, "validation_rules", "validationRules")
	rec.TypicalSourceDocuments = stringFieldOr(obj, defaultSourceDocuments, "typical_source_documents", "typicalSourceDocuments", "source_documents")
	rec.KeywordsToLookFor = stringFieldOr(obj, defaultKeywords, "keywords_to_look_for", "keywordsToLookFor", "keywords")
	rec.TestingApproach = stringFieldOr(obj, defaultTestingApproach, "testing_approach", "testingApproach")

	return rec, true
}

// normalizeBatch converts a batch of parsed objects, preserving order and
// logging every dropped record with its reason.
func normalizeBatch(objs []map[string]any, log *zap.Logger) []AttributeRecord {
	records := make([]AttributeRecord, 0, len(objs))
	for i, obj := range objs {
		rec, ok := normalizeRecord(obj)
		if !ok {
			log.Warn("dropping attribute record without a name",
				zap.Int("index", i),
				zap.Any("keys", objKeys(obj)))
			continue
		}
		records = append(records, rec)
	}
	return records
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func stringFieldOr(obj map[string]any, fallback string, keys ...string) string {
	if s := stringField(obj, keys...); s != "" {
		return s
	}
	return fallback
}

func boolField(obj map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "yes", "y", "mandatory", "required":
				return true, true
			case "false", "no", "n", "optional":
				return false, true
			}
		}
	}
	return false, false
}

func objKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return keys
}
