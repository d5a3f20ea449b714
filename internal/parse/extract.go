// Package parse extracts structured data from free-text model output, which
// is frequently wrapped in prose, fenced in markdown, or partially truncated.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// minNumberedEntries is the threshold below which a numbered list is treated
// as incidental prose rather than a real enumeration.
const minNumberedEntries = 5

var (
	numberedLineRe  = regexp.MustCompile(`^\s*\d+[.)]\s+(.+?)\s*$`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// Extract pulls structured data out of model output text. Strategies are
// tried in order; the first success wins:
//
//  1. text already begins with '[' or '{' — balanced-bracket parse from 0
//  2. strip markdown code fences and retry
//  3. scan for the first balanced [...] or {...} substring anywhere
//  4. numbered-list fallback, only when a flat name list was expected
//
// Returns ok=false when no strategy succeeds; callers decide whether that is
// fatal.
func Extract(text string, expectObjectList bool) (any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	if trimmed[0] == '[' || trimmed[0] == '{' {
		if v, ok := parseBalanced(trimmed, 0); ok {
			return v, true
		}
	}

	if stripped := stripFences(trimmed); stripped != trimmed {
		s := strings.TrimSpace(stripped)
		if s != "" && (s[0] == '[' || s[0] == '{') {
			if v, ok := parseBalanced(s, 0); ok {
				return v, true
			}
		}
	}

	for start := 0; start < len(trimmed); start++ {
		idx := strings.IndexAny(trimmed[start:], "[{")
		if idx < 0 {
			break
		}
		start += idx
		if v, ok := parseBalanced(trimmed, start); ok {
			return v, true
		}
	}

	if !expectObjectList {
		if names := numberedList(trimmed); len(names) >= minNumberedEntries {
			out := make([]any, len(names))
			for i, n := range names {
				out[i] = n
			}
			return out, true
		}
	}

	return nil, false
}

// ExtractNames extracts a flat list of attribute names, normalized to
// lowercase underscore form.
func ExtractNames(text string) ([]string, bool) {
	v, ok := Extract(text, false)
	if !ok {
		return nil, false
	}

	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}

	names := make([]string, 0, len(arr))
	for _, item := range arr {
		switch t := item.(type) {
		case string:
			if s := Slug(t); s != "" {
				names = append(names, s)
			}
		case map[string]any:
			// Some models return [{"name": ...}] even for discovery.
			if n, ok := t["name"].(string); ok {
				if s := Slug(n); s != "" {
					names = append(names, s)
				}
			}
		}
	}
	if len(names) == 0 {
		return nil, false
	}
	return names, true
}

// ExtractObjects extracts a list of detail objects. A single top-level object
// is accepted as a one-element list.
func ExtractObjects(text string) ([]map[string]any, bool) {
	v, ok := Extract(text, true)
	if !ok {
		return nil, false
	}

	switch t := v.(type) {
	case []any:
		objs := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				objs = append(objs, m)
			}
		}
		if len(objs) == 0 {
			return nil, false
		}
		return objs, true
	case map[string]any:
		return []map[string]any{t}, true
	default:
		return nil, false
	}
}

// Slug normalizes a display name to lowercase underscore form.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// parseBalanced extracts the balanced bracket span starting at start and
// unmarshals it, repairing trailing commas first.
func parseBalanced(text string, start int) (any, bool) {
	span, ok := balancedSpan(text, start)
	if !ok {
		return nil, false
	}

	repaired := trailingCommaRe.ReplaceAllString(span, "$1")

	var v any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, false
	}
	return v, true
}

// balancedSpan returns the substring from start through the matching close
// bracket, honoring JSON string literals and escapes.
func balancedSpan(text string, start int) (string, bool) {
	open := text[start]
	var closing byte
	switch open {
	case '[':
		closing = ']'
	case '{':
		closing = '}'
	default:
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// stripFences removes a leading ```json or ``` fence and its closing fence.
func stripFences(text string) string {
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}
	return text
}

// numberedList parses "1. Name" style lines into normalized names.
func numberedList(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		m := numberedLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if s := Slug(m[1]); s != "" {
			names = append(names, s)
		}
	}
	return names
}
