package prompt

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// placeholderRe matches {{name}} placeholders.
var placeholderRe = regexp.MustCompile(`\{\{([a-z0-9_]+)\}\}`)

// directiveRe matches schema directive lines at the top of a template file:
//
//	#! required: regulatory_context, report_type
//	#! optional: schedule
var directiveRe = regexp.MustCompile(`^#!\s*(required|optional):\s*(.*)$`)

// Template is resolved template text plus its placeholder schema. Placeholders
// not declared by a directive are required, so an undeclared template fails
// fast on any missing substitution instead of silently rendering empty
// strings.
type Template struct {
	Name string
	// Path is the store path the template resolved from.
	Path string
	Body string

	required map[string]bool
	optional map[string]bool
}

// parseTemplate extracts schema directives and placeholder usage from raw
// template text.
func parseTemplate(name, path, raw string) *Template {
	t := &Template{
		Name:     name,
		Path:     path,
		required: make(map[string]bool),
		optional: make(map[string]bool),
	}

	var body []string
	for i, line := range strings.Split(raw, "\n") {
		m := directiveRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || i > 4 {
			body = append(body, line)
			continue
		}
		for _, field := range strings.Split(m[2], ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			if m[1] == "required" {
				t.required[field] = true
			} else {
				t.optional[field] = true
			}
		}
	}
	t.Body = strings.Join(body, "\n")

	// Any placeholder the directives did not declare is required, so a typo'd
	// or forgotten declaration fails the render instead of substituting "".
	for _, m := range placeholderRe.FindAllStringSubmatch(t.Body, -1) {
		if !t.optional[m[1]] {
			t.required[m[1]] = true
		}
	}

	return t
}

// Required returns the sorted required placeholder names.
func (t *Template) Required() []string {
	out := make([]string, 0, len(t.required))
	for k := range t.required {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render substitutes params into the template body. Missing required
// placeholders are an error; missing optional ones render as empty strings.
func (t *Template) Render(params map[string]string) (string, error) {
	var missing []string
	for k := range t.required {
		if _, ok := params[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", eris.Errorf("prompt: template %s missing required params: %s",
			t.Name, strings.Join(missing, ", "))
	}

	rendered := placeholderRe.ReplaceAllStringFunc(t.Body, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		return params[key]
	})
	return rendered, nil
}
