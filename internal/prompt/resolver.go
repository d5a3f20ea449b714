package prompt

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TemplateNotFoundError is raised when the full fallback chain misses. Always
// fatal for the operation; never silently defaulted to an empty prompt.
type TemplateNotFoundError struct {
	Name       string
	Regulation string
	Schedule   string
	Tried      []string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("prompt: template %q not found for regulation=%q schedule=%q (tried %s)",
		e.Name, e.Regulation, e.Schedule, strings.Join(e.Tried, ", "))
}

// Normalize converts a regulation or schedule label to its path form:
// lowercase, with spaces, hyphens, and periods collapsed to underscores.
// "Schedule D.1" → "schedule_d_1".
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch r {
		case ' ', '-', '.':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Resolver maps (templateName, regulation?, schedule?) to template text using
// the three-tier fallback: schedule-specific → regulation-common → generic.
// Successful resolutions are cached for process lifetime.
type Resolver struct {
	store Store
	log   *zap.Logger

	mu    sync.RWMutex
	cache map[string]*Template
}

// NewResolver creates a resolver over the given template store.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
		log:   zap.L().With(zap.String("component", "prompt.resolver")),
		cache: make(map[string]*Template),
	}
}

// Resolve returns the template for name under the given regulation/schedule
// context, or *TemplateNotFoundError when no tier resolves.
func (r *Resolver) Resolve(name, regulation, schedule string) (*Template, error) {
	normReg := Normalize(regulation)
	normSched := Normalize(schedule)
	key := name + "|" + normReg + "|" + normSched

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var tried []string
	for _, p := range r.candidatePaths(name, normReg, normSched) {
		tried = append(tried, p)
		raw, err := r.store.Read(p)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, eris.Wrapf(err, "prompt: resolve %s", name)
		}

		tmpl := parseTemplate(name, p, raw)
		r.mu.Lock()
		r.cache[key] = tmpl
		r.mu.Unlock()

		r.log.Debug("resolved template",
			zap.String("template", name),
			zap.String("path", p))
		return tmpl, nil
	}

	return nil, &TemplateNotFoundError{
		Name:       name,
		Regulation: regulation,
		Schedule:   schedule,
		Tried:      tried,
	}
}

// ClearCache drops all cached resolutions. There is no TTL; this is the only
// invalidation path.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*Template)
}

// candidatePaths returns the fallback chain in resolution order. Tiers whose
// context is absent are skipped.
func (r *Resolver) candidatePaths(name, normReg, normSched string) []string {
	file := name + ".txt"
	var paths []string
	if normReg != "" && normSched != "" {
		paths = append(paths, path.Join("regulatory", normReg, normSched, file))
	}
	if normReg != "" {
		paths = append(paths, path.Join("regulatory", normReg, "common", file))
	}
	paths = append(paths, path.Join("generic", file))
	return paths
}
