// Package rules holds the versioned extraction rule-sets applied during
// the extract stage. Sets are loaded and validated at startup and are
// immutable afterwards; a malformed set is a deployment bug, never a
// per-job failure.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// ErrUnknownSet is returned when a job references a rule-set id that was
// not loaded.
var ErrUnknownSet = errors.New("unknown rule-set")

// Pattern is one compiled capture pattern with its match strength.
// A tightly-scoped pattern carries a higher strength than a loose
// fallback; the extractor multiplies strength into field confidence.
type Pattern struct {
	Expr     string
	Strength float32

	re *regexp.Regexp
}

// Regexp returns the compiled expression.
func (p Pattern) Regexp() *regexp.Regexp { return p.re }

// NewPattern compiles expr into a pattern with the given strength.
func NewPattern(expr string, strength float32) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Expr: expr, Strength: strength, re: re}, nil
}

// Rule extracts one named field from recognized text.
type Rule struct {
	Field         string
	Patterns      []Pattern
	Normalizer    string
	Required      bool
	MinConfidence float32

	normalize func(string) string
}

// NewRule builds a rule over compiled patterns. The normalizer name must
// be registered; the empty name means trim.
func NewRule(field string, patterns []Pattern, normalizer string, required bool, minConfidence float32) (Rule, error) {
	fn, ok := lookupNormalizer(normalizer)
	if !ok {
		return Rule{}, fmt.Errorf("field %q: unknown normalizer %q", field, normalizer)
	}
	return Rule{
		Field:         field,
		Patterns:      patterns,
		Normalizer:    normalizer,
		Required:      required,
		MinConfidence: minConfidence,
		normalize:     fn,
	}, nil
}

// Apply runs the rule's normalizer over a raw captured value.
func (r Rule) Apply(value string) string {
	if r.normalize == nil {
		return value
	}
	return r.normalize(value)
}

// Set is a named, versioned collection of extraction rules.
type Set struct {
	ID              string
	Version         int
	ReviewThreshold float32
	Rules           []Rule
}

// Registry serves immutable rule-sets by id.
type Registry struct {
	sets map[string]*Set
}

func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*Set)}
}

func (r *Registry) Add(set *Set) {
	r.sets[set.ID] = set
}

// Get returns the rule-set for id or ErrUnknownSet.
func (r *Registry) Get(id string) (*Set, error) {
	set, ok := r.sets[id]
	if !ok {
		return nil, ErrUnknownSet
	}
	return set, nil
}

// IDs returns loaded rule-set ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.sets))
	for id := range r.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
