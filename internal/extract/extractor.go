// Package extract applies a rule-set to recognized text, producing a
// field map with per-field confidence. It never fails on "no match":
// absence of a required field is a routing decision owned by the
// orchestrator, not an extraction error.
package extract

import (
	"docverify/internal/entity"
	"docverify/internal/rules"
)

// defaultRegionConfidence is assumed for a matched span not covered by
// any recognizer region (e.g. text sources without word confidences).
const defaultRegionConfidence = 0.6

type candidate struct {
	value      string
	pos        int
	confidence float32
}

// Extract runs every rule in the set over text. For each rule the best
// candidate wins: highest confidence first, then earliest position, then
// earliest pattern, so the result is deterministic for fixed input.
//
// The second return value is the aggregate confidence: the minimum over
// required fields that matched (0 when none did).
func Extract(text string, set *rules.Set, regions []entity.Region) (map[string]entity.Field, float32) {
	fields := make(map[string]entity.Field)

	for _, rule := range set.Rules {
		best, ok := bestCandidate(text, rule, regions)
		if !ok {
			continue
		}
		fields[rule.Field] = entity.Field{
			Value:      best.value,
			Normalized: rule.Apply(best.value),
			Confidence: best.confidence,
		}
	}

	return fields, overallConfidence(set, fields)
}

func bestCandidate(text string, rule rules.Rule, regions []entity.Region) (candidate, bool) {
	var best candidate
	found := false

	for _, pat := range rule.Patterns {
		for _, idx := range pat.Regexp().FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[0], idx[1]
			// Prefer the first capture group when the pattern has one.
			if len(idx) >= 4 && idx[2] >= 0 {
				start, end = idx[2], idx[3]
			}
			c := candidate{
				value:      text[start:end],
				pos:        idx[0],
				confidence: pat.Strength * regionConfidence(regions, start, end),
			}
			if !found || better(c, best) {
				best = c
				found = true
			}
		}
	}
	return best, found
}

// better reports whether a beats b: strictly higher confidence, or equal
// confidence at an earlier position. Anything else keeps b, which also
// makes the earlier pattern win exact ties at the same position.
func better(a, b candidate) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	return a.pos < b.pos
}

// regionConfidence averages recognizer confidence over the regions
// overlapping [start, end).
func regionConfidence(regions []entity.Region, start, end int) float32 {
	var sum float32
	var n int
	for _, r := range regions {
		if r.Start < end && r.End > start {
			sum += r.Confidence
			n++
		}
	}
	if n == 0 {
		return defaultRegionConfidence
	}
	return sum / float32(n)
}

func overallConfidence(set *rules.Set, fields map[string]entity.Field) float32 {
	var min float32
	seen := false
	for _, rule := range set.Rules {
		if !rule.Required {
			continue
		}
		f, ok := fields[rule.Field]
		if !ok {
			continue
		}
		if !seen || f.Confidence < min {
			min = f.Confidence
			seen = true
		}
	}
	if !seen {
		return 0
	}
	return min
}
