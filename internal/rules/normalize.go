package rules

import (
	"strconv"
	"strings"
	"unicode"
)

// normalizers maps the names usable in rule-set files to their functions.
// All normalizers are pure and deterministic.
var normalizers = map[string]func(string) string{
	"trim":            strings.TrimSpace,
	"collapse_spaces": collapseSpaces,
	"strip_punct":     stripPunct,
	"digits":          digitsOnly,
	"amount":          normalizeAmount,
	"title_case":      titleCase,
}

// lookupNormalizer resolves a normalizer by name. The empty name means trim.
func lookupNormalizer(name string) (func(string) string, bool) {
	if name == "" {
		return strings.TrimSpace, true
	}
	fn, ok := normalizers[name]
	return fn, ok
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripPunct(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return collapseSpaces(b.String())
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeAmount strips currency decoration and renders a fixed
// two-decimal figure. Unparseable input falls back to the trimmed raw
// value so a reviewer still sees what matched.
func normalizeAmount(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
