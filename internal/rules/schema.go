package rules

// BuildRuleSetSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. Rule-set files are validated against it before compiling,
// so pattern and normalizer mistakes surface at load time as operational
// errors instead of mid-job.
func BuildRuleSetSchema() map[string]any {
	pattern := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"expr":     map[string]any{"type": "string", "minLength": 1},
			"strength": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"expr", "strength"},
	}

	rule := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"field":          map[string]any{"type": "string", "minLength": 1},
			"patterns":       map[string]any{"type": "array", "minItems": 1, "items": pattern},
			"normalizer":     map[string]any{"type": "string"},
			"required":       map[string]any{"type": "boolean"},
			"min_confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"field", "patterns"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"id":               map[string]any{"type": "string", "minLength": 1},
			"version":          map[string]any{"type": "integer", "minimum": 1},
			"review_threshold": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"rules":            map[string]any{"type": "array", "minItems": 1, "items": rule},
		},
		"required": []string{"id", "version", "rules"},
	}
}
