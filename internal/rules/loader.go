package rules

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"docverify/internal/common"
)

// fileSet is the on-disk shape of a rule-set document.
type fileSet struct {
	ID              string     `json:"id"`
	Version         int        `json:"version"`
	ReviewThreshold float32    `json:"review_threshold"`
	Rules           []fileRule `json:"rules"`
}

type fileRule struct {
	Field         string        `json:"field"`
	Patterns      []filePattern `json:"patterns"`
	Normalizer    string        `json:"normalizer"`
	Required      bool          `json:"required"`
	MinConfidence float32       `json:"min_confidence"`
}

type filePattern struct {
	Expr     string  `json:"expr"`
	Strength float32 `json:"strength"`
}

// LoadDir loads every .yaml/.yml/.json rule-set under dir into a registry.
func LoadDir(dir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewError(common.KindRuleSetConfig, fmt.Sprintf("read rule-set dir %s", dir), err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		set, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if _, err := reg.Get(set.ID); err == nil {
			return nil, common.Errorf(common.KindRuleSetConfig, "duplicate rule-set id %q (%s)", set.ID, e.Name())
		}
		reg.Add(set)
		logger.Info("rule-set loaded", "id", set.ID, "version", set.Version, "rules", len(set.Rules))
	}
	if len(reg.IDs()) == 0 {
		return nil, common.Errorf(common.KindRuleSetConfig, "no rule-sets found in %s", dir)
	}
	return reg, nil
}

// LoadFile loads, validates and compiles a single rule-set file.
// Every failure is a KindRuleSetConfig error: misconfiguration is an
// operational alert, not a per-job retry target.
func LoadFile(path string) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, common.NewError(common.KindRuleSetConfig, fmt.Sprintf("read %s", path), err)
	}

	data := raw
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, common.NewError(common.KindRuleSetConfig, fmt.Sprintf("parse yaml %s", path), err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, common.NewError(common.KindRuleSetConfig, fmt.Sprintf("encode %s", path), err)
		}
	}

	if err := validateJSONAgainstSchema(BuildRuleSetSchema(), data); err != nil {
		return nil, common.NewError(common.KindRuleSetConfig, fmt.Sprintf("validate %s", path), err)
	}

	var fs fileSet
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, common.NewError(common.KindRuleSetConfig, fmt.Sprintf("decode %s", path), err)
	}
	return compile(fs, path)
}

func compile(fs fileSet, path string) (*Set, error) {
	set := &Set{
		ID:              fs.ID,
		Version:         fs.Version,
		ReviewThreshold: fs.ReviewThreshold,
	}
	seen := make(map[string]struct{}, len(fs.Rules))
	for _, fr := range fs.Rules {
		if _, dup := seen[fr.Field]; dup {
			return nil, common.Errorf(common.KindRuleSetConfig, "%s: duplicate field %q", path, fr.Field)
		}
		seen[fr.Field] = struct{}{}

		patterns := make([]Pattern, 0, len(fr.Patterns))
		for _, fp := range fr.Patterns {
			p, err := NewPattern(fp.Expr, fp.Strength)
			if err != nil {
				return nil, common.NewError(common.KindRuleSetConfig,
					fmt.Sprintf("%s: field %q: bad pattern %q", path, fr.Field, fp.Expr), err)
			}
			patterns = append(patterns, p)
		}

		rule, err := NewRule(fr.Field, patterns, fr.Normalizer, fr.Required, fr.MinConfidence)
		if err != nil {
			return nil, common.NewError(common.KindRuleSetConfig, path, err)
		}
		set.Rules = append(set.Rules, rule)
	}
	return set, nil
}
