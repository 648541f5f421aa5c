package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"docverify/internal/extract"
	"docverify/internal/rules"
)

// runextract applies a rule-set to already-recognized text without the
// daemon, for tuning patterns against sample documents.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 4 {
		logger.Error("usage", "cmd", "runextract <ruleset-dir> <ruleset-id> <text-file>")
		os.Exit(2)
	}
	dir, setID, textPath := os.Args[1], os.Args[2], os.Args[3]

	registry, err := rules.LoadDir(dir, logger)
	if err != nil {
		logger.Error("loading rule-sets", "dir", dir, "error", err)
		os.Exit(1)
	}
	set, err := registry.Get(setID)
	if err != nil {
		logger.Error("unknown rule-set", "id", setID, "known", registry.IDs())
		os.Exit(1)
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		logger.Error("reading text file", "path", textPath, "error", err)
		os.Exit(1)
	}

	fields, overall := extract.Extract(string(text), set, nil)

	out := struct {
		RuleSetID         string  `json:"rule_set_id"`
		Fields            any     `json:"fields"`
		OverallConfidence float32 `json:"overall_confidence"`
		ReviewRequired    bool    `json:"review_required"`
	}{
		RuleSetID:         set.ID,
		Fields:            fields,
		OverallConfidence: overall,
		ReviewRequired:    overall < set.ReviewThreshold,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encoding result", "error", err)
		os.Exit(1)
	}
}
