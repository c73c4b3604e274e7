package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fastygo/notifyagg/domain"
)

type rulesFile struct {
	Rules []domain.AggregationRule `yaml:"rules"`
}

// LoadRules reads the aggregation rule catalog from a YAML file. An empty
// path yields DefaultRules. Rules keep the order they appear in the file.
func LoadRules(path string) ([]domain.AggregationRule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) ([]domain.AggregationRule, error) {
	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("parse rules: no rules defined")
	}
	return file.Rules, nil
}

// DefaultRules is the built-in catalog. Type-specific rules come before the
// generic category rules they would otherwise be shadowed by.
func DefaultRules() []domain.AggregationRule {
	return []domain.AggregationRule{
		{
			ID:                "social-like",
			Category:          "social",
			Type:              "like",
			GroupBy:           []string{"target.id"},
			WindowMinutes:     60,
			MaxBatchSize:      100,
			SummaryTemplate:   "{{actorSummary}} liked your {{target.type}}",
			CollapseThreshold: 3,
			Priority:          1,
		},
		{
			ID:                "social-comment",
			Category:          "social",
			Type:              "comment",
			GroupBy:           []string{"target.id"},
			WindowMinutes:     30,
			MaxBatchSize:      50,
			SummaryTemplate:   "{{actorSummary}} commented on your {{target.type}}",
			CollapseThreshold: 3,
			Priority:          2,
		},
		{
			ID:                "social-follow",
			Category:          "social",
			Type:              "follow",
			WindowMinutes:     120,
			MaxBatchSize:      100,
			SummaryTemplate:   "{{actorSummary}} started following you",
			CollapseThreshold: 5,
			Priority:          1,
		},
		{
			ID:                "social-mention",
			Category:          "social",
			Type:              "mention",
			GroupBy:           []string{"target.id"},
			WindowMinutes:     15,
			MaxBatchSize:      20,
			SummaryTemplate:   "{{actorSummary}} mentioned you",
			CollapseThreshold: 3,
			Priority:          3,
		},
		{
			ID:                "communication-message",
			Category:          "communication",
			Type:              "message",
			GroupBy:           []string{"actors.0.id"},
			WindowMinutes:     5,
			MaxBatchSize:      10,
			SummaryTemplate:   "{{count}} new messages from {{actorSummary}}",
			CollapseThreshold: 5,
			Priority:          3,
		},
		{
			ID:              "system",
			Category:        "system",
			WindowMinutes:   240,
			MaxBatchSize:    20,
			SummaryTemplate: "{{count}} system updates",
			Priority:        0,
		},
	}
}
