// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synthesis

import (
	"strings"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/config"
)

// maxRecommendations caps the follow-up suggestion list.
const maxRecommendations = 5

// RecommendationGenerator produces follow-up question suggestions.
//
// Description:
//
//	Scans the normalized query against the rule table: every matching
//	rule contributes its suggestions in rule order, deduplicated, up to
//	the cap. When no rule matches, the generic default list is returned,
//	also capped.
//
// Thread Safety: Safe for concurrent use (rule table is read-only).
type RecommendationGenerator struct {
	cfg *config.RecommendationConfig
}

// NewRecommendationGenerator creates a generator over the loaded rules.
func NewRecommendationGenerator(cfg *config.RecommendationConfig) *RecommendationGenerator {
	return &RecommendationGenerator{cfg: cfg}
}

// Generate returns at most five follow-up suggestions for the query.
//
// Inputs:
//   - normalizedQuery: Query text already passed through intent.Normalize.
func (g *RecommendationGenerator) Generate(normalizedQuery string) []string {
	words := strings.Fields(normalizedQuery)

	var suggestions []string
	seen := make(map[string]bool)
	for _, rule := range g.cfg.Rules {
		if !ruleMatches(rule, words) {
			continue
		}
		for _, suggestion := range rule.Suggestions {
			if seen[suggestion] {
				continue
			}
			seen[suggestion] = true
			suggestions = append(suggestions, suggestion)
			if len(suggestions) == maxRecommendations {
				return suggestions
			}
		}
	}

	if len(suggestions) > 0 {
		return suggestions
	}

	defaults := g.cfg.Defaults
	if len(defaults) > maxRecommendations {
		defaults = defaults[:maxRecommendations]
	}
	return defaults
}

// ruleMatches reports whether any query word matches a rule keyword,
// exactly or by containment.
func ruleMatches(rule config.RecommendationRule, words []string) bool {
	for _, word := range words {
		for _, keyword := range rule.Keywords {
			if word == keyword || strings.Contains(word, keyword) {
				return true
			}
		}
	}
	return false
}
