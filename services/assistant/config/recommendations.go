// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Recommendation Rules Configuration
// =============================================================================

//go:embed recommendations.yaml
var defaultRecommendationsYAML []byte

// RecommendationRule maps trigger keywords to follow-up question suggestions.
//
// Thread Safety: Immutable after load.
type RecommendationRule struct {
	Keywords    []string `yaml:"keywords" validate:"required,min=1,dive,required"`
	Suggestions []string `yaml:"suggestions" validate:"required,min=1,dive,required"`
}

// RecommendationConfig is the loaded recommendation rule table.
//
// Thread Safety: Immutable after load. Safe to share across requests.
type RecommendationConfig struct {
	Rules    []RecommendationRule `yaml:"rules" validate:"required,min=1,dive"`
	Defaults []string             `yaml:"defaults" validate:"required,min=1,dive,required"`
}

var (
	cachedRecommendationConfig *RecommendationConfig
	recommendationConfigOnce   sync.Once
	recommendationConfigErr    error
)

// LoadRecommendationConfig loads and caches the recommendation rule table
// from the embedded YAML configuration. Returns the cached result on
// subsequent calls.
//
// # Outputs
//
//   - *RecommendationConfig: The loaded rule table. Never nil on success.
//   - error: Non-nil if parsing or validation fails.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadRecommendationConfig() (*RecommendationConfig, error) {
	recommendationConfigOnce.Do(func() {
		var cfg RecommendationConfig
		if err := yaml.Unmarshal(defaultRecommendationsYAML, &cfg); err != nil {
			recommendationConfigErr = fmt.Errorf("config: parsing recommendations.yaml: %w", err)
			return
		}

		validate := validator.New()
		if err := validate.Struct(&cfg); err != nil {
			recommendationConfigErr = fmt.Errorf("config: validating recommendations.yaml: %w", err)
			return
		}

		cachedRecommendationConfig = &cfg
		slog.Info("Recommendation rules loaded",
			slog.Int("rule_count", len(cfg.Rules)),
			slog.Int("default_count", len(cfg.Defaults)),
		)
	})
	return cachedRecommendationConfig, recommendationConfigErr
}

// MustLoadRecommendationConfig loads the rule table or returns an empty
// table on error. Logs a warning if loading fails but does not panic.
// Recommendations are a best-effort feature; the pipeline still answers
// without them.
//
// # Outputs
//
//   - *RecommendationConfig: The loaded table, or an empty table on error.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadRecommendationConfig() *RecommendationConfig {
	cfg, err := LoadRecommendationConfig()
	if err != nil {
		slog.Warn("Recommendation rules loading failed, continuing without suggestions",
			slog.String("error", err.Error()),
		)
		return &RecommendationConfig{}
	}
	return cfg
}
