// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the immutable startup configuration of the assistant
// service: the intent catalog, private-indicator and data-term word lists,
// fuzzy-matching thresholds, and the recommendation rule table. All values
// are loaded once from embedded YAML and never mutated afterwards.
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
// Embedded Intent Catalog Configuration
// =============================================================================

//go:embed intents.yaml
var defaultIntentsYAML []byte

// =============================================================================
// Intent Catalog Types
// =============================================================================

// IntentCategory distinguishes intents that need the asker's own records
// from intents served by shared institutional data.
type IntentCategory string

const (
	// CategoryPrivate marks intents that require an actor identity.
	CategoryPrivate IntentCategory = "private"
	// CategoryPublic marks intents answerable from shared data.
	CategoryPublic IntentCategory = "public"
)

// IntentEntry is one entry of the intent catalog.
//
// Fields:
//   - Name: Unique intent name (e.g., "grades", "calendar").
//   - Keywords: Exact-match words for this intent.
//   - FuzzyVariants: Common misspellings checked by edit-distance similarity.
//   - Category: private or public.
//   - Tool: Catalog tool that serves this intent. Empty for public intents.
//
// Thread Safety: Immutable after load.
type IntentEntry struct {
	Name          string         `yaml:"name" validate:"required"`
	Keywords      []string       `yaml:"keywords" validate:"required,min=1,dive,required"`
	FuzzyVariants []string       `yaml:"fuzzy_variants"`
	Category      IntentCategory `yaml:"category" validate:"required,oneof=private public"`
	Tool          string         `yaml:"tool"`
}

// Thresholds holds the fuzzy-matching score thresholds.
//
// These values are hand-tuned. They are configuration rather than code so
// deployments can adjust them without a rebuild.
//
// Thread Safety: Immutable after load.
type Thresholds struct {
	// AcceptScore: an intent is accepted if its best word score exceeds this.
	AcceptScore float64 `yaml:"accept_score" validate:"gt=0,lte=1"`
	// FastPathConfidence: at or above this confidence the fuzzy result is
	// final and the LLM fallback is skipped.
	FastPathConfidence float64 `yaml:"fast_path_confidence" validate:"gt=0,lte=1"`
	// VariantScore: score assigned when a word is similar to a fuzzy variant.
	VariantScore float64 `yaml:"variant_score" validate:"gt=0,lte=1"`
	// VariantSimilarity: minimum similarity to count a fuzzy-variant match.
	VariantSimilarity float64 `yaml:"variant_similarity" validate:"gt=0,lte=1"`
	// TypoSimilarity: minimum similarity for a direct word/keyword typo match.
	TypoSimilarity float64 `yaml:"typo_similarity" validate:"gt=0,lte=1"`
	// PrefixScore: score assigned when a keyword starts with the word.
	PrefixScore float64 `yaml:"prefix_score" validate:"gt=0,lte=1"`
	// MinScoreWordLen: minimum word length considered for intent scoring.
	// Shorter words match inside too many keywords by containment.
	MinScoreWordLen int `yaml:"min_score_word_len" validate:"gte=1"`
	// IndicatorSimilarity: minimum similarity for private-indicator words.
	IndicatorSimilarity float64 `yaml:"indicator_similarity" validate:"gt=0,lte=1"`
	// NoMatchConfidence: confidence reported when no intent matched.
	NoMatchConfidence float64 `yaml:"no_match_confidence" validate:"gt=0,lte=1"`
}

// DefaultThresholds returns the standard threshold values.
//
// Outputs:
//   - Thresholds: The hand-tuned defaults shipped in intents.yaml.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AcceptScore:         0.5,
		FastPathConfidence:  0.7,
		VariantScore:        0.85,
		VariantSimilarity:   0.7,
		TypoSimilarity:      0.7,
		PrefixScore:         0.75,
		MinScoreWordLen:     3,
		IndicatorSimilarity: 0.8,
		NoMatchConfidence:   0.3,
	}
}

// IntentConfig is the complete loaded intent catalog configuration.
//
// Thread Safety: Immutable after load. Safe to share across requests.
type IntentConfig struct {
	Intents           []IntentEntry `yaml:"intents" validate:"required,min=1,dive"`
	PrivateIndicators []string      `yaml:"private_indicators" validate:"required,min=1,dive,required"`
	DataTerms         []string      `yaml:"data_terms" validate:"required,min=1,dive,required"`
	Thresholds        Thresholds    `yaml:"thresholds"`
}

// IntentByName returns the catalog entry with the given name, or nil.
func (c *IntentConfig) IntentByName(name string) *IntentEntry {
	for i := range c.Intents {
		if c.Intents[i].Name == name {
			return &c.Intents[i]
		}
	}
	return nil
}

var (
	cachedIntentConfig *IntentConfig
	intentConfigOnce   sync.Once
	intentConfigErr    error
)

// LoadIntentConfig loads and caches the intent catalog from the embedded
// YAML configuration. Returns the cached result on subsequent calls.
//
// # Description
//
//	Parses intents.yaml, validates every entry (struct tags via
//	go-playground/validator), and checks cross-field constraints: private
//	intents must name a tool, public intents must not, and intent names
//	must be unique.
//
// # Outputs
//
//   - *IntentConfig: The loaded configuration. Never nil on success.
//   - error: Non-nil if parsing or validation fails.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadIntentConfig() (*IntentConfig, error) {
	intentConfigOnce.Do(func() {
		var cfg IntentConfig
		if err := yaml.Unmarshal(defaultIntentsYAML, &cfg); err != nil {
			intentConfigErr = fmt.Errorf("config: parsing intents.yaml: %w", err)
			return
		}

		validate := validator.New()
		if err := validate.Struct(&cfg); err != nil {
			intentConfigErr = fmt.Errorf("config: validating intents.yaml: %w", err)
			return
		}

		seen := make(map[string]bool, len(cfg.Intents))
		for _, intent := range cfg.Intents {
			if seen[intent.Name] {
				intentConfigErr = fmt.Errorf("config: duplicate intent name %q", intent.Name)
				return
			}
			seen[intent.Name] = true

			if intent.Category == CategoryPrivate && intent.Tool == "" {
				intentConfigErr = fmt.Errorf("config: private intent %q has no tool", intent.Name)
				return
			}
			if intent.Category == CategoryPublic && intent.Tool != "" {
				intentConfigErr = fmt.Errorf("config: public intent %q must not name a tool", intent.Name)
				return
			}
		}

		cachedIntentConfig = &cfg
		slog.Info("Intent catalog loaded",
			slog.Int("intent_count", len(cfg.Intents)),
			slog.Int("indicator_count", len(cfg.PrivateIndicators)),
			slog.Int("data_term_count", len(cfg.DataTerms)),
		)
	})
	return cachedIntentConfig, intentConfigErr
}

// MustLoadIntentConfig loads the intent catalog or panics.
//
// # Description
//
//	The classification pipeline cannot operate without its catalog, so a
//	load failure here is a startup defect, not a runtime condition to
//	degrade around.
//
// # Outputs
//
//   - *IntentConfig: The loaded configuration.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadIntentConfig() *IntentConfig {
	cfg, err := LoadIntentConfig()
	if err != nil {
		panic(fmt.Sprintf("config: intent catalog unavailable: %v", err))
	}
	return cfg
}
