// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/config"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	matcherConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "assistant",
		Subsystem: "intent",
		Name:      "match_confidence",
		Help:      "Aggregate confidence of fuzzy intent matching",
		Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 1.0},
	})

	matcherIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "intent",
		Name:      "matches_total",
		Help:      "Total accepted intent matches by intent name",
	}, []string{"intent"})

	matcherLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "assistant",
		Subsystem: "intent",
		Name:      "match_latency_seconds",
		Help:      "Fuzzy matcher execution latency",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	matcherNoMatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "intent",
		Name:      "no_match_total",
		Help:      "Queries where no intent was accepted",
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var intentTracer = otel.Tracer("assistant.intent")

// =============================================================================
// Fuzzy Matcher Types
// =============================================================================

// IntentMatch is one accepted intent with its score.
type IntentMatch struct {
	Name     string
	Score    float64
	Category config.IntentCategory
}

// MatchResult is the output of fuzzy matching one normalized query.
//
// Fields:
//   - Intents: Accepted intents, catalog order.
//   - PrivateIndicator: True if a private-indicator word was found.
//   - Confidence: Mean score of accepted intents, or the configured
//     no-match confidence when nothing matched.
//   - SuggestedTools: Tools of accepted intents, ordered by intent score
//     descending, deduplicated.
type MatchResult struct {
	Intents          []IntentMatch
	PrivateIndicator bool
	Confidence       float64
	SuggestedTools   []string
}

// HasCategory reports whether any accepted intent has the given category.
func (r MatchResult) HasCategory(cat config.IntentCategory) bool {
	for _, m := range r.Intents {
		if m.Category == cat {
			return true
		}
	}
	return false
}

// FuzzyMatcher scores normalized query text against the intent catalog.
//
// Description:
//
//	For each catalog intent the matcher takes the maximum score across the
//	query's words: 1.0 for keyword containment, the variant score for a
//	close fuzzy-variant match, the prefix score when a keyword starts with
//	the word, or the raw similarity for a near-typo. Intents whose best
//	score exceeds the accept threshold are returned; aggregate confidence
//	is the mean of accepted scores.
//
// Thread Safety: Safe for concurrent use (all state is read-only after
// construction).
type FuzzyMatcher struct {
	cfg    *config.IntentConfig
	logger *slog.Logger
}

// scoringStopwords are function words excluded from intent scoring. Long
// enough to pass the length gate but still prone to spurious containment
// matches ("and" inside "attendance").
var scoringStopwords = map[string]bool{
	"and": true, "the": true, "for": true, "are": true, "was": true,
	"were": true, "can": true, "you": true, "your": true, "with": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"how": true, "this": true, "that": true, "have": true, "has": true,
	"had": true, "does": true, "will": true, "about": true, "please": true,
}

// NewFuzzyMatcher creates a FuzzyMatcher over the given catalog.
//
// Inputs:
//   - cfg: The loaded intent catalog. Must not be nil.
//   - logger: Logger for structured output. Nil falls back to slog.Default().
func NewFuzzyMatcher(cfg *config.IntentConfig, logger *slog.Logger) *FuzzyMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FuzzyMatcher{cfg: cfg, logger: logger}
}

// Match scores the normalized query against every catalog intent.
//
// Inputs:
//   - ctx: Context for tracing. Matching itself does not block.
//   - normalized: Query text already passed through Normalize.
//
// Outputs:
//   - MatchResult: Accepted intents, indicator flag, confidence, tools.
func (m *FuzzyMatcher) Match(ctx context.Context, normalized string) MatchResult {
	start := time.Now()
	_, span := intentTracer.Start(ctx, "intent.fuzzy_match")
	defer span.End()

	words := strings.Fields(normalized)

	var result MatchResult
	for _, entry := range m.cfg.Intents {
		score := m.scoreIntent(words, &entry)
		if score > m.cfg.Thresholds.AcceptScore {
			result.Intents = append(result.Intents, IntentMatch{
				Name:     entry.Name,
				Score:    score,
				Category: entry.Category,
			})
			matcherIntentsTotal.WithLabelValues(entry.Name).Inc()
		}
	}

	result.PrivateIndicator = m.hasPrivateIndicator(words)
	result.Confidence = m.aggregateConfidence(result.Intents)
	result.SuggestedTools = m.suggestedTools(result.Intents)

	if len(result.Intents) == 0 {
		matcherNoMatchTotal.Inc()
	}
	matcherConfidence.Observe(result.Confidence)
	matcherLatency.Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.Int("intent.match_count", len(result.Intents)),
		attribute.Float64("intent.confidence", result.Confidence),
		attribute.Bool("intent.private_indicator", result.PrivateIndicator),
	)

	m.logger.Debug("Fuzzy match complete",
		slog.Int("match_count", len(result.Intents)),
		slog.Float64("confidence", result.Confidence),
		slog.Bool("private_indicator", result.PrivateIndicator),
	)

	return result
}

// scoreIntent returns the intent's best score across all query words.
func (m *FuzzyMatcher) scoreIntent(words []string, entry *config.IntentEntry) float64 {
	t := m.cfg.Thresholds
	best := 0.0

	for _, word := range words {
		if len(word) < t.MinScoreWordLen || scoringStopwords[word] {
			continue
		}

		for _, kw := range entry.Keywords {
			if strings.Contains(word, kw) || strings.Contains(kw, word) {
				return 1.0
			}
		}

		wordBest := 0.0
		for _, variant := range entry.FuzzyVariants {
			if Similarity(word, variant) > t.VariantSimilarity {
				wordBest = t.VariantScore
				break
			}
		}

		for _, kw := range entry.Keywords {
			if wordBest < t.PrefixScore && strings.HasPrefix(kw, word) {
				wordBest = t.PrefixScore
			}
			if sim := Similarity(word, kw); sim > t.TypoSimilarity && sim > wordBest {
				wordBest = sim
			}
		}

		if wordBest > best {
			best = wordBest
		}
	}

	return best
}

// hasPrivateIndicator checks the query words against the indicator list.
func (m *FuzzyMatcher) hasPrivateIndicator(words []string) bool {
	for _, word := range words {
		for _, indicator := range m.cfg.PrivateIndicators {
			if word == indicator {
				return true
			}
			if Similarity(word, indicator) > m.cfg.Thresholds.IndicatorSimilarity {
				return true
			}
		}
	}
	return false
}

// aggregateConfidence is the mean of accepted scores, or the configured
// floor when nothing matched.
func (m *FuzzyMatcher) aggregateConfidence(intents []IntentMatch) float64 {
	if len(intents) == 0 {
		return m.cfg.Thresholds.NoMatchConfidence
	}
	sum := 0.0
	for _, it := range intents {
		sum += it.Score
	}
	return sum / float64(len(intents))
}

// suggestedTools orders accepted intents by score descending (stable, so
// ties keep catalog order) and collects their tools, deduplicated.
func (m *FuzzyMatcher) suggestedTools(intents []IntentMatch) []string {
	ordered := make([]IntentMatch, len(intents))
	copy(ordered, intents)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	var tools []string
	seen := make(map[string]bool)
	for _, it := range ordered {
		entry := m.cfg.IntentByName(it.Name)
		if entry == nil || entry.Tool == "" || seen[entry.Tool] {
			continue
		}
		seen[entry.Tool] = true
		tools = append(tools, entry.Tool)
	}
	return tools
}
