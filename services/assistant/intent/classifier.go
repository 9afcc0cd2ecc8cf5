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
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/config"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "intent",
		Name:      "classifications_total",
		Help:      "Total classifications by query type and path",
	}, []string{"query_type", "path"})
)

// =============================================================================
// Classifier Types
// =============================================================================

// QueryType partitions queries by the data they need.
type QueryType string

const (
	// QueryTypePublic needs only shared institutional data.
	QueryTypePublic QueryType = "Public"
	// QueryTypePrivate needs the asker's own records.
	QueryTypePrivate QueryType = "Private"
	// QueryTypeMixed needs both.
	QueryTypeMixed QueryType = "Mixed"
)

// ClassificationResult is the final classification of one query.
//
// Fields:
//   - QueryType: Public, Private, or Mixed.
//   - Intents: Names of matched intents, catalog order.
//   - SuggestedTools: Candidate tool names, best match first.
//   - Confidence: [0,1] certainty of the classification.
//   - NormalizedQuery: The normalized query text that was matched.
type ClassificationResult struct {
	QueryType       QueryType
	Intents         []string
	SuggestedTools  []string
	Confidence      float64
	NormalizedQuery string
}

// FallbackClassifier resolves low-confidence classifications.
//
// Implementations must never fail the pipeline: on any internal error they
// return the fuzzy result unchanged.
type FallbackClassifier interface {
	Classify(ctx context.Context, query string, fuzzy ClassificationResult) ClassificationResult
}

// Classifier combines fuzzy matching with the optional LLM fallback.
//
// Description:
//
//	Normalizes the query, runs the fuzzy matcher, and derives the query
//	type: Mixed when both a private and a public intent matched; Private
//	when any private intent matched, or when a private-indicator word
//	appears together with a data term; Public otherwise. When confidence
//	is below the fast-path threshold and a fallback is configured, the
//	fallback may override the result.
//
// Thread Safety: Safe for concurrent use.
type Classifier struct {
	matcher  *FuzzyMatcher
	fallback FallbackClassifier
	cfg      *config.IntentConfig
	logger   *slog.Logger
}

// NewClassifier creates a Classifier.
//
// Inputs:
//   - matcher: The fuzzy matcher. Must not be nil.
//   - fallback: Low-confidence fallback. May be nil (fuzzy-only operation).
//   - cfg: The loaded intent catalog. Must not be nil.
//   - logger: Logger for structured output. Nil falls back to slog.Default().
func NewClassifier(matcher *FuzzyMatcher, fallback FallbackClassifier, cfg *config.IntentConfig, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		matcher:  matcher,
		fallback: fallback,
		cfg:      cfg,
		logger:   logger,
	}
}

// Classify classifies one raw query.
//
// Inputs:
//   - ctx: Context for tracing and fallback cancellation.
//   - rawQuery: The user's query text as received.
//
// Outputs:
//   - ClassificationResult: Never an error; ambiguity is resolved
//     internally and the fuzzy result always stands as a floor.
func (c *Classifier) Classify(ctx context.Context, rawQuery string) ClassificationResult {
	ctx, span := intentTracer.Start(ctx, "intent.classify")
	defer span.End()

	normalized := Normalize(rawQuery)
	match := c.matcher.Match(ctx, normalized)

	result := ClassificationResult{
		QueryType:       c.queryType(normalized, match),
		SuggestedTools:  match.SuggestedTools,
		Confidence:      match.Confidence,
		NormalizedQuery: normalized,
	}
	for _, it := range match.Intents {
		result.Intents = append(result.Intents, it.Name)
	}

	path := "fast"
	if result.Confidence < c.cfg.Thresholds.FastPathConfidence && c.fallback != nil {
		path = "fallback"
		result = c.fallback.Classify(ctx, rawQuery, result)
	}

	classificationsTotal.WithLabelValues(string(result.QueryType), path).Inc()
	span.SetAttributes(
		attribute.String("intent.query_type", string(result.QueryType)),
		attribute.Float64("intent.confidence", result.Confidence),
		attribute.String("intent.path", path),
	)

	c.logger.Info("Query classified",
		slog.String("query_type", string(result.QueryType)),
		slog.Float64("confidence", result.Confidence),
		slog.String("path", path),
		slog.Int("intent_count", len(result.Intents)),
	)

	return result
}

// queryType derives the query type from the match per the merge rules.
func (c *Classifier) queryType(normalized string, match MatchResult) QueryType {
	hasPrivate := match.HasCategory(config.CategoryPrivate)
	hasPublic := match.HasCategory(config.CategoryPublic)

	switch {
	case hasPrivate && hasPublic:
		return QueryTypeMixed
	case hasPrivate:
		return QueryTypePrivate
	case match.PrivateIndicator && c.hasDataTerm(normalized):
		return QueryTypePrivate
	default:
		return QueryTypePublic
	}
}

// hasDataTerm checks whether the normalized query mentions a data term.
func (c *Classifier) hasDataTerm(normalized string) bool {
	for _, word := range strings.Fields(normalized) {
		for _, term := range c.cfg.DataTerms {
			if word == term || strings.Contains(word, term) {
				return true
			}
		}
	}
	return false
}
