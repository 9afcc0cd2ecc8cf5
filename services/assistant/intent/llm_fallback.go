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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Danish-Devx3/bits-dubai-rag/services/llm"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	fallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "intent",
		Name:      "fallback_total",
		Help:      "LLM fallback classifications by outcome",
	}, []string{"outcome"})
)

// =============================================================================
// LLM Fallback Classifier
// =============================================================================

// ToolSummary is the name and description of one catalog tool, used only
// to enumerate the catalog in the fallback prompt.
type ToolSummary struct {
	Name        string
	Description string
}

// FallbackReply is the JSON object the model is asked to produce.
type FallbackReply struct {
	QueryType      string   `json:"queryType"`
	Intents        []string `json:"intents"`
	SuggestedTools []string `json:"suggestedTools"`
	Confidence     float64  `json:"confidence"`
}

// ParseResult is the tagged outcome of parsing a model reply. Exactly one
// of the two views is meaningful: Reply on success, Raw on failure.
type ParseResult struct {
	Reply *FallbackReply
	Raw   string
}

// OK reports whether the reply parsed into a usable FallbackReply.
func (p ParseResult) OK() bool {
	return p.Reply != nil
}

// LLMFallbackClassifier resolves low-confidence queries via the generative
// backend.
//
// Description:
//
//	Builds a prompt enumerating the tool catalog and the three query
//	types, asks for a single JSON object, and parses it defensively.
//	Any failure (transport, malformed JSON, unknown query type, out of
//	range confidence) backs off to the caller's fuzzy result. This path
//	never surfaces an error.
//
// Thread Safety: Safe for concurrent use.
type LLMFallbackClassifier struct {
	client     llm.Client
	tools      []ToolSummary
	validTools map[string]bool
	timeout    time.Duration
	logger     *slog.Logger
}

// NewLLMFallbackClassifier creates the fallback classifier.
//
// Inputs:
//   - client: The generative backend. Must not be nil.
//   - tools: Catalog tool summaries for the prompt. Must not be empty.
//   - timeout: Per-call budget. Zero defaults to 10 seconds.
//   - logger: Logger for structured output. Nil falls back to slog.Default().
func NewLLMFallbackClassifier(client llm.Client, tools []ToolSummary, timeout time.Duration, logger *slog.Logger) *LLMFallbackClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	valid := make(map[string]bool, len(tools))
	for _, t := range tools {
		valid[t.Name] = true
	}

	return &LLMFallbackClassifier{
		client:     client,
		tools:      tools,
		validTools: valid,
		timeout:    timeout,
		logger:     logger,
	}
}

// Classify implements FallbackClassifier.
//
// Outputs:
//   - ClassificationResult: The model's classification when it parses and
//     validates, otherwise the fuzzy result unchanged.
func (f *LLMFallbackClassifier) Classify(ctx context.Context, query string, fuzzy ClassificationResult) ClassificationResult {
	ctx, span := intentTracer.Start(ctx, "intent.llm_fallback")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	reply, err := f.client.Chat(callCtx, []llm.Message{
		{Role: "system", Content: f.systemPrompt()},
		{Role: "user", Content: query},
	}, llm.GenerationParams{})
	if err != nil {
		fallbackTotal.WithLabelValues("transport_error").Inc()
		f.logger.Warn("LLM fallback call failed, keeping fuzzy result",
			slog.String("error", err.Error()),
		)
		return fuzzy
	}

	parsed := f.parseReply(reply)
	if !parsed.OK() {
		fallbackTotal.WithLabelValues("parse_failure").Inc()
		f.logger.Warn("LLM fallback reply unparseable, keeping fuzzy result",
			slog.String("raw_preview", truncateForLog(parsed.Raw, 120)),
		)
		return fuzzy
	}

	result, ok := f.validate(parsed.Reply, fuzzy)
	if !ok {
		fallbackTotal.WithLabelValues("invalid_reply").Inc()
		return fuzzy
	}

	fallbackTotal.WithLabelValues("override").Inc()
	f.logger.Debug("LLM fallback overrode fuzzy classification",
		slog.String("query_type", string(result.QueryType)),
		slog.Float64("confidence", result.Confidence),
	)
	return result
}

// systemPrompt enumerates the catalog and the expected reply shape.
func (f *LLMFallbackClassifier) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify university assistant queries.\n\n")
	b.WriteString("Query types:\n")
	b.WriteString("- Private: needs the student's own records\n")
	b.WriteString("- Public: needs only shared institutional data (calendar, electives, rules)\n")
	b.WriteString("- Mixed: needs both\n\n")
	b.WriteString("Available tools:\n")
	for _, t := range f.tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	b.WriteString("\nReply with ONLY one JSON object, no prose:\n")
	b.WriteString(`{"queryType": "Private|Public|Mixed", "intents": ["..."], "suggestedTools": ["..."], "confidence": 0.0}`)
	return b.String()
}

// parseReply extracts and parses the first JSON object in the reply.
func (f *LLMFallbackClassifier) parseReply(reply string) ParseResult {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end <= start {
		return ParseResult{Raw: reply}
	}

	var parsed FallbackReply
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &parsed); err != nil {
		return ParseResult{Raw: reply}
	}
	return ParseResult{Reply: &parsed}
}

// validate converts the reply into a ClassificationResult, rejecting
// unknown query types and out-of-range confidence, and dropping suggested
// tools absent from the catalog.
func (f *LLMFallbackClassifier) validate(reply *FallbackReply, fuzzy ClassificationResult) (ClassificationResult, bool) {
	var qt QueryType
	switch strings.ToLower(strings.TrimSpace(reply.QueryType)) {
	case "private":
		qt = QueryTypePrivate
	case "public":
		qt = QueryTypePublic
	case "mixed":
		qt = QueryTypeMixed
	default:
		f.logger.Warn("LLM fallback returned unknown query type",
			slog.String("query_type", reply.QueryType),
		)
		return ClassificationResult{}, false
	}

	if reply.Confidence < 0 || reply.Confidence > 1 {
		f.logger.Warn("LLM fallback confidence out of range",
			slog.Float64("confidence", reply.Confidence),
		)
		return ClassificationResult{}, false
	}

	var tools []string
	for _, name := range reply.SuggestedTools {
		if f.validTools[name] {
			tools = append(tools, name)
		}
	}

	return ClassificationResult{
		QueryType:       qt,
		Intents:         reply.Intents,
		SuggestedTools:  tools,
		Confidence:      reply.Confidence,
		NormalizedQuery: fuzzy.NormalizedQuery,
	}, true
}

// truncateForLog bounds a string for log output.
func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
