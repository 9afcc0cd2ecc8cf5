// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/intent"
	"github.com/Danish-Devx3/bits-dubai-rag/services/llm"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	selectorFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "selector",
		Name:      "fallback_total",
		Help:      "Selector fallbacks to fuzzy tool suggestions by reason",
	}, []string{"reason"})

	selectorDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "selector",
		Name:      "dropped_tools_total",
		Help:      "Tool calls proposed by the model but absent from the catalog",
	})

	selectorSelectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "selector",
		Name:      "selected_total",
		Help:      "Tools selected for execution by tool name",
	}, []string{"tool"})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var toolsTracer = otel.Tracer("assistant.tools")

// =============================================================================
// Selector
// =============================================================================

// Selector decides which catalog tools to invoke for a query.
//
// Description:
//
//	Asks the generative backend for a JSON array of {name, parameters}
//	entries, validates every entry against the catalog (unknown names are
//	dropped, never executed), and falls back to the fuzzy matcher's tool
//	suggestions when the model is unavailable, unparseable, or empty.
//	Selection never fails: the worst case is an empty call list.
//
// Thread Safety: Safe for concurrent use.
type Selector struct {
	client  llm.Client
	catalog *Catalog
	matcher *intent.FuzzyMatcher
	timeout time.Duration
	logger  *slog.Logger
}

// NewSelector creates a Selector.
//
// Inputs:
//   - client: The generative backend. May be nil (fuzzy-only selection).
//   - catalog: The tool catalog. Must not be nil.
//   - matcher: Fuzzy matcher for the fallback path. Must not be nil.
//   - timeout: Per-call budget. Zero defaults to 10 seconds.
//   - logger: Logger for structured output. Nil falls back to slog.Default().
func NewSelector(client llm.Client, catalog *Catalog, matcher *intent.FuzzyMatcher, timeout time.Duration, logger *slog.Logger) *Selector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		client:  client,
		catalog: catalog,
		matcher: matcher,
		timeout: timeout,
		logger:  logger,
	}
}

// Select returns the validated tool calls for one query.
//
// Outputs:
//   - []ToolCall: Every returned call's name exists in the catalog. May be
//     empty when nothing applies.
func (s *Selector) Select(ctx context.Context, query string) []ToolCall {
	ctx, span := toolsTracer.Start(ctx, "tools.select")
	defer span.End()

	calls, ok := s.selectViaLLM(ctx, query)
	if !ok {
		calls = s.fallback(ctx, query)
	}

	for _, call := range calls {
		selectorSelectedTotal.WithLabelValues(call.Name).Inc()
	}
	span.SetAttributes(attribute.Int("tools.selected_count", len(calls)))
	return calls
}

// selectViaLLM runs the model-backed path. The second return is false when
// the fallback should take over.
func (s *Selector) selectViaLLM(ctx context.Context, query string) ([]ToolCall, bool) {
	if s.client == nil {
		selectorFallbackTotal.WithLabelValues("no_client").Inc()
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.client.Chat(callCtx, []llm.Message{
		{Role: "system", Content: s.systemPrompt()},
		{Role: "user", Content: query},
	}, llm.GenerationParams{})
	if err != nil {
		selectorFallbackTotal.WithLabelValues("transport_error").Inc()
		s.logger.Warn("Tool selection call failed, using fuzzy suggestions",
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	proposed, err := parseToolCalls(reply)
	if err != nil {
		selectorFallbackTotal.WithLabelValues("parse_failure").Inc()
		s.logger.Warn("Tool selection reply unparseable, using fuzzy suggestions",
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	var calls []ToolCall
	for _, call := range proposed {
		if _, known := s.catalog.Lookup(call.Name); !known {
			selectorDroppedTotal.Inc()
			s.logger.Warn("Dropping unknown tool from selection",
				slog.String("tool", call.Name),
			)
			continue
		}
		if call.Parameters == nil {
			call.Parameters = map[string]any{}
		}
		calls = append(calls, call)
	}

	if len(calls) == 0 {
		selectorFallbackTotal.WithLabelValues("empty_selection").Inc()
		return nil, false
	}
	return calls, true
}

// fallback maps the fuzzy matcher's suggested tools to calls with empty
// parameter maps.
func (s *Selector) fallback(ctx context.Context, query string) []ToolCall {
	match := s.matcher.Match(ctx, intent.Normalize(query))

	calls := make([]ToolCall, 0, len(match.SuggestedTools))
	for _, name := range match.SuggestedTools {
		if _, known := s.catalog.Lookup(name); !known {
			continue
		}
		calls = append(calls, ToolCall{Name: name, Parameters: map[string]any{}})
	}

	s.logger.Debug("Selector fallback produced calls",
		slog.Int("call_count", len(calls)),
	)
	return calls
}

// systemPrompt lists every tool's description and parameter schema.
func (s *Selector) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You pick data-retrieval tools for a university assistant query.\n\n")
	b.WriteString("Available tools:\n")
	for _, def := range s.catalog.Definitions() {
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
		names := make([]string, 0, len(def.Parameters))
		for name := range def.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := def.Parameters[name]
			required := "optional"
			if p.Required {
				required = "required"
			}
			fmt.Fprintf(&b, "    %s (%s, %s): %s\n", name, p.Type, required, p.Description)
		}
	}
	b.WriteString("\nReply with ONLY a JSON array, no prose:\n")
	b.WriteString(`[{"name": "tool_name", "parameters": {}}]`)
	b.WriteString("\nReply with [] if no tool applies.")
	return b.String()
}

// parseToolCalls extracts the first JSON array in the reply.
func parseToolCalls(reply string) ([]ToolCall, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("tools: no JSON array in reply")
	}

	var calls []ToolCall
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &calls); err != nil {
		return nil, fmt.Errorf("tools: parsing tool calls: %w", err)
	}
	return calls, nil
}
