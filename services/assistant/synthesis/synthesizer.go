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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/tools"
	"github.com/Danish-Devx3/bits-dubai-rag/services/llm"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	synthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "synthesis",
		Name:      "responses_total",
		Help:      "Synthesized responses by mode and source",
	}, []string{"mode", "source"})

	synthesisFragments = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "assistant",
		Subsystem: "synthesis",
		Name:      "stream_fragments",
		Help:      "Fragments emitted per streamed response",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var synthesisTracer = otel.Tracer("assistant.synthesis")

// =============================================================================
// Synthesizer
// =============================================================================

// EmitFunc receives one streamed answer fragment. Returning an error aborts
// the stream.
type EmitFunc func(fragment string) error

// Synthesizer produces the final answer from tool results and public
// context.
//
// Description:
//
//	Buffered mode makes one generation call and falls back to the
//	deterministic formatter on any failure or whitespace-only reply.
//	Streaming mode forwards fragments in arrival order; when the stream
//	fails before the first fragment, the fallback text is emitted as one
//	fragment instead. A failure after partial output propagates so the
//	transport can deliver its error event.
//
// Thread Safety: Safe for concurrent use.
type Synthesizer struct {
	client  llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewSynthesizer creates a Synthesizer.
//
// Inputs:
//   - client: The generative backend. May be nil (deterministic-only mode).
//   - timeout: Budget for a buffered generation call. Zero defaults to 30 seconds.
//   - logger: Logger for structured output. Nil falls back to slog.Default().
func NewSynthesizer(client llm.Client, timeout time.Duration, logger *slog.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{client: client, timeout: timeout, logger: logger}
}

// Synthesize produces a complete answer in one buffered call.
//
// Outputs:
//   - string: Never empty when at least one result succeeded or public
//     context exists.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []tools.ToolResult, publicContext map[string]any) string {
	ctx, span := synthesisTracer.Start(ctx, "synthesis.buffered")
	defer span.End()

	if s.client == nil {
		synthesisTotal.WithLabelValues("buffered", "fallback").Inc()
		span.SetAttributes(attribute.String("synthesis.source", "fallback"))
		return FormatToolResults(query, results, publicContext)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.client.Chat(callCtx, s.buildMessages(query, results, publicContext), llm.GenerationParams{})
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			s.logger.Warn("Generation failed, using deterministic formatting",
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Warn("Generation returned empty text, using deterministic formatting")
		}
		synthesisTotal.WithLabelValues("buffered", "fallback").Inc()
		span.SetAttributes(attribute.String("synthesis.source", "fallback"))
		return FormatToolResults(query, results, publicContext)
	}

	synthesisTotal.WithLabelValues("buffered", "llm").Inc()
	span.SetAttributes(attribute.String("synthesis.source", "llm"))
	return reply
}

// SynthesizeStream produces the answer as a fragment stream.
//
// Description:
//
//	Forwards each generated fragment to emit in arrival order, no
//	reordering or buffering. If the stream fails (or no backend is
//	configured) before any fragment was emitted, the deterministic
//	fallback text is emitted as a single fragment and the stream is
//	considered successful. A failure after partial output is returned to
//	the caller.
//
// Inputs:
//   - ctx: Request context; cancellation aborts in-flight generation.
//   - query: The original query text.
//   - results: Tool results, successes and failures.
//   - publicContext: Directly fetched public data, may be nil.
//   - emit: Fragment consumer. Must not be nil.
//
// Outputs:
//   - error: Non-nil only when the stream failed after partial output or
//     the consumer aborted.
func (s *Synthesizer) SynthesizeStream(ctx context.Context, query string, results []tools.ToolResult, publicContext map[string]any, emit EmitFunc) error {
	ctx, span := synthesisTracer.Start(ctx, "synthesis.stream")
	defer span.End()

	if s.client == nil {
		synthesisTotal.WithLabelValues("stream", "fallback").Inc()
		span.SetAttributes(attribute.String("synthesis.source", "fallback"))
		return emit(FormatToolResults(query, results, publicContext))
	}

	fragments := 0
	err := s.client.ChatStream(ctx, s.buildMessages(query, results, publicContext), llm.GenerationParams{},
		func(event llm.StreamEvent) error {
			switch event.Type {
			case llm.StreamEventToken:
				fragments++
				return emit(event.Content)
			case llm.StreamEventError:
				// The error surfaces through ChatStream's return value.
				return nil
			default:
				return nil
			}
		},
	)

	synthesisFragments.Observe(float64(fragments))
	span.SetAttributes(attribute.Int("synthesis.fragments", fragments))

	if err != nil {
		if fragments > 0 {
			span.SetAttributes(attribute.String("synthesis.source", "llm_partial"))
			return fmt.Errorf("synthesis: stream failed after %d fragments: %w", fragments, err)
		}
		s.logger.Warn("Stream failed before first fragment, emitting deterministic fallback",
			slog.String("error", err.Error()),
		)
		synthesisTotal.WithLabelValues("stream", "fallback").Inc()
		span.SetAttributes(attribute.String("synthesis.source", "fallback"))
		return emit(FormatToolResults(query, results, publicContext))
	}

	if fragments == 0 {
		// Stream completed without producing any text.
		synthesisTotal.WithLabelValues("stream", "fallback").Inc()
		span.SetAttributes(attribute.String("synthesis.source", "fallback"))
		return emit(FormatToolResults(query, results, publicContext))
	}

	synthesisTotal.WithLabelValues("stream", "llm").Inc()
	span.SetAttributes(attribute.String("synthesis.source", "llm"))
	return nil
}

// buildMessages assembles the generation prompt from the query and context.
func (s *Synthesizer) buildMessages(query string, results []tools.ToolResult, publicContext map[string]any) []llm.Message {
	var b strings.Builder
	b.WriteString("Answer the student's question using ONLY the data below. ")
	b.WriteString("Be concise and well formatted; use short lists or tables where they help. ")
	b.WriteString("If the data does not cover the question, say so plainly.\n")

	wroteData := false
	for _, result := range results {
		if !result.Success {
			continue
		}
		payload, err := json.Marshal(result.Payload)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", result.Tool, payload)
		wroteData = true
	}
	if len(publicContext) > 0 {
		payload, err := json.Marshal(publicContext)
		if err == nil {
			fmt.Fprintf(&b, "\npublic data:\n%s\n", payload)
			wroteData = true
		}
	}
	if !wroteData {
		b.WriteString("\nNo data was retrieved for this question.\n")
	}

	return []llm.Message{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: query},
	}
}
