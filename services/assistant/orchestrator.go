// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/intent"
	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/synthesis"
	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/tools"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	pipelineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assistant",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "End-to-end pipeline latency by query type",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query_type"})

	pipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "pipeline",
		Name:      "outcomes_total",
		Help:      "Pipeline outcomes by final state",
	}, []string{"state"})
)

var assistantTracer = otel.Tracer("assistant.pipeline")

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator drives one query through the full pipeline: classify,
// select tools, execute, fetch public context, synthesize, recommend.
//
// Description:
//
//	All state lives in the per-request OrchestrationContext; the
//	orchestrator itself is immutable after construction. Failures local
//	to one tool call or one generation call are absorbed downstream; the
//	only error escalated to the caller is a Private or Mixed query with
//	no actor identity, which fails before any selection or execution.
//	No external call is retried.
//
// Thread Safety: Safe for concurrent use.
type Orchestrator struct {
	classifier  *intent.Classifier
	selector    *tools.Selector
	executor    *tools.Executor
	source      tools.DataSource
	synthesizer *synthesis.Synthesizer
	recommender *synthesis.RecommendationGenerator
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
//
// Inputs:
//   - classifier, selector, executor, synthesizer, recommender: Pipeline
//     stages. Must not be nil.
//   - source: The records backend, also used for public-context fetches.
//     Must not be nil.
//   - logger: Nil falls back to slog.Default().
func NewOrchestrator(
	classifier *intent.Classifier,
	selector *tools.Selector,
	executor *tools.Executor,
	source tools.DataSource,
	synthesizer *synthesis.Synthesizer,
	recommender *synthesis.RecommendationGenerator,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		classifier:  classifier,
		selector:    selector,
		executor:    executor,
		source:      source,
		synthesizer: synthesizer,
		recommender: recommender,
		logger:      logger,
	}
}

// Run executes the buffered pipeline for one query.
//
// Inputs:
//   - ctx: Request context. Cancellation aborts in-flight external calls.
//   - query: Raw query text. Must be non-empty after trimming.
//   - actorID: Authenticated student identity. Empty for anonymous.
//
// Outputs:
//   - *OrchestrationContext: Always non-nil; State records how far the
//     request got.
//   - error: ErrEmptyQuery, ErrAuthenticationRequired, or nil.
func (o *Orchestrator) Run(ctx context.Context, query, actorID string) (*OrchestrationContext, error) {
	octx, err := o.prepare(ctx, query, actorID)
	if err != nil {
		return octx, err
	}
	ctx, span := assistantTracer.Start(ctx, "pipeline.run")
	defer span.End()

	if err := o.gather(ctx, octx); err != nil {
		o.finish(octx, span, err)
		return octx, err
	}

	octx.State = StateSynthesizing
	octx.Response = o.synthesizer.Synthesize(ctx, octx.Query, octx.ToolResults, octx.PublicContext)
	o.recommend(octx)

	octx.State = StateCompleted
	o.finish(octx, span, nil)
	return octx, nil
}

// RunStream executes the streaming pipeline, forwarding answer fragments
// to emit in arrival order.
//
// Description:
//
//	Same stages as Run, but synthesis streams. If generation fails before
//	any fragment was emitted, the deterministic fallback text arrives as
//	a single fragment and the run completes; if it fails after partial
//	output, the error is returned so the transport can surface it. The
//	final response text is not buffered on the context for streaming runs.
func (o *Orchestrator) RunStream(ctx context.Context, query, actorID string, emit synthesis.EmitFunc) (*OrchestrationContext, error) {
	octx, err := o.prepare(ctx, query, actorID)
	if err != nil {
		return octx, err
	}
	ctx, span := assistantTracer.Start(ctx, "pipeline.run_stream")
	defer span.End()

	if err := o.gather(ctx, octx); err != nil {
		o.finish(octx, span, err)
		return octx, err
	}

	octx.State = StateSynthesizing
	if err := o.synthesizer.SynthesizeStream(ctx, octx.Query, octx.ToolResults, octx.PublicContext, emit); err != nil {
		o.finish(octx, span, err)
		return octx, err
	}
	o.recommend(octx)

	octx.State = StateCompleted
	o.finish(octx, span, nil)
	return octx, nil
}

// prepare validates the query and builds the request context.
func (o *Orchestrator) prepare(ctx context.Context, query, actorID string) (*OrchestrationContext, error) {
	octx := &OrchestrationContext{
		RequestID: uuid.NewString(),
		Query:     strings.TrimSpace(query),
		ActorID:   actorID,
		State:     StateReceived,
		StartedAt: time.Now(),
	}
	if octx.Query == "" {
		octx.State = StateFailed
		pipelineOutcomes.WithLabelValues(string(StateFailed)).Inc()
		return octx, ErrEmptyQuery
	}
	return octx, nil
}

// gather runs classification, the auth gate, tool selection, execution,
// and the public-context fetch. On return the context is ready for
// synthesis unless an error is reported.
func (o *Orchestrator) gather(ctx context.Context, octx *OrchestrationContext) error {
	octx.Classification = o.classifier.Classify(ctx, octx.Query)
	octx.State = StateClassified

	needsActor := octx.Classification.QueryType == intent.QueryTypePrivate ||
		octx.Classification.QueryType == intent.QueryTypeMixed
	if needsActor && octx.ActorID == "" {
		octx.State = StateFailed
		o.logger.Warn("Private query without actor identity rejected",
			slog.String("request_id", octx.RequestID),
			slog.String("query_type", string(octx.Classification.QueryType)),
		)
		return ErrAuthenticationRequired
	}

	if needsActor {
		octx.ToolCalls = o.selector.Select(ctx, octx.Query)
		octx.State = StateToolsSelected

		octx.ToolResults = o.executor.Execute(ctx, octx.ActorID, octx.ToolCalls)
		octx.State = StateToolsExecuted
	}

	octx.PublicContext = o.fetchPublicContext(ctx, octx)
	octx.HasContext = hasUsableContext(octx)
	return nil
}

// fetchPublicContext pulls institutional data for matched public intents.
// One attempt per accessor; a failed fetch is logged and skipped.
func (o *Orchestrator) fetchPublicContext(ctx context.Context, octx *OrchestrationContext) map[string]any {
	if octx.Classification.QueryType == intent.QueryTypePrivate {
		return nil
	}

	public := make(map[string]any)
	for _, name := range octx.Classification.Intents {
		var (
			payload any
			err     error
		)
		switch name {
		case "calendar":
			payload, err = o.source.AcademicCalendar(ctx)
		case "electives":
			payload, err = o.source.OpenElectives(ctx)
		case "rules":
			payload, err = o.source.CreditRules(ctx)
		default:
			continue
		}
		if err != nil {
			o.logger.Warn("Public context fetch failed",
				slog.String("request_id", octx.RequestID),
				slog.String("intent", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		public[name] = payload
	}

	if len(public) == 0 {
		return nil
	}
	return public
}

// recommend fills follow-up suggestions when no usable context was found.
func (o *Orchestrator) recommend(octx *OrchestrationContext) {
	if octx.HasContext {
		return
	}
	octx.Recommendations = o.recommender.Generate(octx.Classification.NormalizedQuery)
}

// finish stamps timing, records metrics, and closes out the span.
func (o *Orchestrator) finish(octx *OrchestrationContext, span oteltrace.Span, err error) {
	octx.Duration = time.Since(octx.StartedAt)

	pipelineOutcomes.WithLabelValues(string(octx.State)).Inc()
	if octx.Classification.QueryType != "" {
		pipelineLatency.WithLabelValues(string(octx.Classification.QueryType)).Observe(octx.Duration.Seconds())
	}

	span.SetAttributes(
		attribute.String("pipeline.request_id", octx.RequestID),
		attribute.String("pipeline.state", string(octx.State)),
		attribute.String("pipeline.query_type", string(octx.Classification.QueryType)),
		attribute.Int("pipeline.tool_calls", len(octx.ToolCalls)),
		attribute.Int64("pipeline.duration_ms", octx.Duration.Milliseconds()),
	)
	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
	}

	o.logger.Info("Pipeline finished",
		slog.String("request_id", octx.RequestID),
		slog.String("state", string(octx.State)),
		slog.String("query_type", string(octx.Classification.QueryType)),
		slog.Bool("has_context", octx.HasContext),
		slog.Duration("duration", octx.Duration),
	)
}

// hasUsableContext reports whether any tool result succeeded or any
// public context was fetched.
func hasUsableContext(octx *OrchestrationContext) bool {
	for _, r := range octx.ToolResults {
		if r.Success {
			return true
		}
	}
	return len(octx.PublicContext) > 0
}
