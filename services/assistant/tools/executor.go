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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	executorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assistant",
		Subsystem: "executor",
		Name:      "call_latency_seconds",
		Help:      "Tool call execution latency by tool",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"tool"})

	executorOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assistant",
		Subsystem: "executor",
		Name:      "calls_total",
		Help:      "Tool call outcomes by tool and result",
	}, []string{"tool", "outcome"})
)

// =============================================================================
// Executor
// =============================================================================

const (
	defaultMaxConcurrent = 4
	defaultCallTimeout   = 5 * time.Second
)

// Executor runs validated tool calls against the DataSource.
//
// Description:
//
//	Calls within one request have no inter-dependency, so they run
//	concurrently under a bounded worker count. Each call gets its own
//	timeout; a failing call becomes a ToolResult with Success false and
//	never aborts its siblings. Results preserve the input call order,
//	one result per call.
//
// Thread Safety: Safe for concurrent use.
type Executor struct {
	ds            DataSource
	maxConcurrent int
	callTimeout   time.Duration
	logger        *slog.Logger
}

// NewExecutor creates an Executor.
//
// Inputs:
//   - ds: The record source. Must not be nil.
//   - maxConcurrent: Worker bound. Zero or negative defaults to 4.
//   - callTimeout: Per-call budget. Zero or negative defaults to 5 seconds.
//   - logger: Logger for structured output. Nil falls back to slog.Default().
func NewExecutor(ds DataSource, maxConcurrent int, callTimeout time.Duration, logger *slog.Logger) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		ds:            ds,
		maxConcurrent: maxConcurrent,
		callTimeout:   callTimeout,
		logger:        logger,
	}
}

// Execute runs every call and returns one result per call, input order.
//
// Inputs:
//   - ctx: Request context. Cancellation stops pending calls.
//   - actorID: The identity the calls are executed for.
//   - calls: Validated tool calls. May be empty.
//
// Outputs:
//   - []ToolResult: len == len(calls), same order. Never nil for non-empty
//     input.
func (e *Executor) Execute(ctx context.Context, actorID string, calls []ToolCall) []ToolResult {
	if len(calls) == 0 {
		return nil
	}

	ctx, span := toolsTracer.Start(ctx, "tools.execute")
	defer span.End()
	span.SetAttributes(attribute.Int("tools.call_count", len(calls)))

	results := make([]ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = e.executeOne(gctx, actorID, call)
			// Failures are carried in the result; returning an error would
			// cancel sibling calls.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// executeOne runs a single call with its own timeout.
func (e *Executor) executeOne(ctx context.Context, actorID string, call ToolCall) ToolResult {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	payload, err := e.dispatch(callCtx, actorID, call)
	executorLatency.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		executorOutcomes.WithLabelValues(call.Name, "failure").Inc()
		e.logger.Warn("Tool call failed",
			slog.String("tool", call.Name),
			slog.String("error", err.Error()),
		)
		return ToolResult{Tool: call.Name, Success: false, Error: readableError(call.Name, err)}
	}

	executorOutcomes.WithLabelValues(call.Name, "success").Inc()
	return ToolResult{Tool: call.Name, Success: true, Payload: payload}
}

// dispatch routes a call to the DataSource method for its tool name.
func (e *Executor) dispatch(ctx context.Context, actorID string, call ToolCall) (any, error) {
	switch call.Name {
	case "get_student_grades":
		return e.ds.StudentGrades(ctx, actorID, stringParam(call.Parameters, "semester"))
	case "get_payment_history":
		return e.ds.PaymentHistory(ctx, actorID, stringParam(call.Parameters, "semester"))
	case "get_enrolled_courses":
		return e.ds.EnrolledCourses(ctx, actorID, stringParam(call.Parameters, "semester"))
	case "get_attendance":
		courseCode := stringParam(call.Parameters, "course_code")
		if courseCode == "" {
			return nil, fmt.Errorf("tools: get_attendance requires course_code")
		}
		courseID, err := e.ds.ResolveCourseID(ctx, courseCode)
		if err != nil {
			return nil, fmt.Errorf("tools: resolving course %q: %w", courseCode, err)
		}
		return e.ds.Attendance(ctx, actorID, courseID)
	case "get_academic_summary":
		return e.ds.AcademicSummary(ctx, actorID)
	case "get_student_profile":
		return e.ds.StudentProfile(ctx, actorID)
	default:
		// Selection validates against the catalog, so this is a dispatch
		// table falling out of sync with it.
		return nil, fmt.Errorf("tools: no dispatch for tool %q", call.Name)
	}
}

// readableError converts known sentinels into user-presentable messages.
func readableError(tool string, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Sprintf("no record found for %s", tool)
	case errors.Is(err, ErrForbidden):
		return fmt.Sprintf("access to %s denied", tool)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s timed out", tool)
	default:
		return err.Error()
	}
}

// stringParam extracts a string parameter, tolerating absence and non-string
// values from model-produced parameter maps.
func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
