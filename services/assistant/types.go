// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assistant wires classification, tool selection, execution, and
// synthesis into the query pipeline and exposes it over HTTP.
package assistant

import (
	"errors"
	"time"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/intent"
	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/tools"
)

// =============================================================================
// Pipeline States
// =============================================================================

// PipelineState tracks how far a request made it through the pipeline.
type PipelineState string

const (
	StateReceived      PipelineState = "Received"
	StateClassified    PipelineState = "Classified"
	StateToolsSelected PipelineState = "ToolsSelected"
	StateToolsExecuted PipelineState = "ToolsExecuted"
	StateSynthesizing  PipelineState = "Synthesizing"
	StateCompleted     PipelineState = "Completed"
	StateFailed        PipelineState = "Failed"
)

// =============================================================================
// Errors
// =============================================================================

// ErrAuthenticationRequired is returned when a Private or Mixed query
// arrives without an actor identity. No tool is selected or executed in
// that case.
var ErrAuthenticationRequired = errors.New("assistant: authentication required")

// ErrEmptyQuery is returned when the query text is empty after trimming.
var ErrEmptyQuery = errors.New("assistant: query must not be empty")

// =============================================================================
// Orchestration Context
// =============================================================================

// OrchestrationContext carries the request-scoped state of one pipeline
// run. It is created per request and never shared; the pipeline holds no
// cross-request state.
//
// Thread Safety: NOT safe for concurrent use. One instance per request.
type OrchestrationContext struct {
	// RequestID is a UUID assigned when the request is received.
	RequestID string

	// Query is the raw query text as received.
	Query string

	// ActorID identifies the authenticated student. Empty for anonymous
	// requests.
	ActorID string

	// State is the pipeline state the request last reached.
	State PipelineState

	// Classification is the intent classification result.
	Classification intent.ClassificationResult

	// ToolCalls are the validated calls chosen by the selector.
	ToolCalls []tools.ToolCall

	// ToolResults holds one entry per call, in call order.
	ToolResults []tools.ToolResult

	// PublicContext holds fetched institutional data keyed by intent name.
	PublicContext map[string]any

	// Response is the synthesized answer. Empty for streaming runs, where
	// fragments go to the caller's emit function instead.
	Response string

	// Recommendations are follow-up suggestions, at most five.
	Recommendations []string

	// HasContext reports whether any tool result succeeded or any public
	// context was fetched.
	HasContext bool

	// StartedAt is when the pipeline began.
	StartedAt time.Time

	// Duration is the total pipeline wall time, set on completion.
	Duration time.Duration
}

// =============================================================================
// HTTP DTOs
// =============================================================================

// QueryRequest is the body of POST /v1/assistant/query and /query/stream.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// QueryResponse is the body of a successful buffered query.
type QueryResponse struct {
	QueryType       string   `json:"queryType"`
	Response        string   `json:"response"`
	Recommendations []string `json:"recommendations"`
	HasContext      bool     `json:"hasContext"`
}

// ErrorResponse is the body of any error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StreamMetadata is the metadata event sent at the end of a stream.
type StreamMetadata struct {
	Duration int64 `json:"duration"`
}
