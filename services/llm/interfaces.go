// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides clients for the generative backend used by the
// assistant service. The backend turns structured context into prose and is
// also consulted for classification and tool selection when prompted.
//
// Thread Safety:
//
//	All clients in this package must be implemented as safe for concurrent use.
package llm

import "context"

// Message is a single conversation message sent to the generative backend.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// GenerationParams holds provider-agnostic generation options.
//
// Description:
//
//	Pointer fields are omitted from the request when nil so the provider's
//	own defaults apply. The zero value is a valid "all defaults" setting.
type GenerationParams struct {
	// Temperature controls randomness (0.0-1.0). Nil uses the provider default.
	Temperature *float32

	// TopP is the nucleus sampling cutoff. Nil uses the provider default.
	TopP *float32

	// TopK limits sampling to the K most likely tokens. Nil uses the provider default.
	TopK *int

	// MaxTokens limits the response length. Nil uses the provider default.
	MaxTokens *int

	// Stop lists sequences that end generation early.
	Stop []string

	// ModelOverride selects a different model for this request only.
	ModelOverride string
}

// StreamEventType discriminates streaming events delivered to a StreamCallback.
type StreamEventType int

const (
	// StreamEventToken carries one incremental text fragment.
	StreamEventToken StreamEventType = iota

	// StreamEventDone signals normal end of stream.
	StreamEventDone

	// StreamEventError carries a stream-level error message.
	StreamEventError
)

// StreamEvent is a single event from a streaming generation call.
type StreamEvent struct {
	// Type discriminates the event.
	Type StreamEventType

	// Content is the text fragment for StreamEventToken events.
	Content string

	// Error is the error message for StreamEventError events.
	Error string
}

// StreamCallback receives streaming events in arrival order.
//
// Returning a non-nil error aborts the stream; the client stops reading and
// propagates the error to the ChatStream caller.
type StreamCallback func(event StreamEvent) error

// Client is the generative backend consumed by the assistant service.
//
// Description:
//
//	Chat sends a conversation and returns the complete reply. ChatStream
//	delivers the reply as incremental fragments via the callback, preserving
//	arrival order. Embed produces a vector for a text (used only by the
//	ingestion/retrieval path, which lives outside this service).
//
// Thread Safety: Implementations must be safe for concurrent use.
type Client interface {
	// Chat sends messages and returns the assistant's complete response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation messages (system, user, assistant).
	//   - params: Generation parameters.
	//
	// Outputs:
	//   - string: The response text.
	//   - error: Non-nil on network failure, API error, or empty reply.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// ChatStream sends messages and delivers the reply incrementally.
	//
	// Inputs:
	//   - ctx: Context for cancellation. Cancelling aborts the stream.
	//   - messages: Conversation messages.
	//   - params: Generation parameters.
	//   - callback: Called for each streaming event, in arrival order.
	//
	// Outputs:
	//   - error: Non-nil on network failure, API error, or callback abort.
	ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error

	// Embed returns an embedding vector for the given text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - text: The text to embed.
	//
	// Outputs:
	//   - []float64: The embedding vector.
	//   - error: Non-nil on failure.
	Embed(ctx context.Context, text string) ([]float64, error)
}
