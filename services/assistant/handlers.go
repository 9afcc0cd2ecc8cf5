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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers serves the assistant HTTP endpoints.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handler set for a service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// getOrCreateRequestID returns the X-Request-ID header or a fresh UUID.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleQuery handles POST /v1/assistant/query.
//
// Description:
//
//	Runs the buffered pipeline and returns the synthesized answer.
//	Actor identity arrives out-of-band in the X-Student-ID header.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: Missing or empty query
//	401 Unauthorized: Private/Mixed query without X-Student-ID
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	actorID := c.GetHeader("X-Student-ID")

	octx, err := h.service.Orchestrator().Run(c.Request.Context(), req.Query, actorID)
	switch {
	case errors.Is(err, ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query must not be empty",
			Code:  "INVALID_REQUEST",
		})
		return
	case errors.Is(err, ErrAuthenticationRequired):
		logger.Warn("Rejected unauthenticated private query")
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: "this question needs your student identity; please sign in",
			Code:  "AUTHENTICATION_REQUIRED",
		})
		return
	case err != nil:
		logger.Error("Pipeline failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	logger.Info("Query answered",
		slog.String("query_type", string(octx.Classification.QueryType)),
		slog.Bool("has_context", octx.HasContext),
		slog.Duration("duration", octx.Duration),
	)

	c.JSON(http.StatusOK, QueryResponse{
		QueryType:       string(octx.Classification.QueryType),
		Response:        octx.Response,
		Recommendations: octx.Recommendations,
		HasContext:      octx.HasContext,
	})
}

// sseStream writes server-sent events, committing the 200 status and
// stream headers on the first event so early failures can still reply
// with a plain JSON error.
type sseStream struct {
	c     *gin.Context
	begun bool
}

func (s *sseStream) event(payload string) error {
	if !s.begun {
		s.c.Header("Content-Type", "text/event-stream")
		s.c.Header("Cache-Control", "no-cache")
		s.c.Header("Connection", "keep-alive")
		s.c.Writer.WriteHeader(http.StatusOK)
		s.begun = true
	}
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (s *sseStream) eventJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.event(string(payload))
}

// HandleQueryStream handles POST /v1/assistant/query/stream.
//
// Description:
//
//	Runs the streaming pipeline over server-sent events. Each answer
//	fragment arrives as `data: {"content": ...}`. On a mid-stream
//	failure a single `data: {"error": ...}` event is sent. Every stream,
//	success or failure, terminates with `data: {"metadata": {"duration":
//	<ms>}}` followed by `data: [DONE]`. Client disconnect cancels the
//	request context and aborts in-flight generation.
//
// Response:
//
//	200 OK: text/event-stream
//	400 Bad Request: Missing or empty query
//	401 Unauthorized: Private/Mixed query without X-Student-ID
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleQueryStream(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQueryStream")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	actorID := c.GetHeader("X-Student-ID")
	stream := &sseStream{c: c}
	start := time.Now()

	emit := func(fragment string) error {
		return stream.eventJSON(gin.H{"content": fragment})
	}

	octx, err := h.service.Orchestrator().RunStream(c.Request.Context(), req.Query, actorID, emit)

	// Failures before the first fragment still have a clean JSON channel.
	if err != nil && !stream.begun {
		switch {
		case errors.Is(err, ErrEmptyQuery):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "query must not be empty",
				Code:  "INVALID_REQUEST",
			})
		case errors.Is(err, ErrAuthenticationRequired):
			logger.Warn("Rejected unauthenticated private query")
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error: "this question needs your student identity; please sign in",
				Code:  "AUTHENTICATION_REQUIRED",
			})
		default:
			logger.Error("Pipeline failed before streaming", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "internal error",
				Code:  "INTERNAL_ERROR",
			})
		}
		return
	}

	if err != nil {
		logger.Error("Stream interrupted", slog.String("error", err.Error()))
		_ = stream.eventJSON(gin.H{"error": "response generation was interrupted"})
	} else {
		logger.Info("Stream completed",
			slog.String("query_type", string(octx.Classification.QueryType)),
			slog.Duration("duration", octx.Duration),
		)
	}

	_ = stream.eventJSON(gin.H{"metadata": StreamMetadata{Duration: time.Since(start).Milliseconds()}})
	_ = stream.event("[DONE]")
}

// HandleHealth handles GET /v1/assistant/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// HandleReady handles GET /v1/assistant/ready. The service is ready as
// soon as the embedded catalogs loaded; the field reports whether the
// generative backend is configured.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"llm_enabled": h.service.LLMEnabled(),
		"tools":       len(h.service.Catalog().Names()),
	})
}
