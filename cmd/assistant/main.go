// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command assistant starts the BITS Dubai assistant API server.
//
// The assistant answers student queries by classifying them, fetching
// the student's records through a fixed tool catalog, and synthesizing
// a natural-language answer (Gemini, with a deterministic fallback).
//
// Usage:
//
//	go run ./cmd/assistant
//	go run ./cmd/assistant -port 9090
//
// With generation enabled:
//
//	GEMINI_API_KEY=... RECORDS_API_BASE_URL=http://records:8081 go run ./cmd/assistant
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/assistant/health
//
//	# Public query
//	curl -X POST http://localhost:8080/v1/assistant/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "When do midsems start?"}'
//
//	# Private query (requires identity header)
//	curl -X POST http://localhost:8080/v1/assistant/query \
//	  -H "Content-Type: application/json" \
//	  -H "X-Student-ID: f20220123" \
//	  -d '{"query": "What is my GPA?"}'
//
//	# Streaming
//	curl -N -X POST http://localhost:8080/v1/assistant/query/stream \
//	  -H "Content-Type: application/json" \
//	  -H "X-Student-ID: f20220123" \
//	  -d '{"query": "Show my attendance for CS F211"}'
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant"
	"github.com/Danish-Devx3/bits-dubai-rag/services/llm"
	"github.com/Danish-Devx3/bits-dubai-rag/services/records"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation: inherit trace context from incoming
	// headers so pipeline spans correlate with upstream services.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	source, err := records.NewClient()
	if err != nil {
		slog.Error("Records client unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg := assistant.DefaultServiceConfig()
	cfg.Source = source

	// Missing Gemini credentials degrade to fuzzy classification, fuzzy
	// tool selection, and deterministic formatting.
	llmEnabled := false
	if client, err := llm.NewGeminiClient(); err != nil {
		slog.Warn("Gemini client unavailable, generation disabled",
			slog.String("error", err.Error()))
	} else {
		cfg.Client = client
		llmEnabled = true
	}

	svc := assistant.NewService(cfg)
	handlers := assistant.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("bits-dubai-assistant"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	assistant.RegisterRoutes(v1, handlers)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, llmEnabled)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down assistant server")
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting assistant server",
		slog.String("address", addr),
		slog.Bool("llm_enabled", llmEnabled),
	)
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int, llmEnabled bool) {
	generation := "DISABLED (set GEMINI_API_KEY to enable)"
	if llmEnabled {
		generation = "ENABLED (Gemini connected)"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                   BITS DUBAI ASSISTANT SERVER                     ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Query understanding and tool orchestration for student records.  ║
║  Generation: %-50s   ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── POST /v1/assistant/query          buffered answer            ║
║  ├── POST /v1/assistant/query/stream   SSE stream                 ║
║  ├── GET  /v1/assistant/health, /ready                            ║
║  └── GET  /metrics                     prometheus                 ║
║                                                                   ║
║  Listening on :%-6d                                             ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, generation, port)
}
