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
	"log/slog"
	"time"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/config"
	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/intent"
	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/synthesis"
	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/tools"
	"github.com/Danish-Devx3/bits-dubai-rag/services/llm"
)

// ServiceConfig holds the tunables for the assistant service.
type ServiceConfig struct {
	// Client is the generative backend. Nil disables generation: the
	// classifier runs fuzzy-only, the selector uses its fuzzy fallback,
	// and the synthesizer formats deterministically.
	Client llm.Client

	// Source is the records backend. Must not be nil.
	Source tools.DataSource

	// MaxConcurrentTools bounds parallel tool execution. Zero or negative
	// uses the executor default.
	MaxConcurrentTools int

	// ToolCallTimeout bounds one tool call. Zero uses the executor default.
	ToolCallTimeout time.Duration

	// SelectorTimeout bounds the tool-selection LLM call.
	SelectorTimeout time.Duration

	// FallbackTimeout bounds the classification-fallback LLM call.
	FallbackTimeout time.Duration

	// SynthesisTimeout bounds the buffered generation call.
	SynthesisTimeout time.Duration

	// Logger for all pipeline stages. Nil falls back to slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns a config with production timeouts. Client
// and Source must still be set by the caller.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxConcurrentTools: 4,
		ToolCallTimeout:    5 * time.Second,
		SelectorTimeout:    10 * time.Second,
		FallbackTimeout:    10 * time.Second,
		SynthesisTimeout:   30 * time.Second,
	}
}

// Service owns the assembled pipeline and reports readiness.
//
// Thread Safety: Safe for concurrent use after NewService returns.
type Service struct {
	orchestrator *Orchestrator
	catalog      *tools.Catalog
	llmEnabled   bool
	logger       *slog.Logger
}

// NewService wires the full pipeline from the given config.
//
// Description:
//
//	Loads the embedded intent and recommendation catalogs, builds every
//	stage, and connects them. Panics only if the embedded intent catalog
//	is invalid; a missing LLM client degrades gracefully instead.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	intentCfg := config.MustLoadIntentConfig()
	catalog := tools.NewCatalog()
	matcher := intent.NewFuzzyMatcher(intentCfg, logger)

	var fallback intent.FallbackClassifier
	if cfg.Client != nil {
		fallback = intent.NewLLMFallbackClassifier(cfg.Client, catalog.Summaries(), cfg.FallbackTimeout, logger)
	} else {
		logger.Info("No LLM client configured, running fuzzy-only classification")
	}

	classifier := intent.NewClassifier(matcher, fallback, intentCfg, logger)
	selector := tools.NewSelector(cfg.Client, catalog, matcher, cfg.SelectorTimeout, logger)
	executor := tools.NewExecutor(cfg.Source, cfg.MaxConcurrentTools, cfg.ToolCallTimeout, logger)
	synthesizer := synthesis.NewSynthesizer(cfg.Client, cfg.SynthesisTimeout, logger)
	recommender := synthesis.NewRecommendationGenerator(config.MustLoadRecommendationConfig())

	return &Service{
		orchestrator: NewOrchestrator(classifier, selector, executor, cfg.Source, synthesizer, recommender, logger),
		catalog:      catalog,
		llmEnabled:   cfg.Client != nil,
		logger:       logger,
	}
}

// Orchestrator returns the assembled pipeline.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orchestrator
}

// Catalog returns the immutable tool catalog.
func (s *Service) Catalog() *tools.Catalog {
	return s.catalog
}

// LLMEnabled reports whether a generative backend is configured.
func (s *Service) LLMEnabled() bool {
	return s.llmEnabled
}
