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
	"errors"
	"strings"
	"testing"

	"github.com/Danish-Devx3/bits-dubai-rag/services/llm"
)

// mockLLMClient implements llm.Client with pluggable functions.
type mockLLMClient struct {
	chatFn func(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error)
}

func (m *mockLLMClient) Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error) {
	if m.chatFn != nil {
		return m.chatFn(ctx, messages, params)
	}
	return "", errors.New("chat not configured")
}

func (m *mockLLMClient) ChatStream(ctx context.Context, messages []llm.Message, params llm.GenerationParams, callback llm.StreamCallback) error {
	return errors.New("stream not configured")
}

func (m *mockLLMClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("embed not configured")
}

var testToolSummaries = []ToolSummary{
	{Name: "get_student_grades", Description: "Grades and GPA for a semester"},
	{Name: "get_payment_history", Description: "Fee payments and dues"},
}

func testFuzzyResult() ClassificationResult {
	return ClassificationResult{
		QueryType:       QueryTypePublic,
		Intents:         []string{"calendar"},
		SuggestedTools:  nil,
		Confidence:      0.3,
		NormalizedQuery: "ambiguous query",
	}
}

func TestLLMFallback_ValidReplyOverrides(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return `{"queryType": "Private", "intents": ["grades"], "suggestedTools": ["get_student_grades"], "confidence": 0.85}`, nil
		},
	}
	f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)

	result := f.Classify(context.Background(), "ambiguous query", testFuzzyResult())

	if result.QueryType != QueryTypePrivate {
		t.Errorf("QueryType = %q, want Private", result.QueryType)
	}
	if result.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", result.Confidence)
	}
	if len(result.SuggestedTools) != 1 || result.SuggestedTools[0] != "get_student_grades" {
		t.Errorf("SuggestedTools = %v, want [get_student_grades]", result.SuggestedTools)
	}
	if result.NormalizedQuery != "ambiguous query" {
		t.Errorf("NormalizedQuery = %q, want carried from fuzzy result", result.NormalizedQuery)
	}
}

func TestLLMFallback_FencedJSONAccepted(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return "```json\n{\"queryType\": \"Mixed\", \"intents\": [], \"suggestedTools\": [], \"confidence\": 0.6}\n```", nil
		},
	}
	f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)

	result := f.Classify(context.Background(), "q", testFuzzyResult())
	if result.QueryType != QueryTypeMixed {
		t.Errorf("QueryType = %q, want Mixed from fenced JSON", result.QueryType)
	}
}

func TestLLMFallback_ProseAroundJSONAccepted(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return `Sure! Here is the classification: {"queryType": "Public", "intents": ["rules"], "suggestedTools": [], "confidence": 0.7} Hope that helps.`, nil
		},
	}
	f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)

	result := f.Classify(context.Background(), "q", testFuzzyResult())
	if result.QueryType != QueryTypePublic {
		t.Errorf("QueryType = %q, want Public extracted from prose", result.QueryType)
	}
	if len(result.Intents) != 1 || result.Intents[0] != "rules" {
		t.Errorf("Intents = %v, want [rules]", result.Intents)
	}
}

func TestLLMFallback_GarbageBacksOff(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return "I cannot classify this query, sorry.", nil
		},
	}
	f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)

	fuzzy := testFuzzyResult()
	result := f.Classify(context.Background(), "q", fuzzy)
	if result.QueryType != fuzzy.QueryType || result.Confidence != fuzzy.Confidence {
		t.Errorf("result = %+v, want fuzzy result unchanged", result)
	}
}

func TestLLMFallback_TransportErrorBacksOff(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)

	fuzzy := testFuzzyResult()
	result := f.Classify(context.Background(), "q", fuzzy)
	if result.QueryType != fuzzy.QueryType {
		t.Errorf("QueryType = %q, want fuzzy %q on transport error", result.QueryType, fuzzy.QueryType)
	}
}

func TestLLMFallback_UnknownQueryTypeBacksOff(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return `{"queryType": "Secret", "intents": [], "suggestedTools": [], "confidence": 0.9}`, nil
		},
	}
	f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)

	fuzzy := testFuzzyResult()
	result := f.Classify(context.Background(), "q", fuzzy)
	if result.QueryType != fuzzy.QueryType {
		t.Errorf("QueryType = %q, want fuzzy %q for unknown type", result.QueryType, fuzzy.QueryType)
	}
}

func TestLLMFallback_ConfidenceOutOfRangeBacksOff(t *testing.T) {
	for _, confidence := range []string{"1.5", "-0.1"} {
		client := &mockLLMClient{
			chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
				return `{"queryType": "Private", "intents": [], "suggestedTools": [], "confidence": ` + confidence + `}`, nil
			},
		}
		f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)

		fuzzy := testFuzzyResult()
		result := f.Classify(context.Background(), "q", fuzzy)
		if result.QueryType != fuzzy.QueryType {
			t.Errorf("confidence %s: QueryType = %q, want fuzzy result", confidence, result.QueryType)
		}
	}
}

func TestLLMFallback_UnknownToolsDropped(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return `{"queryType": "Private", "intents": ["grades"], "suggestedTools": ["get_student_grades", "delete_everything"], "confidence": 0.8}`, nil
		},
	}
	f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)

	result := f.Classify(context.Background(), "q", testFuzzyResult())
	if len(result.SuggestedTools) != 1 || result.SuggestedTools[0] != "get_student_grades" {
		t.Errorf("SuggestedTools = %v, want unknown tools dropped", result.SuggestedTools)
	}
}

func TestLLMFallback_PromptEnumeratesCatalog(t *testing.T) {
	var captured []llm.Message
	client := &mockLLMClient{
		chatFn: func(_ context.Context, messages []llm.Message, _ llm.GenerationParams) (string, error) {
			captured = messages
			return `{"queryType": "Public", "intents": [], "suggestedTools": [], "confidence": 0.5}`, nil
		},
	}
	f := NewLLMFallbackClassifier(client, testToolSummaries, 0, nil)
	f.Classify(context.Background(), "the user query", testFuzzyResult())

	if len(captured) != 2 {
		t.Fatalf("len(messages) = %d, want 2 (system + user)", len(captured))
	}
	system := captured[0].Content
	for _, tool := range testToolSummaries {
		if !strings.Contains(system, tool.Name) {
			t.Errorf("system prompt missing tool %q", tool.Name)
		}
		if !strings.Contains(system, tool.Description) {
			t.Errorf("system prompt missing description for %q", tool.Name)
		}
	}
	if captured[1].Content != "the user query" {
		t.Errorf("user message = %q, want the query", captured[1].Content)
	}
}

func TestParseResult_OK(t *testing.T) {
	ok := ParseResult{Reply: &FallbackReply{}}
	if !ok.OK() {
		t.Error("ParseResult with Reply should be OK")
	}
	failed := ParseResult{Raw: "garbage"}
	if failed.OK() {
		t.Error("ParseResult without Reply should not be OK")
	}
}
