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
	"reflect"
	"strings"
	"testing"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/config"
	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/intent"
	"github.com/Danish-Devx3/bits-dubai-rag/services/llm"
)

// mockLLMClient implements llm.Client with a pluggable Chat function.
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

func newTestSelector(t *testing.T, client llm.Client) *Selector {
	t.Helper()
	cfg, err := config.LoadIntentConfig()
	if err != nil {
		t.Fatalf("loading intent config: %v", err)
	}
	matcher := intent.NewFuzzyMatcher(cfg, nil)
	return NewSelector(client, NewCatalog(), matcher, 0, nil)
}

func toolNames(calls []ToolCall) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}

func TestSelector_ValidReply(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return `[{"name": "get_student_grades", "parameters": {"semester": "2024-2025 Sem 1"}}]`, nil
		},
	}
	s := newTestSelector(t, client)

	calls := s.Select(context.Background(), "show my grades for last semester")
	if len(calls) != 1 {
		t.Fatalf("len(calls) = %d, want 1", len(calls))
	}
	if calls[0].Name != "get_student_grades" {
		t.Errorf("call name = %q, want get_student_grades", calls[0].Name)
	}
	if calls[0].Parameters["semester"] != "2024-2025 Sem 1" {
		t.Errorf("semester = %v, want carried through", calls[0].Parameters["semester"])
	}
}

func TestSelector_UnknownToolsDropped(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return `[{"name": "drop_tables", "parameters": {}}, {"name": "get_student_profile", "parameters": {}}]`, nil
		},
	}
	s := newTestSelector(t, client)

	calls := s.Select(context.Background(), "who am i")
	for _, call := range calls {
		if _, ok := NewCatalog().Lookup(call.Name); !ok {
			t.Errorf("selector returned unknown tool %q", call.Name)
		}
	}
	if len(calls) != 1 || calls[0].Name != "get_student_profile" {
		t.Errorf("calls = %v, want only get_student_profile", toolNames(calls))
	}
}

func TestSelector_NonJSONFallsBackToFuzzy(t *testing.T) {
	query := "What is my GPA?"
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return "I think you should use the grades tool for this.", nil
		},
	}
	s := newTestSelector(t, client)

	calls := s.Select(context.Background(), query)

	// The fallback must equal the fuzzy matcher's own suggestions.
	cfg, err := config.LoadIntentConfig()
	if err != nil {
		t.Fatalf("loading intent config: %v", err)
	}
	want := intent.NewFuzzyMatcher(cfg, nil).Match(context.Background(), intent.Normalize(query)).SuggestedTools
	if !reflect.DeepEqual(toolNames(calls), want) {
		t.Errorf("fallback tools = %v, want fuzzy suggestions %v", toolNames(calls), want)
	}
	for _, call := range calls {
		if call.Parameters == nil || len(call.Parameters) != 0 {
			t.Errorf("fallback call %q parameters = %v, want empty map", call.Name, call.Parameters)
		}
	}
}

func TestSelector_TransportErrorFallsBack(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	s := newTestSelector(t, client)

	calls := s.Select(context.Background(), "what is my gpa")
	if len(calls) == 0 {
		t.Fatal("expected fuzzy fallback calls")
	}
	if calls[0].Name != "get_student_grades" {
		t.Errorf("calls[0] = %q, want get_student_grades", calls[0].Name)
	}
}

func TestSelector_NilClientUsesFuzzy(t *testing.T) {
	s := newTestSelector(t, nil)

	calls := s.Select(context.Background(), "show my fees")
	if len(calls) == 0 {
		t.Fatal("expected fuzzy fallback calls with nil client")
	}
	if calls[0].Name != "get_payment_history" {
		t.Errorf("calls[0] = %q, want get_payment_history", calls[0].Name)
	}
}

func TestSelector_EmptySelectionFallsBack(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return `[]`, nil
		},
	}
	s := newTestSelector(t, client)

	calls := s.Select(context.Background(), "what is my gpa")
	if len(calls) == 0 {
		t.Fatal("expected fuzzy fallback after empty selection")
	}
}

func TestSelector_FencedReplyAccepted(t *testing.T) {
	client := &mockLLMClient{
		chatFn: func(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
			return "```json\n[{\"name\": \"get_attendance\", \"parameters\": {\"course_code\": \"CS F211\"}}]\n```", nil
		},
	}
	s := newTestSelector(t, client)

	calls := s.Select(context.Background(), "attendance in CS F211")
	if len(calls) != 1 || calls[0].Name != "get_attendance" {
		t.Fatalf("calls = %v, want [get_attendance]", toolNames(calls))
	}
}

func TestSelector_PromptListsCatalog(t *testing.T) {
	var captured string
	client := &mockLLMClient{
		chatFn: func(_ context.Context, messages []llm.Message, _ llm.GenerationParams) (string, error) {
			captured = messages[0].Content
			return `[{"name": "get_student_profile", "parameters": {}}]`, nil
		},
	}
	s := newTestSelector(t, client)
	s.Select(context.Background(), "q")

	for _, def := range NewCatalog().Definitions() {
		if !strings.Contains(captured, def.Name) {
			t.Errorf("prompt missing tool %q", def.Name)
		}
		if !strings.Contains(captured, def.Description) {
			t.Errorf("prompt missing description of %q", def.Name)
		}
	}
	if !strings.Contains(captured, "course_code") {
		t.Error("prompt missing parameter schema entry course_code")
	}
}
