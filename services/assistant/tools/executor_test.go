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
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockDataSource implements DataSource with pluggable functions. Methods
// without a configured function return a canned payload.
type mockDataSource struct {
	gradesFn     func(ctx context.Context, actorID, semester string) (any, error)
	paymentsFn   func(ctx context.Context, actorID, semester string) (any, error)
	coursesFn    func(ctx context.Context, actorID, semester string) (any, error)
	attendanceFn func(ctx context.Context, actorID, courseID string) (any, error)
	summaryFn    func(ctx context.Context, actorID string) (any, error)
	profileFn    func(ctx context.Context, actorID string) (any, error)
	resolveFn    func(ctx context.Context, courseCode string) (string, error)
}

func (m *mockDataSource) StudentGrades(ctx context.Context, actorID, semester string) (any, error) {
	if m.gradesFn != nil {
		return m.gradesFn(ctx, actorID, semester)
	}
	return map[string]any{"gpa": 8.7}, nil
}

func (m *mockDataSource) PaymentHistory(ctx context.Context, actorID, semester string) (any, error) {
	if m.paymentsFn != nil {
		return m.paymentsFn(ctx, actorID, semester)
	}
	return map[string]any{"paid": true}, nil
}

func (m *mockDataSource) EnrolledCourses(ctx context.Context, actorID, semester string) (any, error) {
	if m.coursesFn != nil {
		return m.coursesFn(ctx, actorID, semester)
	}
	return []string{"CS F211"}, nil
}

func (m *mockDataSource) Attendance(ctx context.Context, actorID, courseID string) (any, error) {
	if m.attendanceFn != nil {
		return m.attendanceFn(ctx, actorID, courseID)
	}
	return map[string]any{"percentage": 92}, nil
}

func (m *mockDataSource) AcademicSummary(ctx context.Context, actorID string) (any, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, actorID)
	}
	return map[string]any{"credits": 96}, nil
}

func (m *mockDataSource) StudentProfile(ctx context.Context, actorID string) (any, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, actorID)
	}
	return map[string]any{"name": "Test Student"}, nil
}

func (m *mockDataSource) ResolveCourseID(ctx context.Context, courseCode string) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, courseCode)
	}
	return "course-1", nil
}

func (m *mockDataSource) OpenElectives(ctx context.Context) (any, error) {
	return []string{"HSS F334"}, nil
}

func (m *mockDataSource) AcademicCalendar(ctx context.Context) (any, error) {
	return map[string]any{"midsems": "2025-10-06"}, nil
}

func (m *mockDataSource) CreditRules(ctx context.Context) (any, error) {
	return "minimum 12 credits per semester", nil
}

func TestExecutor_OneResultPerCallInOrder(t *testing.T) {
	e := NewExecutor(&mockDataSource{}, 0, 0, nil)

	calls := []ToolCall{
		{Name: "get_student_grades", Parameters: map[string]any{}},
		{Name: "get_payment_history", Parameters: map[string]any{}},
		{Name: "get_student_profile", Parameters: map[string]any{}},
	}
	results := e.Execute(context.Background(), "f20210001", calls)

	if len(results) != len(calls) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(calls))
	}
	for i, call := range calls {
		if results[i].Tool != call.Name {
			t.Errorf("results[%d].Tool = %q, want %q", i, results[i].Tool, call.Name)
		}
		if !results[i].Success {
			t.Errorf("results[%d] failed: %s", i, results[i].Error)
		}
	}
}

func TestExecutor_OrderPreservedUnderConcurrency(t *testing.T) {
	// Make earlier calls slower than later ones so completion order is
	// reversed from input order.
	ds := &mockDataSource{
		gradesFn: func(_ context.Context, _, _ string) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return "grades", nil
		},
		paymentsFn: func(_ context.Context, _, _ string) (any, error) {
			time.Sleep(20 * time.Millisecond)
			return "payments", nil
		},
		profileFn: func(_ context.Context, _ string) (any, error) {
			return "profile", nil
		},
	}
	e := NewExecutor(ds, 3, 0, nil)

	results := e.Execute(context.Background(), "s1", []ToolCall{
		{Name: "get_student_grades"},
		{Name: "get_payment_history"},
		{Name: "get_student_profile"},
	})

	want := []string{"grades", "payments", "profile"}
	for i, payload := range want {
		if results[i].Payload != payload {
			t.Errorf("results[%d].Payload = %v, want %q", i, results[i].Payload, payload)
		}
	}
}

func TestExecutor_FailureIsolated(t *testing.T) {
	ds := &mockDataSource{
		gradesFn: func(_ context.Context, _, _ string) (any, error) {
			return nil, errors.New("backend exploded")
		},
	}
	e := NewExecutor(ds, 0, 0, nil)

	results := e.Execute(context.Background(), "s1", []ToolCall{
		{Name: "get_student_grades"},
		{Name: "get_payment_history"},
	})

	if results[0].Success {
		t.Error("expected grades call to fail")
	}
	if results[0].Error == "" {
		t.Error("expected error message on failed result")
	}
	if !results[1].Success {
		t.Errorf("sibling call should succeed, got error: %s", results[1].Error)
	}
}

func TestExecutor_ConcurrencyBounded(t *testing.T) {
	var current, peak atomic.Int32
	var mu sync.Mutex

	ds := &mockDataSource{
		gradesFn: func(_ context.Context, _, _ string) (any, error) {
			n := current.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return "ok", nil
		},
	}
	e := NewExecutor(ds, 2, 0, nil)

	calls := make([]ToolCall, 8)
	for i := range calls {
		calls[i] = ToolCall{Name: "get_student_grades"}
	}
	e.Execute(context.Background(), "s1", calls)

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestExecutor_AttendanceResolvesCourseCode(t *testing.T) {
	var resolvedCode, usedCourseID string
	ds := &mockDataSource{
		resolveFn: func(_ context.Context, courseCode string) (string, error) {
			resolvedCode = courseCode
			return "course-42", nil
		},
		attendanceFn: func(_ context.Context, _, courseID string) (any, error) {
			usedCourseID = courseID
			return map[string]any{"percentage": 88}, nil
		},
	}
	e := NewExecutor(ds, 0, 0, nil)

	results := e.Execute(context.Background(), "s1", []ToolCall{
		{Name: "get_attendance", Parameters: map[string]any{"course_code": "CS F211"}},
	})

	if !results[0].Success {
		t.Fatalf("attendance call failed: %s", results[0].Error)
	}
	if resolvedCode != "CS F211" {
		t.Errorf("resolved code = %q, want CS F211", resolvedCode)
	}
	if usedCourseID != "course-42" {
		t.Errorf("used course ID = %q, want course-42", usedCourseID)
	}
}

func TestExecutor_AttendanceResolutionFailure(t *testing.T) {
	ds := &mockDataSource{
		resolveFn: func(_ context.Context, _ string) (string, error) {
			return "", ErrNotFound
		},
	}
	e := NewExecutor(ds, 0, 0, nil)

	results := e.Execute(context.Background(), "s1", []ToolCall{
		{Name: "get_attendance", Parameters: map[string]any{"course_code": "XX F000"}},
	})

	if results[0].Success {
		t.Fatal("expected failed result for unresolvable course code")
	}
}

func TestExecutor_AttendanceMissingCourseCode(t *testing.T) {
	e := NewExecutor(&mockDataSource{}, 0, 0, nil)

	results := e.Execute(context.Background(), "s1", []ToolCall{
		{Name: "get_attendance", Parameters: map[string]any{}},
	})

	if results[0].Success {
		t.Fatal("expected failure without course_code")
	}
	if !strings.Contains(results[0].Error, "course_code") {
		t.Errorf("error = %q, want mention of course_code", results[0].Error)
	}
}

func TestExecutor_SentinelErrorsReadable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", ErrNotFound, "no record found"},
		{"forbidden", ErrForbidden, "denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &mockDataSource{
				gradesFn: func(_ context.Context, _, _ string) (any, error) {
					return nil, fmt.Errorf("datasource: %w", tt.err)
				},
			}
			e := NewExecutor(ds, 0, 0, nil)
			results := e.Execute(context.Background(), "s1", []ToolCall{{Name: "get_student_grades"}})

			if results[0].Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(results[0].Error, tt.want) {
				t.Errorf("error = %q, want containing %q", results[0].Error, tt.want)
			}
		})
	}
}

func TestExecutor_TimeoutBecomesFailedResult(t *testing.T) {
	ds := &mockDataSource{
		gradesFn: func(ctx context.Context, _, _ string) (any, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	e := NewExecutor(ds, 0, 20*time.Millisecond, nil)

	results := e.Execute(context.Background(), "s1", []ToolCall{{Name: "get_student_grades"}})

	if results[0].Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(results[0].Error, "timed out") {
		t.Errorf("error = %q, want timeout message", results[0].Error)
	}
}

func TestExecutor_EmptyCalls(t *testing.T) {
	e := NewExecutor(&mockDataSource{}, 0, 0, nil)
	if results := e.Execute(context.Background(), "s1", nil); len(results) != 0 {
		t.Errorf("expected no results for no calls, got %v", results)
	}
}
