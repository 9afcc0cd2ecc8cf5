// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synthesis

import (
	"strings"
	"testing"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/tools"
)

func TestFormatToolResults_EveryCatalogTool(t *testing.T) {
	// The deterministic formatter must produce non-empty text for every
	// catalog tool name.
	for _, name := range tools.NewCatalog().Names() {
		t.Run(name, func(t *testing.T) {
			out := FormatToolResults("q", []tools.ToolResult{
				{Tool: name, Success: true, Payload: map[string]any{"value": 1}},
			}, nil)
			if strings.TrimSpace(out) == "" {
				t.Fatalf("empty output for tool %q", name)
			}
			if !strings.Contains(strings.ToLower(out), "value: 1") {
				t.Errorf("output missing payload rendering: %q", out)
			}
		})
	}
}

func TestFormatToolResults_ToolHeadings(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_student_grades", Success: true, Payload: map[string]any{"gpa": 8.7}},
	}, nil)

	if !strings.Contains(out, "Your grades:") {
		t.Errorf("output missing grades heading: %q", out)
	}
	if !strings.Contains(out, "GPA: 8.7") {
		t.Errorf("output missing gpa line: %q", out)
	}
}

func TestFormatToolResults_GradesTable(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_student_grades", Success: true, Payload: map[string]any{
			"cgpa": 8.4,
			"sgpa": 8.9,
			"courses": []any{
				map[string]any{"course_code": "CS F211", "grade": "A"},
				map[string]any{"course_code": "CS F212", "grade": "A-"},
			},
		}},
	}, nil)

	if !strings.Contains(out, "CGPA: 8.4") {
		t.Errorf("missing CGPA line: %q", out)
	}
	if !strings.Contains(out, "GPA: 8.9") {
		t.Errorf("missing GPA line: %q", out)
	}
	if !strings.Contains(out, "CS F211: A") || !strings.Contains(out, "CS F212: A-") {
		t.Errorf("missing per-course grade rows: %q", out)
	}
}

func TestFormatToolResults_PaymentSummary(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_payment_history", Success: true, Payload: map[string]any{
			"total_paid":  240000,
			"outstanding": 5000,
			"payments": []any{
				map[string]any{"date": "2026-01-10", "amount": 120000, "status": "paid"},
				map[string]any{"date": "2026-07-15", "amount": 120000, "status": "paid"},
			},
		}},
	}, nil)

	if !strings.Contains(out, "Total paid: 240000") {
		t.Errorf("missing total line: %q", out)
	}
	if !strings.Contains(out, "Outstanding dues: 5000") {
		t.Errorf("missing dues line: %q", out)
	}
	if !strings.Contains(out, "- 2026-01-10: 120000 (paid)") {
		t.Errorf("missing payment row: %q", out)
	}
}

func TestFormatToolResults_CourseList(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_enrolled_courses", Success: true, Payload: []any{
			map[string]any{"course_code": "CS F211", "title": "Data Structures"},
			"ECON F212",
		}},
	}, nil)

	if !strings.Contains(out, "- CS F211: Data Structures") {
		t.Errorf("missing course row: %q", out)
	}
	if !strings.Contains(out, "- ECON F212") {
		t.Errorf("missing bare course entry: %q", out)
	}
}

func TestFormatToolResults_AttendancePercentage(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_attendance", Success: true, Payload: map[string]any{
			"percentage": 91.5,
			"attended":   33,
			"total":      36,
		}},
	}, nil)

	if !strings.Contains(out, "Attendance: 91.5%") {
		t.Errorf("missing percentage line: %q", out)
	}
	if !strings.Contains(out, "Classes attended: 33 of 36") {
		t.Errorf("missing attended counts: %q", out)
	}
}

func TestFormatToolResults_ProfileLabeledLines(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_student_profile", Success: true, Payload: map[string]any{
			"name":         "A. Student",
			"degree":       "B.E. Computer Science",
			"current_year": 3,
		}},
	}, nil)

	if !strings.Contains(out, "Name: A. Student") {
		t.Errorf("missing name line: %q", out)
	}
	if !strings.Contains(out, "Current year: 3") {
		t.Errorf("underscored key not labeled: %q", out)
	}
}

func TestFormatToolResults_SummaryLabeledLines(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_academic_summary", Success: true, Payload: map[string]any{
			"cgpa":              8.4,
			"credits_completed": 96,
		}},
	}, nil)

	if !strings.Contains(out, "Credits completed: 96") {
		t.Errorf("missing credits line: %q", out)
	}
}

func TestFormatToolResults_UnknownToolGenericRendering(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_future_tool", Success: true, Payload: map[string]any{"k": "v"}},
	}, nil)

	if !strings.Contains(out, "Result from get_future_tool") {
		t.Errorf("output missing generic heading: %q", out)
	}
}

func TestFormatToolResults_FailedToolsNoted(t *testing.T) {
	out := FormatToolResults("q", []tools.ToolResult{
		{Tool: "get_student_grades", Success: true, Payload: map[string]any{"gpa": 9.0}},
		{Tool: "get_payment_history", Success: false, Error: "timed out"},
	}, nil)

	if !strings.Contains(out, "get_payment_history could not be retrieved") {
		t.Errorf("output missing failure note: %q", out)
	}
	if !strings.Contains(out, "Your grades:") {
		t.Errorf("successful section missing: %q", out)
	}
}

func TestFormatToolResults_PublicContext(t *testing.T) {
	out := FormatToolResults("q", nil, map[string]any{
		"calendar":  map[string]any{"midsems": "2025-10-06"},
		"electives": []any{"HSS F334", "BITS F214"},
	})

	if !strings.Contains(out, "Academic calendar:") {
		t.Errorf("missing calendar section: %q", out)
	}
	if !strings.Contains(out, "Open electives:") {
		t.Errorf("missing electives section: %q", out)
	}
	if !strings.Contains(out, "- HSS F334") {
		t.Errorf("missing elective list item: %q", out)
	}
}

func TestFormatToolResults_NothingUsable(t *testing.T) {
	out := FormatToolResults("my holographic transcript", []tools.ToolResult{
		{Tool: "get_student_grades", Success: false, Error: "boom"},
	}, nil)

	if strings.TrimSpace(out) == "" {
		t.Fatal("output must never be empty")
	}
	if !strings.Contains(out, "couldn't find information") && !strings.Contains(out, "could not be retrieved") {
		t.Errorf("output = %q, want failure note or couldn't-find message", out)
	}
}

func TestFormatToolResults_NoContextAtAll(t *testing.T) {
	out := FormatToolResults("quantum parking", nil, nil)
	if !strings.Contains(out, "couldn't find information") {
		t.Errorf("output = %q, want couldn't-find message", out)
	}
}

func TestRenderValue_Deterministic(t *testing.T) {
	payload := map[string]any{"b": 2, "a": 1, "c": map[string]any{"z": 26, "y": 25}}
	first := renderValue(payload, 0)
	for i := 0; i < 5; i++ {
		if got := renderValue(payload, 0); got != first {
			t.Fatalf("renderValue not deterministic:\n%s\nvs\n%s", first, got)
		}
	}
	// Keys sorted.
	if strings.Index(first, "a: 1") > strings.Index(first, "b: 2") {
		t.Errorf("keys not sorted: %q", first)
	}
}

func TestRenderValue_NestedList(t *testing.T) {
	payload := []any{
		map[string]any{"course": "CS F211", "grade": "A"},
		map[string]any{"course": "CS F212", "grade": "A-"},
	}
	out := renderValue(payload, 0)
	if !strings.Contains(out, "course: CS F211") || !strings.Contains(out, "course: CS F212") {
		t.Errorf("nested list rendering incomplete: %q", out)
	}
}
