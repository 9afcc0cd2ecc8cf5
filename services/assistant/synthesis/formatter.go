// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synthesis turns tool results and public context into the final
// answer: LLM generation (buffered or streaming) with a deterministic
// per-tool fallback formatter, plus follow-up recommendations.
package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/tools"
)

// toolHeadings maps each catalog tool to its fallback section heading.
var toolHeadings = map[string]string{
	"get_student_grades":   "Your grades",
	"get_payment_history":  "Your payment history",
	"get_enrolled_courses": "Your enrolled courses",
	"get_attendance":       "Your attendance",
	"get_academic_summary": "Your academic summary",
	"get_student_profile":  "Your profile",
}

// toolFormatters maps each catalog tool to its payload renderer. Unknown
// tools (and payload shapes a renderer does not recognize) fall back to
// the generic renderValue walker.
var toolFormatters = map[string]func(any) string{
	"get_student_grades":   formatGrades,
	"get_payment_history":  formatPayments,
	"get_enrolled_courses": formatCourses,
	"get_attendance":       formatAttendance,
	"get_academic_summary": formatLabeledLines,
	"get_student_profile":  formatLabeledLines,
}

// contextHeadings maps public-context keys to their section headings.
var contextHeadings = map[string]string{
	"calendar":  "Academic calendar",
	"electives": "Open electives",
	"rules":     "Credit and grading rules",
}

// FormatToolResults renders a deterministic plain-text answer.
//
// Description:
//
//	The last line of defense: used whenever generation fails or is
//	unavailable. One section per successful tool result, rendered by
//	that tool's formatter (grades table, payment summary, course list,
//	attendance percentage, labeled summary and profile lines); unknown
//	tools get a generic key/value rendering. One section per
//	public-context entry, and a note per failed tool. Guaranteed
//	non-empty whenever at least one result succeeded or public context
//	exists; otherwise returns a best-effort "couldn't find" message.
//
// Thread Safety: Pure function, safe for concurrent use.
func FormatToolResults(query string, results []tools.ToolResult, publicContext map[string]any) string {
	var sections []string

	for _, result := range results {
		if !result.Success {
			continue
		}
		heading, ok := toolHeadings[result.Tool]
		if !ok {
			heading = "Result from " + result.Tool
		}
		body := ""
		if render, ok := toolFormatters[result.Tool]; ok {
			body = render(result.Payload)
		} else {
			body = renderValue(result.Payload, 1)
		}
		sections = append(sections, heading+":\n"+body)
	}

	keys := make([]string, 0, len(publicContext))
	for key := range publicContext {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		heading, ok := contextHeadings[key]
		if !ok {
			heading = capitalize(key)
		}
		sections = append(sections, heading+":\n"+renderValue(publicContext[key], 1))
	}

	for _, result := range results {
		if result.Success {
			continue
		}
		sections = append(sections, fmt.Sprintf("Note: %s could not be retrieved (%s).", result.Tool, result.Error))
	}

	if len(sections) == 0 {
		return fmt.Sprintf("I couldn't find information about %q. Try one of the suggested questions below.", query)
	}
	return strings.Join(sections, "\n\n")
}

// formatGrades renders a grades payload as CGPA and GPA lines followed by
// one "code: grade" row per course.
func formatGrades(v any) string {
	obj := asObject(v)
	if obj == nil {
		return renderValue(v, 1)
	}
	consumed := map[string]bool{}
	var lines []string
	if k, val, ok := firstOf(obj, "cgpa"); ok {
		lines = append(lines, fmt.Sprintf("  CGPA: %v", val))
		consumed[k] = true
	}
	if k, val, ok := firstOf(obj, "sgpa", "gpa"); ok {
		lines = append(lines, fmt.Sprintf("  GPA: %v", val))
		consumed[k] = true
	}
	if k, val, ok := firstOf(obj, "courses", "grades"); ok {
		consumed[k] = true
		items, isList := val.([]any)
		if !isList {
			lines = append(lines, renderValue(val, 1))
		}
		for _, item := range items {
			row := asObject(item)
			if row == nil {
				lines = append(lines, fmt.Sprintf("  - %v", item))
				continue
			}
			_, code, _ := firstOf(row, "course_code", "code", "course")
			_, grade, _ := firstOf(row, "grade", "letter_grade")
			if code != nil && grade != nil {
				lines = append(lines, fmt.Sprintf("  %v: %v", code, grade))
			} else {
				lines = append(lines, renderValue(item, 1))
			}
		}
	}
	if rest := remaining(obj, consumed); len(rest) > 0 {
		lines = append(lines, renderValue(rest, 1))
	}
	if len(lines) == 0 {
		return renderValue(v, 1)
	}
	return strings.Join(lines, "\n")
}

// formatPayments renders totals first, then one row per payment.
func formatPayments(v any) string {
	if items, ok := v.([]any); ok {
		return formatPaymentRows(items)
	}
	obj := asObject(v)
	if obj == nil {
		return renderValue(v, 1)
	}
	consumed := map[string]bool{}
	var lines []string
	if k, val, ok := firstOf(obj, "total_paid", "paid"); ok {
		lines = append(lines, fmt.Sprintf("  Total paid: %v", val))
		consumed[k] = true
	}
	if k, val, ok := firstOf(obj, "outstanding", "dues", "due"); ok {
		lines = append(lines, fmt.Sprintf("  Outstanding dues: %v", val))
		consumed[k] = true
	}
	if k, val, ok := firstOf(obj, "payments", "history"); ok {
		consumed[k] = true
		if items, isList := val.([]any); isList {
			lines = append(lines, formatPaymentRows(items))
		} else {
			lines = append(lines, renderValue(val, 1))
		}
	}
	if rest := remaining(obj, consumed); len(rest) > 0 {
		lines = append(lines, renderValue(rest, 1))
	}
	if len(lines) == 0 {
		return renderValue(v, 1)
	}
	return strings.Join(lines, "\n")
}

// formatPaymentRows renders one "date: amount (status)" line per payment.
func formatPaymentRows(items []any) string {
	if len(items) == 0 {
		return "  (none)"
	}
	var lines []string
	for _, item := range items {
		row := asObject(item)
		if row == nil {
			lines = append(lines, fmt.Sprintf("  - %v", item))
			continue
		}
		_, when, _ := firstOf(row, "date", "semester", "period")
		_, amount, _ := firstOf(row, "amount", "paid", "value")
		_, status, hasStatus := firstOf(row, "status")
		switch {
		case when != nil && amount != nil && hasStatus:
			lines = append(lines, fmt.Sprintf("  - %v: %v (%v)", when, amount, status))
		case when != nil && amount != nil:
			lines = append(lines, fmt.Sprintf("  - %v: %v", when, amount))
		default:
			lines = append(lines, renderValue(item, 1))
		}
	}
	return strings.Join(lines, "\n")
}

// formatCourses renders an enrolled-course list, one "code: title" row each.
func formatCourses(v any) string {
	items, ok := v.([]any)
	if !ok {
		obj := asObject(v)
		if obj == nil {
			return renderValue(v, 1)
		}
		if _, val, found := firstOf(obj, "courses", "enrolled"); found {
			items, ok = val.([]any)
		}
		if !ok {
			return renderValue(v, 1)
		}
	}
	if len(items) == 0 {
		return "  (none)"
	}
	var lines []string
	for _, item := range items {
		row := asObject(item)
		if row == nil {
			lines = append(lines, fmt.Sprintf("  - %v", item))
			continue
		}
		_, code, _ := firstOf(row, "course_code", "code")
		_, title, _ := firstOf(row, "title", "name")
		switch {
		case code != nil && title != nil:
			lines = append(lines, fmt.Sprintf("  - %v: %v", code, title))
		case code != nil:
			lines = append(lines, fmt.Sprintf("  - %v", code))
		default:
			lines = append(lines, renderValue(item, 1))
		}
	}
	return strings.Join(lines, "\n")
}

// formatAttendance leads with the percentage, then attended/total counts.
func formatAttendance(v any) string {
	obj := asObject(v)
	if obj == nil {
		return renderValue(v, 1)
	}
	consumed := map[string]bool{}
	var lines []string
	if k, val, ok := firstOf(obj, "percentage", "percent"); ok {
		lines = append(lines, fmt.Sprintf("  Attendance: %v%%", val))
		consumed[k] = true
	}
	attended, hasAttended := obj["attended"]
	total, hasTotal := obj["total"]
	if hasAttended && hasTotal {
		lines = append(lines, fmt.Sprintf("  Classes attended: %v of %v", attended, total))
		consumed["attended"] = true
		consumed["total"] = true
	}
	if rest := remaining(obj, consumed); len(rest) > 0 {
		lines = append(lines, renderValue(rest, 1))
	}
	if len(lines) == 0 {
		return renderValue(v, 1)
	}
	return strings.Join(lines, "\n")
}

// formatLabeledLines renders a flat object as "Label: value" lines with
// capitalized keys in sorted order. Summary and profile payloads share it.
func formatLabeledLines(v any) string {
	obj := asObject(v)
	if len(obj) == 0 {
		return renderValue(v, 1)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var lines []string
	for _, k := range keys {
		label := capitalize(strings.ReplaceAll(k, "_", " "))
		switch obj[k].(type) {
		case map[string]any, []any, []string:
			lines = append(lines, "  "+label+":")
			lines = append(lines, renderValue(obj[k], 2))
		default:
			lines = append(lines, fmt.Sprintf("  %s: %v", label, obj[k]))
		}
	}
	return strings.Join(lines, "\n")
}

// asObject returns v as a decoded JSON object, or nil for any other shape.
func asObject(v any) map[string]any {
	obj, _ := v.(map[string]any)
	return obj
}

// firstOf returns the first of the given keys present in obj.
func firstOf(obj map[string]any, keys ...string) (string, any, bool) {
	for _, k := range keys {
		if val, ok := obj[k]; ok {
			return k, val, true
		}
	}
	return "", nil, false
}

// remaining copies obj minus the consumed keys. The payload itself is
// never mutated.
func remaining(obj map[string]any, consumed map[string]bool) map[string]any {
	rest := make(map[string]any)
	for k, v := range obj {
		if !consumed[k] {
			rest[k] = v
		}
	}
	return rest
}

// capitalize upper-cases the first letter of an ASCII heading key.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// renderValue renders an arbitrary decoded payload as indented text with
// deterministic key order.
func renderValue(v any, depth int) string {
	indent := strings.Repeat("  ", depth)

	switch val := v.(type) {
	case nil:
		return indent + "(none)"
	case map[string]any:
		if len(val) == 0 {
			return indent + "(none)"
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var lines []string
		for _, k := range keys {
			child := val[k]
			switch child.(type) {
			case map[string]any, []any:
				lines = append(lines, fmt.Sprintf("%s%s:", indent, k))
				lines = append(lines, renderValue(child, depth+1))
			default:
				lines = append(lines, fmt.Sprintf("%s%s: %v", indent, k, child))
			}
		}
		return strings.Join(lines, "\n")
	case []any:
		if len(val) == 0 {
			return indent + "(none)"
		}
		var lines []string
		for _, item := range val {
			switch item.(type) {
			case map[string]any, []any:
				lines = append(lines, indent+"-")
				lines = append(lines, renderValue(item, depth+1))
			default:
				lines = append(lines, fmt.Sprintf("%s- %v", indent, item))
			}
		}
		return strings.Join(lines, "\n")
	case []string:
		if len(val) == 0 {
			return indent + "(none)"
		}
		var lines []string
		for _, item := range val {
			lines = append(lines, fmt.Sprintf("%s- %s", indent, item))
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("%s%v", indent, val)
	}
}
