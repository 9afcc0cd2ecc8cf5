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
	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/intent"
)

// ParamDef describes one tool parameter for prompts and validation.
type ParamDef struct {
	Type        string
	Description string
	Required    bool
}

// ToolDefinition is one named data-retrieval operation.
//
// Fields:
//   - Name: Unique tool name, dispatched on by the executor.
//   - Description: Natural-language description used verbatim in prompts.
//   - Parameters: Parameter schema, parameter name to definition.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]ParamDef
}

// ToolCall is one validated invocation request.
type ToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ToolResult is the outcome of executing one ToolCall.
//
// Exactly one of Payload (Success true) or Error (Success false) is
// meaningful.
type ToolResult struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Catalog is the immutable registry of tool definitions, shared across all
// concurrent requests.
//
// Thread Safety: Read-only after construction.
type Catalog struct {
	tools  []ToolDefinition
	byName map[string]*ToolDefinition
}

// NewCatalog builds the standard tool catalog.
func NewCatalog() *Catalog {
	defs := []ToolDefinition{
		{
			Name:        "get_student_grades",
			Description: "Gets the student's grades, GPA and CGPA, optionally for one semester.",
			Parameters: map[string]ParamDef{
				"semester": {Type: "string", Description: "Semester label, e.g. '2024-2025 Sem 1'", Required: false},
			},
		},
		{
			Name:        "get_payment_history",
			Description: "Gets the student's fee payments and outstanding dues, optionally for one semester.",
			Parameters: map[string]ParamDef{
				"semester": {Type: "string", Description: "Semester label, e.g. '2024-2025 Sem 1'", Required: false},
			},
		},
		{
			Name:        "get_enrolled_courses",
			Description: "Gets the courses the student is enrolled in, optionally for one semester.",
			Parameters: map[string]ParamDef{
				"semester": {Type: "string", Description: "Semester label, e.g. '2024-2025 Sem 1'", Required: false},
			},
		},
		{
			Name:        "get_attendance",
			Description: "Gets the student's attendance record for one course.",
			Parameters: map[string]ParamDef{
				"course_code": {Type: "string", Description: "Course code, e.g. 'CS F211'", Required: true},
			},
		},
		{
			Name:        "get_academic_summary",
			Description: "Gets the student's overall academic standing: completed credits, CGPA trend, progress.",
			Parameters:  map[string]ParamDef{},
		},
		{
			Name:        "get_student_profile",
			Description: "Gets the student's profile: name, ID, department, hostel and contact details.",
			Parameters:  map[string]ParamDef{},
		},
	}

	byName := make(map[string]*ToolDefinition, len(defs))
	for i := range defs {
		byName[defs[i].Name] = &defs[i]
	}
	return &Catalog{tools: defs, byName: byName}
}

// Definitions returns the catalog entries in registration order.
func (c *Catalog) Definitions() []ToolDefinition {
	return c.tools
}

// Lookup returns the definition with the given name.
func (c *Catalog) Lookup(name string) (*ToolDefinition, bool) {
	def, ok := c.byName[name]
	return def, ok
}

// Names returns all tool names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, def := range c.tools {
		names[i] = def.Name
	}
	return names
}

// Summaries returns name/description pairs for classification prompts.
func (c *Catalog) Summaries() []intent.ToolSummary {
	summaries := make([]intent.ToolSummary, len(c.tools))
	for i, def := range c.tools {
		summaries[i] = intent.ToolSummary{Name: def.Name, Description: def.Description}
	}
	return summaries
}
