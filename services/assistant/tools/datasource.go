// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools holds the tool catalog, LLM-backed tool selection, and the
// bounded-concurrency tool executor. Tools are named data-retrieval
// operations served by a DataSource collaborator; the catalog is built once
// and shared read-only across all requests.
package tools

import (
	"context"
	"errors"
)

// Sentinel errors raised by DataSource implementations. The executor maps
// them to readable failure messages on the ToolResult.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("tools: record not found")
	// ErrForbidden indicates the actor may not read the requested record.
	ErrForbidden = errors.New("tools: access forbidden")
)

// DataSource is the narrow record-retrieval capability the executor runs
// tool calls against. One method per catalog tool, plus course-code
// resolution and the public-data accessors used outside the tool path.
//
// Implementations must be safe for concurrent use; the executor may run
// several calls of one request concurrently.
type DataSource interface {
	// StudentGrades returns the actor's grades, optionally for one semester.
	StudentGrades(ctx context.Context, actorID, semester string) (any, error)
	// PaymentHistory returns the actor's fee payments, optionally for one semester.
	PaymentHistory(ctx context.Context, actorID, semester string) (any, error)
	// EnrolledCourses returns the actor's course enrollments, optionally for one semester.
	EnrolledCourses(ctx context.Context, actorID, semester string) (any, error)
	// Attendance returns the actor's attendance record for one course.
	Attendance(ctx context.Context, actorID, courseID string) (any, error)
	// AcademicSummary returns the actor's overall academic standing.
	AcademicSummary(ctx context.Context, actorID string) (any, error)
	// StudentProfile returns the actor's profile record.
	StudentProfile(ctx context.Context, actorID string) (any, error)

	// ResolveCourseID resolves a human course code (e.g. "CS F211") to the
	// record identifier Attendance expects.
	ResolveCourseID(ctx context.Context, courseCode string) (string, error)

	// OpenElectives returns the currently offered elective courses.
	OpenElectives(ctx context.Context) (any, error)
	// AcademicCalendar returns the academic calendar entries.
	AcademicCalendar(ctx context.Context) (any, error)
	// CreditRules returns the credit and GPA rule text.
	CreditRules(ctx context.Context) (any, error)
}
