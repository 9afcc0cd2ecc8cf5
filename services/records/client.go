// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package records is a narrow HTTP client for the student records
// service. It implements tools.DataSource: one GET per operation, no
// schema knowledge, no persistence.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Danish-Devx3/bits-dubai-rag/services/assistant/tools"
	"github.com/Danish-Devx3/bits-dubai-rag/services/llm"
)

// Client calls the records service over REST.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a Client from environment variables.
//
// Environment:
//
//	RECORDS_API_BASE_URL - Base URL of the records service (required)
//	RECORDS_API_TOKEN    - Bearer token (optional)
//
// Outputs:
//
//   - *Client: The configured client.
//   - error: Non-nil if RECORDS_API_BASE_URL is not set.
func NewClient() (*Client, error) {
	baseURL := os.Getenv("RECORDS_API_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("records: RECORDS_API_BASE_URL environment variable not set")
	}
	return NewClientWithConfig(baseURL, os.Getenv("RECORDS_API_TOKEN")), nil
}

// NewClientWithConfig creates a Client with explicit configuration.
// Used by tests to point at an httptest server.
func NewClientWithConfig(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// get issues one GET and decodes the JSON body.
//
// Status mapping: 404 wraps tools.ErrNotFound, 403 wraps
// tools.ErrForbidden, anything else non-2xx is an opaque error with the
// body redacted for logging. No retries.
func (c *Client) get(ctx context.Context, path string, query url.Values) (any, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("records: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("records: executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("records: reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("records: %s: %w", path, tools.ErrNotFound)
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("records: %s: %w", path, tools.ErrForbidden)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("records: %s returned status %d: %s",
			path, resp.StatusCode, llm.SafeLogString(string(body)))
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("records: parsing response: %w", err)
	}
	return payload, nil
}

// semesterQuery builds the optional semester filter.
func semesterQuery(semester string) url.Values {
	if semester == "" {
		return nil
	}
	return url.Values{"semester": {semester}}
}

// StudentGrades fetches the grade sheet for one student.
func (c *Client) StudentGrades(ctx context.Context, actorID, semester string) (any, error) {
	return c.get(ctx, "/v1/students/"+url.PathEscape(actorID)+"/grades", semesterQuery(semester))
}

// PaymentHistory fetches fee payments for one student.
func (c *Client) PaymentHistory(ctx context.Context, actorID, semester string) (any, error) {
	return c.get(ctx, "/v1/students/"+url.PathEscape(actorID)+"/payments", semesterQuery(semester))
}

// EnrolledCourses fetches current enrollments for one student.
func (c *Client) EnrolledCourses(ctx context.Context, actorID, semester string) (any, error) {
	return c.get(ctx, "/v1/students/"+url.PathEscape(actorID)+"/courses", semesterQuery(semester))
}

// Attendance fetches attendance for one student in one course. courseID
// is the resolved internal ID, not the course code.
func (c *Client) Attendance(ctx context.Context, actorID, courseID string) (any, error) {
	return c.get(ctx, "/v1/students/"+url.PathEscape(actorID)+"/attendance/"+url.PathEscape(courseID), nil)
}

// AcademicSummary fetches the academic standing summary for one student.
func (c *Client) AcademicSummary(ctx context.Context, actorID string) (any, error) {
	return c.get(ctx, "/v1/students/"+url.PathEscape(actorID)+"/summary", nil)
}

// StudentProfile fetches the profile record for one student.
func (c *Client) StudentProfile(ctx context.Context, actorID string) (any, error) {
	return c.get(ctx, "/v1/students/"+url.PathEscape(actorID)+"/profile", nil)
}

// ResolveCourseID resolves a course code ("CS F211") to its internal ID.
func (c *Client) ResolveCourseID(ctx context.Context, courseCode string) (string, error) {
	payload, err := c.get(ctx, "/v1/courses/resolve", url.Values{"code": {courseCode}})
	if err != nil {
		return "", err
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", fmt.Errorf("records: unexpected course resolution payload %T", payload)
	}
	id, ok := obj["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("records: course resolution payload has no id")
	}
	return id, nil
}

// OpenElectives fetches the institution-wide open elective list.
func (c *Client) OpenElectives(ctx context.Context) (any, error) {
	return c.get(ctx, "/v1/academics/electives", nil)
}

// AcademicCalendar fetches the institution-wide academic calendar.
func (c *Client) AcademicCalendar(ctx context.Context) (any, error) {
	return c.get(ctx, "/v1/academics/calendar", nil)
}

// CreditRules fetches the credit and grading rules.
func (c *Client) CreditRules(ctx context.Context) (any, error) {
	return c.get(ctx, "/v1/academics/rules", nil)
}
