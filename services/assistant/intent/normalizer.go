// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent implements the query classification pipeline: text
// normalization, edit-distance fuzzy matching against the intent catalog,
// Public/Private/Mixed classification, and the low-confidence LLM fallback.
package intent

import (
	"strings"
)

// Normalize canonicalizes raw query text for matching.
//
// Description:
//
//	Lowercases the input, replaces every run of characters outside
//	[a-z0-9'] with a single space, collapses whitespace, and trims.
//	Apostrophes are kept so contractions like "i'm" and "i've" survive
//	as private-indicator tokens.
//
// Inputs:
//   - s: Raw query text. May be empty.
//
// Outputs:
//   - string: The normalized text. Empty input yields empty output.
//
// Thread Safety: Pure function, safe for concurrent use.
func Normalize(s string) string {
	lower := strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
