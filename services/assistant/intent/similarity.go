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

// Levenshtein computes the edit distance between two strings.
//
// Description:
//
//	Standard dynamic-programming edit distance (insert, delete,
//	substitute, unit cost each) over runes, using two rolling rows so
//	memory stays O(min word length) for the short words this package
//	compares.
//
// Thread Safety: Pure function, safe for concurrent use.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost

			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Similarity computes normalized edit-distance similarity in [0,1].
//
// Description:
//
//	similarity = 1 - levenshtein(a,b) / max(len(a), len(b)).
//	Symmetric; 1.0 for identical strings (including two empties); 0.0
//	when exactly one string is empty.
//
// Thread Safety: Pure function, safe for concurrent use.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	la := len([]rune(a))
	lb := len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1.0
	}

	return 1.0 - float64(Levenshtein(a, b))/float64(max)
}
