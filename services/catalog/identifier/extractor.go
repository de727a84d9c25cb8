// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package identifier extracts and validates ISBN, ISSN, and call-number
// candidates from free text.
//
// Extraction is permissive (broad regex match) and validation is exact
// (checksum): a candidate that fails its checksum is silently dropped rather
// than surfaced. There are no error returns anywhere in this package; an
// identifier category that matches nothing is simply an empty list.
//
// Thread Safety:
//
//	All functions are stateless and safe for concurrent use.
package identifier

import (
	"regexp"
	"strings"
)

// =============================================================================
// Identifier Set
// =============================================================================

// Set holds the validated identifiers found in one piece of text.
//
// Each list preserves first-seen order with duplicates removed. A trailing
// period immediately following a match in the source text is kept as part of
// the token: the upstream catalog indexes some identifiers with the period,
// and stripping it would miss those records.
type Set struct {
	ISBN        []string
	ISSN        []string
	CallNumbers []string
}

// Empty reports whether no identifier of any category was found.
func (s Set) Empty() bool {
	return len(s.ISBN) == 0 && len(s.ISSN) == 0 && len(s.CallNumbers) == 0
}

// =============================================================================
// Candidate Patterns
// =============================================================================
//
// Candidates are matched broadly and validated afterward; the patterns only
// need to over-approximate, never to be exact.

var (
	// isbnCandidateRE matches hyphen/space-separated digit runs that could be
	// an ISBN-10, ISBN-13, or hyphenated 9-digit SBN.
	isbnCandidateRE = regexp.MustCompile(`\b[0-9Xx][0-9Xx\-\s]{8,16}[0-9Xx]\b`)

	// issnCandidateRE matches the ####-###X shape with an optional separator.
	issnCandidateRE = regexp.MustCompile(`\b\d{4}[-\s]?\d{3}[\dXx]\b`)

	// sbnCandidateRE matches a bare 9-digit run (pre-ISBN SBN, no hyphens).
	sbnCandidateRE = regexp.MustCompile(`\b\d{9}\b`)

	// callNumberRE matches classification-style tokens: letter prefix,
	// number with optional decimal, optional cutter groups, optional year.
	callNumberRE = regexp.MustCompile(
		`\b(?:[A-Z]{1,3}\s*\d{1,4}(?:\.\d+)?)` +
			`(?:\s*[.\s]?[A-Z]{1,3}\d{0,4}[A-Z]{0,3})*` +
			`(?:\s*\d{4})?\b`)
)

// callNumberCues are the phrases that force call-number extraction even when
// an ISBN or ISSN was found.
var callNumberCues = []string{"call no", "call num", "call number", "call code"}

// =============================================================================
// Extraction
// =============================================================================

// Extract pulls every checksum-valid identifier out of text.
//
// Description:
//
//	Runs three passes: ISBN candidates (validating as ISBN-10, ISBN-13, or
//	zero-padded SBN), ISSN candidates, and, only when nothing validated or
//	the text explicitly asks for one, call-number candidates. Call numbers
//	have no checksum and are matched by shape alone, which is why they are
//	the fallback category and never compete with a validated ISBN/ISSN.
//
// Inputs:
//   - text: Raw user text. Empty text yields an empty Set.
//
// Outputs:
//   - Set: Validated identifiers, deduplicated in first-seen order. Never
//     contains an unvalidated ISBN/ISSN candidate.
func Extract(text string) Set {
	if text == "" {
		return Set{}
	}

	isbns := extractISBNs(text)
	issns := extractISSNs(text)

	lower := strings.ToLower(text)
	wantCall := len(isbns) == 0 && len(issns) == 0
	for _, cue := range callNumberCues {
		if strings.Contains(lower, cue) {
			wantCall = true
			break
		}
	}

	var callNos []string
	if wantCall {
		for _, m := range callNumberRE.FindAllString(text, -1) {
			callNos = append(callNos, normalizeSpacing(m))
		}
	}

	return Set{
		ISBN:        dedup(isbns),
		ISSN:        dedup(issns),
		CallNumbers: dedup(callNos),
	}
}

// extractISBNs collects validated ISBN-10/13 matches plus promoted SBNs.
func extractISBNs(text string) []string {
	var found []string

	for _, loc := range isbnCandidateRE.FindAllStringIndex(text, -1) {
		raw := normalizeSpacing(text[loc[0]:loc[1]])
		trailingDot := loc[1] < len(text) && text[loc[1]] == '.'
		compact := compactDigitsX(raw)

		switch {
		case len(compact) == 10 && IsValidISBN10(compact):
			found = append(found, withDot(raw, trailingDot))
		case len(compact) == 13 && IsValidISBN13(compact):
			found = append(found, withDot(raw, trailingDot))
		case len(compact) == 9:
			if _, ok := ExpandSBN(compact); ok {
				// Surface only the padded form. A hyphenated source keeps its
				// grouping with a "0-" prefix so it still resembles the input.
				display := "0" + raw
				if strings.Contains(raw, "-") {
					display = "0-" + raw
				}
				found = append(found, withDot(display, trailingDot))
			}
		}
	}

	// Second pass for bare 9-digit SBN tokens like "870228412" that the broad
	// ISBN pattern also matches but that deserve promotion even when isolated.
	for _, loc := range sbnCandidateRE.FindAllStringIndex(text, -1) {
		compact9 := text[loc[0]:loc[1]]
		trailingDot := loc[1] < len(text) && text[loc[1]] == '.'
		if _, ok := ExpandSBN(compact9); ok {
			found = append(found, withDot("0"+compact9, trailingDot))
		}
	}

	return found
}

// extractISSNs collects validated ISSN matches, normalized to ####-####.
func extractISSNs(text string) []string {
	var found []string
	for _, loc := range issnCandidateRE.FindAllStringIndex(text, -1) {
		raw := normalizeSpacing(text[loc[0]:loc[1]])
		trailingDot := loc[1] < len(text) && text[loc[1]] == '.'
		compact := compactDigitsX(raw)
		if !IsValidISSN(compact) {
			continue
		}
		found = append(found, withDot(compact[:4]+"-"+compact[4:], trailingDot))
	}
	return found
}

// =============================================================================
// Helpers
// =============================================================================

var (
	hyphenSpacingRE = regexp.MustCompile(`\s*-\s*`)
	multiSpaceRE    = regexp.MustCompile(`\s+`)
)

// normalizeSpacing collapses whitespace and tightens spaces around hyphens.
func normalizeSpacing(s string) string {
	s = strings.TrimSpace(s)
	s = hyphenSpacingRE.ReplaceAllString(s, "-")
	s = multiSpaceRE.ReplaceAllString(s, " ")
	return s
}

// withDot appends a trailing period when the source text had one immediately
// after the match.
func withDot(s string, dot bool) string {
	if dot {
		return s + "."
	}
	return s
}

// dedup removes duplicates preserving first-seen order.
func dedup(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
