// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package textnorm provides pure text normalization for the catalog engine.
//
// Every cache key in the catalog subsystem is derived from Normalize, so the
// functions here must stay deterministic and free of I/O. Tokenization is
// intentionally simple (Unicode letter/digit runs); anything fancier belongs
// upstream in the LLM collaborators, not here.
//
// Thread Safety:
//
//	All functions in this package are stateless and safe for concurrent use.
package textnorm

import (
	"strings"
	"unicode"
)

// =============================================================================
// Stopwords
// =============================================================================

// stopwords is the closed set of English function words excluded from
// significant-token counts and from fallback keyword extraction. The list is
// deliberately small: over-aggressive stopword removal turns short topical
// queries ("history of rome") into empty token sets.
var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "am": {},
	"an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "because": {}, "been": {}, "before": {}, "being": {},
	"but": {}, "by": {}, "can": {}, "could": {}, "did": {}, "do": {},
	"does": {}, "doing": {}, "down": {}, "during": {}, "each": {},
	"few": {}, "for": {}, "from": {}, "further": {}, "had": {},
	"has": {}, "have": {}, "having": {}, "he": {}, "her": {}, "here": {},
	"hers": {}, "him": {}, "his": {}, "how": {}, "i": {}, "if": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "just": {},
	"me": {}, "my": {}, "no": {}, "nor": {}, "not": {}, "now": {},
	"of": {}, "off": {}, "on": {}, "once": {}, "only": {}, "or": {},
	"our": {}, "ours": {}, "out": {}, "over": {}, "own": {}, "please": {},
	"s": {}, "same": {}, "she": {}, "should": {}, "so": {}, "some": {},
	"such": {}, "t": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"theirs": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "through": {}, "to": {}, "too": {}, "under": {},
	"until": {}, "up": {}, "very": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {},
	"who": {}, "whom": {}, "why": {}, "will": {}, "with": {}, "would": {},
	"you": {}, "your": {}, "yours": {},
}

// IsStopword reports whether the (already lowercased) token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// =============================================================================
// Normalization
// =============================================================================

// Tokens splits text into lowercase tokens, dropping punctuation.
//
// Description:
//
//	A token is a maximal run of Unicode letters or digits. Hyphenated and
//	apostrophe-joined words split into their parts ("sci-fi" -> "sci", "fi"),
//	which is what the catalog's title index expects.
//
// Inputs:
//   - text: Raw text. May be empty.
//
// Outputs:
//   - []string: Lowercase tokens in input order. Never nil.
func Tokens(text string) []string {
	tokens := make([]string, 0, 8)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// Normalize returns the canonical lowercase, punctuation-stripped form of text.
//
// Description:
//
//	This is the cache-key generator for the expansion and aggregation caches:
//	two queries that normalize identically must hit the same cache entry.
//	Pure function, no I/O, no failure modes.
//
// Inputs:
//   - text: Raw query text.
//
// Outputs:
//   - string: Space-joined lowercase tokens. Empty when text has no tokens.
func Normalize(text string) string {
	return strings.Join(Tokens(text), " ")
}

// SignificantTokens returns the tokens of text with stopwords removed.
//
// The follow-up heuristic in the contextual resolver counts these: a query
// with at most two significant tokens is too thin to search on its own.
func SignificantTokens(text string) []string {
	all := Tokens(text)
	out := make([]string, 0, len(all))
	for _, t := range all {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}
