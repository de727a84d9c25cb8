// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"github.com/AleutianAI/librarian/services/catalog/textnorm"
)

// fillerTerms are content-free words that survive stopword filtering but
// carry no search value for a catalog ("books about X" should search X).
var fillerTerms = map[string]struct{}{
	"book":      {},
	"books":     {},
	"novel":     {},
	"novels":    {},
	"title":     {},
	"titles":    {},
	"author":    {},
	"authors":   {},
	"recommend": {},
	"suggest":   {},
	"find":      {},
	"show":      {},
	"want":      {},
	"looking":   {},
	"read":      {},
	"reading":   {},
}

// FallbackTerms extracts search terms from topic without an external call.
//
// Description:
//
//	Deterministic approximation of content-word extraction: keeps tokens
//	that are not stopwords and not catalog filler, preserving order and
//	deduplicating. Also emits adjacent-pair bigrams ("machine learning")
//	ahead of their component words, since catalog titles match phrases
//	better than isolated words. Caps at max terms.
//
// Inputs:
//   - topic: The topic text.
//   - max: Maximum terms to return. Non-positive uses 12.
//
// Outputs:
//   - []string: Lowercase terms in derivation order. Empty when topic has
//     no content words.
func FallbackTerms(topic string, max int) []string {
	if max <= 0 {
		max = 12
	}

	var content []string
	for _, tok := range textnorm.Tokens(topic) {
		if textnorm.IsStopword(tok) {
			continue
		}
		if _, filler := fillerTerms[tok]; filler {
			continue
		}
		content = append(content, tok)
	}
	if len(content) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(content)*2)
	out := make([]string, 0, max)
	add := func(term string) {
		if len(out) >= max {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for i := 0; i+1 < len(content); i++ {
		add(content[i] + " " + content[i+1])
	}
	for _, tok := range content {
		add(tok)
	}
	return out
}
