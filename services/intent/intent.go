// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent classifies a patron message into the closed set of request
// kinds the engine dispatches on. The set is a closed type, not free-form
// strings, so dispatch never branches on text the collaborator invented.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/librarian/services/catalog/identifier"
	"github.com/AleutianAI/librarian/services/llm"
)

// Intent is one of the request kinds the engine handles.
type Intent int

const (
	// GeneralInfo is small talk or anything outside the catalog paths.
	GeneralInfo Intent = iota

	// Search means the patron wants to find books by title, topic, or
	// author.
	Search

	// Recommend means the patron asked for suggestions.
	Recommend

	// IdentifierLookup means the message carries an ISBN, ISSN, or call
	// number to look up directly.
	IdentifierLookup
)

// String returns the wire name used in prompts and API responses.
func (i Intent) String() string {
	switch i {
	case Search:
		return "book_search"
	case Recommend:
		return "book_recommend"
	case IdentifierLookup:
		return "book_lookup_isbn"
	default:
		return "general_info"
	}
}

const classifierPrompt = `Classify the user's message into one of the following categories.
Rules are STRICT, follow exactly:

- general_info: Greetings, small talk, off-topic, or general questions not related to the library.
- book_search: The user explicitly wants to FIND, LOOK UP, SEARCH, or LOCATE books by title, topic, or author.
- book_recommend: The user explicitly uses words like RECOMMEND, SUGGEST, GIVE ME A LIST, or similar, asking for recommendations.
- book_lookup_isbn: The user provides an ISBN or asks to find a book by ISBN.

[History]: %s
[User Message]: %s

Respond with ONLY the category name.`

// recommendCues and searchCues drive the deterministic classifier tier.
var recommendCues = []string{"recommend", "suggest", "suggestion", "what should i read"}

var searchCues = []string{"find", "search", "look for", "looking for", "locate", "do you have", "books about", "books on"}

// Classifier assigns an Intent to each patron message.
//
// Description:
//
//	Two tiers. A deterministic tier handles the unambiguous cases: a
//	checksum-valid identifier in the text always wins, and explicit
//	recommend/search phrasing is matched by substring. Only ambiguous
//	messages go to the text-generation collaborator, and any failure or
//	unrecognized response degrades to the deterministic guess.
//
// Thread Safety: Classifier is safe for concurrent use.
type Classifier struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewClassifier creates a Classifier. gen may be nil, which disables the
// collaborator tier entirely.
func NewClassifier(gen llm.Generator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gen: gen, logger: logger}
}

// Classify returns the intent of query. Never fails.
//
// Inputs:
//   - ctx: Context for the collaborator call.
//   - query: The patron message.
//   - historyText: Formatted recent conversation, may be empty.
func (c *Classifier) Classify(ctx context.Context, query, historyText string) Intent {
	if guess, certain := classifyDeterministic(query); certain {
		return guess
	}

	if c.gen == nil {
		return GeneralInfo
	}

	raw, err := c.gen.Generate(ctx, fmt.Sprintf(classifierPrompt, historyText, query))
	if err != nil {
		c.logger.Warn("intent classification failed, defaulting to general_info",
			slog.String("error", err.Error()),
		)
		return GeneralInfo
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "book_search":
		return Search
	case "book_recommend":
		return Recommend
	case "book_lookup_isbn":
		return IdentifierLookup
	case "general_info", "library_info":
		return GeneralInfo
	default:
		c.logger.Warn("unrecognized intent from collaborator",
			slog.String("response", raw),
		)
		return GeneralInfo
	}
}

// classifyDeterministic handles messages whose intent is textually obvious.
// certain is false when the collaborator should decide.
func classifyDeterministic(query string) (guess Intent, certain bool) {
	if !identifier.Extract(query).Empty() {
		return IdentifierLookup, true
	}

	q := strings.ToLower(query)
	for _, cue := range recommendCues {
		if strings.Contains(q, cue) {
			return Recommend, true
		}
	}
	for _, cue := range searchCues {
		if strings.Contains(q, cue) {
			return Search, true
		}
	}
	return GeneralInfo, false
}
