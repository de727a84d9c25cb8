// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve turns a conversational query into catalog search keywords.
//
// Two stages: the Resolver decides what topic the patron is actually asking
// about (follow-ups like "show me more" inherit their topic from the
// conversation), and the Expander turns that topic into a bounded set of
// concrete search terms. The expensive external call is the exception on
// both stages: specific queries pass through untouched, and expansions are
// memoized in a TTL cache.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/librarian/services/catalog/textnorm"
	"github.com/AleutianAI/librarian/services/llm"
)

// =============================================================================
// Follow-Up Heuristic
// =============================================================================

// followUpWords is the continuation vocabulary. A query containing any of
// these may be leaning on the conversation for its topic.
var followUpWords = map[string]struct{}{
	"more":    {},
	"another": {},
	"else":    {},
	"other":   {},
	"others":  {},
	"again":   {},
	"similar": {},
	"like":    {},
	"them":    {},
	"those":   {},
}

// weakPlaceholders are resolver outputs that name no real topic. The external
// collaborator occasionally echoes the follow-up phrasing back instead of
// extracting a topic; these are treated the same as an empty response.
var weakPlaceholders = map[string]struct{}{
	"similar books": {},
	"more books":    {},
	"books":         {},
}

// IsFollowUp reports whether query likely inherits its topic from the
// conversation rather than stating one.
//
// Description:
//
//	True when the query intersects the continuation vocabulary or carries
//	at most 2 significant tokens. Long queries with no continuation words
//	are specific enough to stand alone.
func IsFollowUp(query string) bool {
	tokens := textnorm.Tokens(query)
	for _, tok := range tokens {
		if _, ok := followUpWords[tok]; ok {
			return true
		}
	}
	return len(textnorm.SignificantTokens(query)) <= 2
}

// =============================================================================
// Resolver
// =============================================================================

const contextualTopicPrompt = `You are analyzing a library chat conversation to determine what the patron wants to find books about.

**Conversation History:**
%s

**Latest User Query:** "%s"

**Your Task:**
Analyze the history and the latest query. What is the core topic the user wants to find books about?
- If the latest query is a follow-up (e.g., "recommend me more", "what about others?", "any more like that?"), extract the topic from the previous conversation turn.
- If the latest query introduces a completely new topic, use that new topic.
- Your response MUST BE ONLY the search topic keywords. Do not add any explanation or conversational text.`

// Resolver determines the true search topic for a query, consulting the
// conversation when the query alone does not name one.
//
// Thread Safety: Resolver is safe for concurrent use.
type Resolver struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewResolver creates a Resolver.
//
// Inputs:
//   - gen: Text-generation collaborator for contextual resolution.
//   - logger: Logger. May be nil.
func NewResolver(gen llm.Generator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{gen: gen, logger: logger}
}

// Resolve returns the topic the query is actually about.
//
// Description:
//
//	Specific queries return verbatim (trimmed) with no external call. A
//	follow-up with available history goes to the collaborator; any failure,
//	empty response, or known-weak placeholder degrades to the literal
//	query. Resolve never returns an error: the worst outcome is searching
//	for exactly what the patron typed.
//
// Inputs:
//   - ctx: Context for the external call.
//   - query: The raw query text.
//   - historyText: Formatted recent conversation, empty when none exists.
//
// Outputs:
//   - string: The resolved topic. Never empty when query is non-empty.
func (r *Resolver) Resolve(ctx context.Context, query, historyText string) string {
	trimmed := strings.TrimSpace(query)

	if historyText == "" || r.gen == nil || !IsFollowUp(trimmed) {
		resolutionsTotal.WithLabelValues("passthrough").Inc()
		return trimmed
	}

	r.logger.Debug("query looks like a follow-up, resolving topic from context",
		slog.String("query", trimmed),
	)

	prompt := fmt.Sprintf(contextualTopicPrompt, historyText, trimmed)
	raw, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("contextual resolution failed, using literal query",
			slog.String("error", err.Error()),
		)
		resolutionsTotal.WithLabelValues("contextual_fallback").Inc()
		return trimmed
	}

	topic := cleanTopic(raw)
	if topic == "" {
		resolutionsTotal.WithLabelValues("contextual_fallback").Inc()
		return trimmed
	}
	if _, weak := weakPlaceholders[strings.ToLower(topic)]; weak {
		r.logger.Warn("resolver returned a placeholder topic, using literal query",
			slog.String("topic", topic),
		)
		resolutionsTotal.WithLabelValues("contextual_fallback").Inc()
		return trimmed
	}

	r.logger.Info("resolved follow-up topic",
		slog.String("query", trimmed),
		slog.String("topic", topic),
	)
	resolutionsTotal.WithLabelValues("contextual").Inc()
	return topic
}

// cleanTopic strips the quoting and whitespace collaborators wrap topics in.
func cleanTopic(raw string) string {
	// Keep only the first line; some models append commentary despite the
	// prompt's instruction.
	if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.Trim(strings.TrimSpace(raw), `"'“”‘’`)
}
