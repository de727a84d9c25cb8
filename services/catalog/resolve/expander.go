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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/librarian/services/catalog/cache"
	"github.com/AleutianAI/librarian/services/catalog/textnorm"
	"github.com/AleutianAI/librarian/services/llm"
)

// =============================================================================
// Keyword Set
// =============================================================================

// Source identifies where a KeywordSet came from.
type Source string

const (
	// SourceCache means the set was served from the expansion cache.
	SourceCache Source = "cache"
	// SourceGenerator means the external collaborator produced the set.
	SourceGenerator Source = "generator"
	// SourceFallback means the deterministic local extractor produced it.
	SourceFallback Source = "fallback"
)

// KeywordSet is the expansion of one topic into catalog search terms.
type KeywordSet struct {
	// Topic is the resolved topic the keywords were derived from.
	Topic string

	// Keywords are lowercase, deduplicated search terms in derivation
	// order, capped at the expander's maximum.
	Keywords []string

	// Source records which path produced the keywords.
	Source Source
}

// =============================================================================
// Expander
// =============================================================================

// errNoGenerator routes the no-collaborator configuration down the same
// fallback path as a failed call.
var errNoGenerator = errors.New("no text generation collaborator configured")

const expansionPrompt = `You are helping to search a library catalog. Expand the user's topic into 8-15 concise search terms.
User topic: %q

Rules:
- Return ONLY a comma-separated list (no bullets, no numbering).
- Prefer concrete book title terms.
- Avoid made-up phrases.`

// Expander turns a topic into a bounded KeywordSet, memoizing results.
//
// Thread Safety: Expander is safe for concurrent use. The cache lock covers
// check-then-insert best-effort only; two concurrent cold misses for the
// same topic may both call the collaborator, and the second write wins.
type Expander struct {
	gen         llm.Generator
	expansions  *cache.TTL[string, KeywordSet]
	maxKeywords int
	logger      *slog.Logger
}

// NewExpander creates an Expander.
//
// Inputs:
//   - gen: Text-generation collaborator.
//   - expansions: The expansion cache, shared across requests.
//   - maxKeywords: Cap on keywords per set. Non-positive uses 12.
//   - logger: Logger. May be nil.
func NewExpander(gen llm.Generator, expansions *cache.TTL[string, KeywordSet], maxKeywords int, logger *slog.Logger) *Expander {
	if maxKeywords <= 0 {
		maxKeywords = 12
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{
		gen:         gen,
		expansions:  expansions,
		maxKeywords: maxKeywords,
		logger:      logger,
	}
}

// Expand returns search keywords for topic.
//
// Description:
//
//	Cache first, keyed on the normalized topic. On miss, asks the
//	collaborator for a delimited term list; a failed call or an unusable
//	response degrades to the deterministic local extractor, and an empty
//	extraction degrades further to the topic itself as a single keyword.
//	Every path writes its result into the cache, so repeated fallbacks are
//	memoized too. Expand never returns an error.
//
// Inputs:
//   - ctx: Context for the external call.
//   - topic: The resolved topic. Must be non-empty.
//
// Outputs:
//   - KeywordSet: At least one keyword when topic is non-empty.
func (e *Expander) Expand(ctx context.Context, topic string) KeywordSet {
	key := textnorm.Normalize(topic)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(topic))
	}

	if cached, ok := e.expansions.Get(key); ok {
		expansionsTotal.WithLabelValues(string(SourceCache)).Inc()
		cached.Source = SourceCache
		return cached
	}

	set := KeywordSet{Topic: topic, Source: SourceGenerator}
	var err error
	if e.gen == nil {
		err = errNoGenerator
	} else {
		var raw string
		raw, err = e.gen.Generate(ctx, fmt.Sprintf(expansionPrompt, topic))
		if err == nil {
			set.Keywords = parseKeywordList(raw, e.maxKeywords)
		}
	}
	if err != nil || len(set.Keywords) == 0 {
		if err != nil {
			e.logger.Warn("keyword expansion failed, using local extractor",
				slog.String("topic", topic),
				slog.String("error", err.Error()),
			)
		}
		set.Source = SourceFallback
		set.Keywords = FallbackTerms(topic, e.maxKeywords)
		if len(set.Keywords) == 0 {
			set.Keywords = []string{strings.ToLower(strings.TrimSpace(topic))}
		}
	}

	expansionsTotal.WithLabelValues(string(set.Source)).Inc()
	expansionKeywords.Observe(float64(len(set.Keywords)))

	e.expansions.Set(key, set)
	return set
}

// parseKeywordList splits a collaborator response into clean keywords.
//
// Description:
//
//	Splits on commas, pipes, and newlines, trims whitespace and quote
//	characters, lowercases, deduplicates preserving order, and caps at max.
func parseKeywordList(raw string, max int) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '|' || r == '\n'
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		kw := strings.ToLower(strings.Trim(strings.TrimSpace(f), `"'“”‘’`))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
		if len(out) >= max {
			break
		}
	}
	return out
}
