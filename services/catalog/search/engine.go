// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/librarian/services/catalog/cache"
	"github.com/AleutianAI/librarian/services/catalog/identifier"
	"github.com/AleutianAI/librarian/services/catalog/koha"
	"github.com/AleutianAI/librarian/services/catalog/resolve"
	"github.com/AleutianAI/librarian/services/history"
)

// =============================================================================
// Engine
// =============================================================================

// keywordOutcome is the cached raw response for one keyword: either the book
// list or a structured catalog error. Transport failures are not memoized;
// only answers the catalog actually gave.
type keywordOutcome struct {
	books []koha.Book
	err   error
}

// Options tunes an Engine. Zero values select the defaults the engine was
// profiled with.
type Options struct {
	// FanoutKeywords caps how many keywords one fan-out consults. Extras
	// are dropped, not queued. Default 8.
	FanoutKeywords int

	// FanoutConcurrency bounds in-flight catalog calls. Default 8.
	FanoutConcurrency int

	// FanoutDeadline bounds the whole fan-out. Default 12s (one catalog
	// timeout plus grace).
	FanoutDeadline time.Duration

	// CatalogCacheCapacity and CatalogCacheTTL size the per-keyword cache.
	// Defaults 5000 entries, 10 minutes.
	CatalogCacheCapacity int
	CatalogCacheTTL      time.Duration
}

func (o *Options) applyDefaults() {
	if o.FanoutKeywords <= 0 {
		o.FanoutKeywords = 8
	}
	if o.FanoutConcurrency <= 0 {
		o.FanoutConcurrency = 8
	}
	if o.FanoutDeadline <= 0 {
		o.FanoutDeadline = 12 * time.Second
	}
	if o.CatalogCacheCapacity <= 0 {
		o.CatalogCacheCapacity = 5000
	}
	if o.CatalogCacheTTL <= 0 {
		o.CatalogCacheTTL = 10 * time.Minute
	}
}

// Engine coordinates resolution, expansion, fan-out, aggregation, and
// enrichment. It is the only entry point the request layer talks to.
//
// Thread Safety: Engine is safe for concurrent use; per-request state lives
// on the stack and the two caches carry their own locks.
type Engine struct {
	catalog  Catalog
	resolver *resolve.Resolver
	expander *resolve.Expander
	outcomes *cache.TTL[string, keywordOutcome]
	opts     Options
	logger   *slog.Logger
}

// NewEngine creates an Engine.
//
// Inputs:
//   - catalog: The catalog client. Must not be nil.
//   - resolver: Topic resolver. Must not be nil.
//   - expander: Keyword expander. Must not be nil.
//   - opts: Tuning. Zero values use defaults.
//   - logger: Logger. May be nil.
func NewEngine(catalog Catalog, resolver *resolve.Resolver, expander *resolve.Expander, opts Options, logger *slog.Logger) *Engine {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog:  catalog,
		resolver: resolver,
		expander: expander,
		outcomes: cache.New[string, keywordOutcome](opts.CatalogCacheCapacity, opts.CatalogCacheTTL),
		opts:     opts,
		logger:   logger,
	}
}

// ResolveAndExpand turns a conversational query into search keywords.
//
// Description:
//
//	Formats the recent history, resolves the underlying topic (follow-ups
//	inherit theirs from the conversation), and expands it into keywords.
//	Never fails: every external dependency degrades to a deterministic
//	local path.
//
// Inputs:
//   - ctx: Context for the external calls.
//   - query: The raw patron query.
//   - turns: Conversation history, most recent last. May be empty.
//
// Outputs:
//   - resolve.KeywordSet: At least one keyword for a non-empty query.
func (e *Engine) ResolveAndExpand(ctx context.Context, query string, turns []history.Turn) resolve.KeywordSet {
	topic := e.resolver.Resolve(ctx, query, history.Format(turns))
	return e.expander.Expand(ctx, topic)
}

// ExtractIdentifiers pulls checksum-valid identifiers out of free text.
// Pure pass-through to the identifier package, exposed here so the request
// layer depends on one engine surface.
func (e *Engine) ExtractIdentifiers(text string) identifier.Set {
	return identifier.Extract(text)
}
