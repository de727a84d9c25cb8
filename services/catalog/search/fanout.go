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
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/librarian/services/catalog/koha"
	"github.com/AleutianAI/librarian/services/catalog/resolve"
)

// SearchOptions selects the aggregation behavior for one fan-out.
type SearchOptions struct {
	// Cap bounds distinct records in the result set. Non-positive uses 50.
	Cap int

	// Policy decides what a duplicate identity does: dropped, or counted
	// onto the retained record as a pre-enrichment availability proxy.
	Policy DedupPolicy
}

// SearchCatalog fans the keyword set out against the catalog and aggregates
// the results.
//
// Description:
//
//	At most FanoutKeywords keywords are consulted; extras are dropped. Each
//	keyword is answered from the per-keyword cache when possible, otherwise
//	by one catalog call whose outcome (list or structured error) is cached
//	for the TTL window. Lookups run concurrently, bounded by
//	FanoutConcurrency, under a single deadline.
//
//	Outcome classification, in order:
//	  - deadline fired first: ErrCatalogTimeout, partial results discarded
//	  - caller's ctx canceled: its error
//	  - every keyword failed: ErrCatalogUnavailable
//	  - otherwise: results concatenated in keyword order (not completion
//	    order) and aggregated; zero matches is a normal empty set.
//
// Inputs:
//   - ctx: Caller context. The fan-out deadline is layered beneath it.
//   - keywords: The expanded keyword set.
//   - opts: Cap and dedup policy for aggregation.
//
// Outputs:
//   - *AggregatedResultSet: Identity-unique records. Never nil on success.
//   - error: ErrCatalogTimeout, ErrCatalogUnavailable, or ctx's error.
func (e *Engine) SearchCatalog(ctx context.Context, keywords resolve.KeywordSet, opts SearchOptions) (*AggregatedResultSet, error) {
	start := time.Now()
	defer func() {
		fanoutDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	kws := keywords.Keywords
	if len(kws) > e.opts.FanoutKeywords {
		kws = kws[:e.opts.FanoutKeywords]
	}
	if len(kws) == 0 {
		fanoutTotal.WithLabelValues("empty").Inc()
		return &AggregatedResultSet{}, nil
	}

	fanCtx, cancel := context.WithTimeout(ctx, e.opts.FanoutDeadline)
	defer cancel()

	// Indexed result slots keep concatenation in keyword order regardless
	// of completion order.
	books := make([][]koha.Book, len(kws))
	errs := make([]error, len(kws))

	var g errgroup.Group
	g.SetLimit(e.opts.FanoutConcurrency)
	for i, kw := range kws {
		g.Go(func() error {
			books[i], errs[i] = e.searchKeyword(fanCtx, kw)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-fanCtx.Done():
		// Abandon the stragglers; their calls die with fanCtx and any
		// responses that still arrive are cached but not merged here.
		if ctxErr := ctx.Err(); ctxErr != nil {
			fanoutTotal.WithLabelValues("canceled").Inc()
			return nil, ctxErr
		}
		e.logger.Warn("catalog fan-out deadline exceeded",
			slog.Int("keywords", len(kws)),
			slog.Duration("deadline", e.opts.FanoutDeadline),
		)
		fanoutTotal.WithLabelValues("timeout").Inc()
		return nil, ErrCatalogTimeout
	}

	failed := 0
	var raw []koha.Book
	for i := range kws {
		if errs[i] != nil {
			failed++
			continue
		}
		raw = append(raw, books[i]...)
	}

	if failed == len(kws) {
		e.logger.Error("catalog fan-out failed for every keyword",
			slog.Int("keywords", len(kws)),
			slog.String("first_error", errs[0].Error()),
		)
		fanoutTotal.WithLabelValues("unavailable").Inc()
		return nil, ErrCatalogUnavailable
	}
	if failed > 0 {
		e.logger.Warn("catalog fan-out partial failure",
			slog.Int("failed", failed),
			slog.Int("keywords", len(kws)),
		)
	}

	set := Aggregate(raw, opts.Policy, opts.Cap)
	if set.Empty() {
		fanoutTotal.WithLabelValues("empty").Inc()
	} else {
		fanoutTotal.WithLabelValues("ok").Inc()
	}
	return set, nil
}

// searchKeyword answers one keyword from the cache or the catalog.
//
// Description:
//
//	Cache values memoize both successful lists and structured catalog
//	errors; the catalog answering 503 for a term will keep answering 503
//	for the TTL window, and re-asking helps nobody. Transport and timeout
//	errors are not cached, since they say nothing about the term.
func (e *Engine) searchKeyword(ctx context.Context, keyword string) ([]koha.Book, error) {
	key := keywordCacheKey("title", keyword)
	if out, ok := e.outcomes.Get(key); ok {
		keywordLookupsTotal.WithLabelValues("cache_hit").Inc()
		return out.books, out.err
	}

	books, err := e.catalog.SearchByField(ctx, "title", keyword)
	if err == nil {
		keywordLookupsTotal.WithLabelValues("ok").Inc()
		e.outcomes.Set(key, keywordOutcome{books: books})
		return books, nil
	}

	keywordLookupsTotal.WithLabelValues("error").Inc()
	var apiErr *koha.APIError
	if errors.As(err, &apiErr) {
		e.outcomes.Set(key, keywordOutcome{err: err})
	}
	return nil, err
}

// keywordCacheKey mirrors the field::term shape so an identifier lookup and
// a title search for the same text never collide.
func keywordCacheKey(field, term string) string {
	return field + "::" + strings.ToLower(strings.TrimSpace(term))
}
