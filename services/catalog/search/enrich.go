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

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/librarian/services/catalog/koha"
)

// enrichConcurrency bounds per-id item lookups on the degraded path.
const enrichConcurrency = 8

// EnrichQuantities populates each record's live copy count.
//
// Description:
//
//	Preferred strategy is one batch call over all distinct biblio ids;
//	quantity = item count per id, zero for ids the catalog returned no
//	items for. When the batch endpoint is unavailable the enricher degrades
//	to bounded concurrent per-id calls, where one id's failure zeroes only
//	that record and leaves its siblings enriched. Records without a biblio
//	id get quantity 0 with no external call.
//
//	EnrichQuantities is fail-soft by contract: it never returns an error,
//	and a record that could not be enriched keeps Enriched == false so the
//	caller can distinguish "zero copies" from "count unknown".
//
// Inputs:
//   - ctx: Context for the item lookups.
//   - records: Aggregated records. Not mutated; a copy is returned.
//
// Outputs:
//   - []CatalogRecord: Same order and length as records.
func (e *Engine) EnrichQuantities(ctx context.Context, records []CatalogRecord) []CatalogRecord {
	out := make([]CatalogRecord, len(records))
	copy(out, records)
	if len(out) == 0 {
		return out
	}

	ids := distinctBiblioIDs(out)
	if len(ids) == 0 {
		for i := range out {
			out[i].QuantityAvailable = 0
		}
		enrichmentsTotal.WithLabelValues("none").Inc()
		return out
	}

	counts, err := e.batchCounts(ctx, ids)
	if err != nil {
		if !errors.Is(err, koha.ErrBatchUnsupported) {
			e.logger.Warn("batch item lookup failed, degrading to per-id",
				slog.String("error", err.Error()),
			)
		}
		counts = e.perIDCounts(ctx, ids)
		enrichmentsTotal.WithLabelValues("per_id").Inc()
	} else {
		enrichmentsTotal.WithLabelValues("batch").Inc()
	}

	for i := range out {
		id := out[i].BiblioID
		if id == "" {
			out[i].QuantityAvailable = 0
			out[i].Enriched = false
			continue
		}
		c, known := counts[id]
		out[i].QuantityAvailable = c.n
		out[i].Enriched = known && c.ok
	}
	return out
}

// count carries a per-id result: n items, ok false when the lookup failed.
type count struct {
	n  int
	ok bool
}

func distinctBiblioIDs(records []CatalogRecord) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.BiblioID == "" {
			continue
		}
		if _, dup := seen[r.BiblioID]; dup {
			continue
		}
		seen[r.BiblioID] = struct{}{}
		ids = append(ids, r.BiblioID)
	}
	return ids
}

// batchCounts asks the batch items endpoint for all ids at once. Ids absent
// from the response have zero items.
func (e *Engine) batchCounts(ctx context.Context, ids []string) (map[string]count, error) {
	grouped, err := e.catalog.ItemsForBiblios(ctx, ids)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]count, len(ids))
	for _, id := range ids {
		counts[id] = count{n: len(grouped[id]), ok: true}
	}
	return counts, nil
}

// perIDCounts issues one bounded-concurrency call per id. A failed id gets
// {0, false} without affecting the others.
func (e *Engine) perIDCounts(ctx context.Context, ids []string) map[string]count {
	counts := make([]count, len(ids))

	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			items, err := e.catalog.ItemsForBiblio(ctx, id)
			if err != nil {
				e.logger.Warn("item lookup failed",
					slog.String("biblio_id", id),
					slog.String("error", err.Error()),
				)
				return nil
			}
			counts[i] = count{n: len(items), ok: true}
			return nil
		})
	}
	g.Wait()

	out := make(map[string]count, len(ids))
	for i, id := range ids {
		out[id] = counts[i]
	}
	return out
}
