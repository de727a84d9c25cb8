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
	"github.com/AleutianAI/librarian/services/catalog/koha"
)

// DedupPolicy decides what happens when a second record with an
// already-seen identity arrives.
type DedupPolicy int

const (
	// Drop discards duplicate identities. Plain search.
	Drop DedupPolicy = iota

	// CountOccurrences increments the retained record's quantity counter
	// per duplicate. A cheap availability proxy used before enrichment;
	// the quantity enricher is authoritative when it runs and overwrites
	// these counts.
	CountOccurrences
)

// defaultAggregateCap bounds a result set when the caller passes none.
const defaultAggregateCap = 50

// Aggregate merges concatenated raw catalog entries into an identity-unique
// ordered result set.
//
// Description:
//
//	First occurrence of an identity wins and is retained verbatim (text
//	fields trimmed of stray punctuation, empties shown as the sentinel).
//	Later occurrences are dropped or counted per policy. The cap is a soft
//	bound on distinct identities: once reached, no new identity is
//	admitted, but under CountOccurrences the remaining entries still count
//	toward already-retained records.
//
// Inputs:
//   - raw: Raw entries in keyword order.
//   - policy: Duplicate handling.
//   - limit: Maximum distinct records. Non-positive uses 50.
//
// Outputs:
//   - *AggregatedResultSet: Never nil; possibly empty.
func Aggregate(raw []koha.Book, policy DedupPolicy, limit int) *AggregatedResultSet {
	if limit <= 0 {
		limit = defaultAggregateCap
	}

	index := make(map[string]int, len(raw))
	records := make([]CatalogRecord, 0, min(limit, len(raw)))

	for _, b := range raw {
		rec := recordFromBook(b)
		if rec.Title == NotAvailable && rec.ISBN == NotAvailable {
			// Nothing to show and nothing to dedup on.
			continue
		}

		key := rec.IdentityKey()
		if at, seen := index[key]; seen {
			if policy == CountOccurrences && !records[at].Enriched {
				records[at].QuantityAvailable++
			}
			continue
		}
		if len(records) >= limit {
			continue
		}

		if policy == CountOccurrences && rec.QuantityAvailable == 0 {
			rec.QuantityAvailable = 1
		}
		index[key] = len(records)
		records = append(records, rec)
	}

	return &AggregatedResultSet{Records: records}
}
