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
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/librarian/services/catalog/identifier"
	"github.com/AleutianAI/librarian/services/catalog/koha"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// LookupByIdentifiers finds catalog records for checksum-valid identifiers.
//
// Description:
//
//	ISBNs and ISSNs are tried first, each in both trailing-period variants
//	(the catalog indexes some identifiers with a trailing period), exact
//	match before contains match. The first variant that hits wins and the
//	lookup stops. Call numbers run last, searched against the isbn field
//	with extra spacing variants, because that is where this catalog indexes
//	them. Each returned record's MatchedOn names the field and strategy
//	that hit.
//
// Inputs:
//   - ctx: Context for the catalog calls.
//   - ids: The extracted identifier set.
//
// Outputs:
//   - []CatalogRecord: The matching records, identity-deduplicated.
//   - error: ErrNoValidIdentifier when ids is empty, ErrNoMatchingRecord
//     when every variant missed, or the catalog's error when a lookup
//     failed outright.
func (e *Engine) LookupByIdentifiers(ctx context.Context, ids identifier.Set) ([]CatalogRecord, error) {
	if ids.Empty() {
		return nil, ErrNoValidIdentifier
	}

	type fieldValues struct {
		field  string
		values []string
	}
	for _, fv := range []fieldValues{{"isbn", ids.ISBN}, {"issn", ids.ISSN}} {
		for _, value := range fv.values {
			for _, variant := range periodVariants(value) {
				books, strategy, err := e.identifierSearch(ctx, fv.field, variant)
				if err != nil {
					return nil, err
				}
				if len(books) > 0 {
					return tagMatches(books, fmt.Sprintf("%s (%s)", fv.field, strategy), variant), nil
				}
			}
		}
	}

	// Call numbers are indexed in the isbn field by this catalog; spacing
	// and punctuation vary by cataloger, so try a few shapes.
	for _, cn := range ids.CallNumbers {
		for _, variant := range callNumberVariants(cn) {
			books, strategy, err := e.identifierSearch(ctx, "isbn", variant)
			if err != nil {
				return nil, err
			}
			if len(books) > 0 {
				return tagMatches(books, fmt.Sprintf("isbn (callno-search, %s)", strategy), variant), nil
			}
		}
	}

	e.logger.Warn("identifier lookup matched no records",
		slog.Int("isbn", len(ids.ISBN)),
		slog.Int("issn", len(ids.ISSN)),
		slog.Int("call_numbers", len(ids.CallNumbers)),
	)
	return nil, ErrNoMatchingRecord
}

// identifierSearch tries exact then contains for one field/value, reporting
// which strategy hit so the caller can stamp MatchedOn once.
func (e *Engine) identifierSearch(ctx context.Context, field, value string) ([]koha.Book, string, error) {
	books, err := e.catalog.SearchByFieldExact(ctx, field, value)
	if err != nil {
		return nil, "", err
	}
	if len(books) > 0 {
		return books, "exact", nil
	}

	books, err = e.catalog.SearchByField(ctx, field, value)
	if err != nil {
		return nil, "", err
	}
	if len(books) > 0 {
		return books, "contains", nil
	}
	return nil, "", nil
}

// tagMatches converts and dedups raw hits, stamping MatchedOn.
func tagMatches(books []koha.Book, matchedOn, value string) []CatalogRecord {
	seen := make(map[string]struct{}, len(books))
	records := make([]CatalogRecord, 0, len(books))
	for _, b := range books {
		rec := recordFromBook(b)
		rec.MatchedOn = matchedOn + ": " + value
		key := rec.IdentityKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		records = append(records, rec)
	}
	return records
}

// periodVariants returns the value with and without a trailing period,
// original form first.
func periodVariants(value string) []string {
	if strings.HasSuffix(value, ".") {
		return []string{value, strings.TrimRight(value, ".")}
	}
	return []string{value, value + "."}
}

// callNumberVariants adds whitespace-collapsed and period-to-space shapes
// on top of the period variants, deduplicated preserving order.
func callNumberVariants(cn string) []string {
	variants := periodVariants(cn)
	variants = append(variants,
		strings.TrimSpace(whitespaceRE.ReplaceAllString(cn, " ")),
		strings.TrimSpace(strings.ReplaceAll(cn, ".", " ")),
	)

	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
