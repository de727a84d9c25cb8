// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search is the catalog fan-out and aggregation engine: it takes a
// keyword set, queries the catalog concurrently under one deadline, merges
// the per-keyword results into a deduplicated capped result set, and
// enriches each record with live copy counts.
//
// Failure classification is the heart of the package. "Every keyword
// failed", "the deadline fired first", and "everything worked but nothing
// matched" each produce a distinct outcome, because the caller phrases a
// different reply for each.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/AleutianAI/librarian/services/catalog/koha"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrCatalogUnavailable means every keyword lookup in a fan-out failed.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrCatalogTimeout means the fan-out deadline elapsed before all
	// lookups completed. Partial results are discarded, not returned.
	ErrCatalogTimeout = errors.New("catalog search timed out")

	// ErrNoValidIdentifier means the identifier path was requested but the
	// text contained no checksum-valid identifier.
	ErrNoValidIdentifier = errors.New("no valid identifier in query")

	// ErrNoMatchingRecord means an identifier lookup ran but matched no
	// catalog record.
	ErrNoMatchingRecord = errors.New("no matching records found")
)

// =============================================================================
// Records
// =============================================================================

// NotAvailable is the sentinel shown for fields the catalog left empty. It
// is a display value, never an identity: dedup treats it the same as a
// missing field.
const NotAvailable = "Not Available"

// isbnSentinels are ISBN field values that name no real identifier,
// including the stringified nulls some catalogs serialize. Compared
// lowercase.
var isbnSentinels = map[string]struct{}{
	"":                 {},
	"none":             {},
	"null":             {},
	"unknown":          {},
	"not available":    {},
	"no isbn":          {},
	"isbn unavailable": {},
}

// CatalogRecord is one bibliographic result as surfaced to the caller.
type CatalogRecord struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	ISBN      string `json:"isbn"`
	Publisher string `json:"publisher"`
	Year      string `json:"year"`
	BiblioID  string `json:"biblio_id,omitempty"`

	// QuantityAvailable is the live copy count once the enricher has run.
	// Before enrichment it may hold the duplicate-occurrence counter, a
	// cheap availability proxy only.
	QuantityAvailable int `json:"quantity_available"`

	// Enriched is true once QuantityAvailable reflects live item data.
	Enriched bool `json:"-"`

	// MatchedOn records which field and strategy produced an identifier
	// hit, e.g. "isbn (exact)". Identifier path only.
	MatchedOn string `json:"matched_on,omitempty"`
}

// IdentityKey computes the dedup identity for a record: the ISBN when it
// names a real identifier, else title|author. Case-insensitive.
func (r CatalogRecord) IdentityKey() string {
	isbn := strings.ToLower(strings.TrimSpace(r.ISBN))
	if _, sentinel := isbnSentinels[isbn]; !sentinel {
		return "isbn::" + isbn
	}
	return "ta::" + strings.ToLower(strings.TrimSpace(r.Title)) + "|" + strings.ToLower(strings.TrimSpace(r.Author))
}

// AggregatedResultSet is an ordered, identity-unique, size-capped sequence
// of catalog records.
type AggregatedResultSet struct {
	Records []CatalogRecord
}

// Empty reports whether the set holds no records.
func (s *AggregatedResultSet) Empty() bool {
	return s == nil || len(s.Records) == 0
}

// recordFromBook converts a raw catalog book into a CatalogRecord, trimming
// stray punctuation the catalog carries in MARC-derived fields and
// substituting the display sentinel for empty fields.
func recordFromBook(b koha.Book) CatalogRecord {
	return CatalogRecord{
		Title:             cleanField(b.Title),
		Author:            cleanField(b.Author),
		ISBN:              cleanField(b.ISBN),
		Publisher:         cleanField(b.Publisher),
		Year:              cleanField(b.Year),
		BiblioID:          strings.TrimSpace(b.BiblioID),
		QuantityAvailable: b.Quantity,
	}
}

// cleanField trims whitespace and trailing MARC punctuation, substituting
// the sentinel when nothing remains or the catalog serialized a null as
// "None"/"null".
func cleanField(v string) string {
	v = strings.Trim(strings.TrimSpace(v), " ,;:/")
	switch strings.ToLower(v) {
	case "", "none", "null":
		return NotAvailable
	}
	return v
}

// =============================================================================
// Catalog Contract
// =============================================================================

// Catalog is the slice of the catalog client this engine consumes. Narrow
// on purpose: tests stub it with a few functions.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Catalog interface {
	// SearchByField performs a contains match against one catalog field.
	SearchByField(ctx context.Context, field, term string) ([]koha.Book, error)

	// SearchByFieldExact performs an exact match against one catalog field.
	SearchByFieldExact(ctx context.Context, field, value string) ([]koha.Book, error)

	// ItemsForBiblio returns the items attached to one biblio record.
	ItemsForBiblio(ctx context.Context, biblioID string) ([]koha.Item, error)

	// ItemsForBiblios returns items for many biblio records grouped by id,
	// or koha.ErrBatchUnsupported when no batch endpoint exists.
	ItemsForBiblios(ctx context.Context, biblioIDs []string) (map[string][]koha.Item, error)
}
