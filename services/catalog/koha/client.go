// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package koha is the client for the external library catalog service (the
// ILS REST API). It is the only place in the repo that knows the catalog's
// wire format; everything above it works with Book and Item values.
//
// The catalog is slow and rate-limited, so every request goes through a
// sliding-window limiter and carries a per-request timeout. Failures are
// returned, never swallowed: classification into unavailable/timeout/empty
// happens in the fan-out layer, which sees all keywords at once.
package koha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// =============================================================================
// Wire Types
// =============================================================================

// Book is one bibliographic record as returned by the catalog search API.
// Missing fields are empty strings; sentinel substitution ("Not Available")
// is the aggregator's job, not the client's.
type Book struct {
	Title     string
	Author    string
	ISBN      string
	Publisher string
	Year      string
	BiblioID  string
	// Quantity is the catalog's own copy count when it reports one. Usually
	// zero; authoritative quantities come from the items endpoints.
	Quantity int
}

// Item is one physical copy attached to a bibliographic record. The engine
// only counts items, so the fields are minimal.
type Item struct {
	ItemID   string
	BiblioID string
	Barcode  string
}

// bookRecord is the raw catalog JSON shape for a biblio.
type bookRecord struct {
	Title         string      `json:"title"`
	Author        string      `json:"author"`
	ISBN          string      `json:"isbn"`
	Publisher     string      `json:"publisher"`
	CopyrightDate json.Number `json:"copyright_date"`
	BiblioID      json.Number `json:"biblio_id"`
	Quantity      int         `json:"quantity"`
}

// itemRecord is the raw catalog JSON shape for an item.
type itemRecord struct {
	ItemID   json.Number `json:"item_id"`
	BiblioID json.Number `json:"biblio_id"`
	Barcode  string      `json:"external_id"`
}

// APIError is a structured error payload from the catalog service. It is
// distinct from transport errors so the fan-out cache can memoize it: a
// catalog that answers 503 for a keyword will answer 503 again within the
// cache window, and re-asking helps nobody.
type APIError struct {
	Status  int
	Message string
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("catalog API status %d: %s", e.Status, e.Message)
}

// ErrBatchUnsupported is returned by ItemsForBiblios when no batch items
// endpoint is configured; the caller degrades to per-biblio lookups.
var ErrBatchUnsupported = fmt.Errorf("catalog batch items endpoint not configured")

// =============================================================================
// Client
// =============================================================================

// Config holds the catalog connection settings.
type Config struct {
	// BaseURL is the biblios search endpoint, e.g. https://ils.example/api/v1/biblios.
	BaseURL string

	// ItemsURL is the flat items endpoint used for batch quantity lookups.
	// Empty disables the batch path; ItemsForBiblios then returns
	// ErrBatchUnsupported and callers fall back to per-biblio requests.
	ItemsURL string

	// Username and Password authenticate via HTTP Basic auth.
	Username string
	Password string

	// Timeout bounds each individual request. Zero uses 8s, which matches
	// the catalog's observed p99 under load.
	Timeout time.Duration

	// RequestsPerMinute bounds the request rate. Zero disables limiting.
	RequestsPerMinute int
}

// Client talks to the catalog REST API.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *RateLimiter
	authHeader string
	logger     *slog.Logger
}

// NewClient creates a catalog client.
//
// Inputs:
//   - cfg: Connection settings. BaseURL must be non-empty.
//   - logger: Logger for request diagnostics. May be nil.
//
// Outputs:
//   - *Client: The configured client.
//   - error: Non-nil if BaseURL is empty.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	token := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    NewRateLimiter(cfg.RequestsPerMinute),
		authHeader: "Basic " + token,
		logger:     logger,
	}, nil
}

// NewClientFromEnv creates a catalog client from KOHA_API_URL, KOHA_ITEMS_URL,
// KOHA_USERNAME, and KOHA_PASSWORD.
func NewClientFromEnv(logger *slog.Logger) (*Client, error) {
	baseURL := os.Getenv("KOHA_API_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("KOHA_API_URL not set")
	}
	return NewClient(Config{
		BaseURL:  baseURL,
		ItemsURL: os.Getenv("KOHA_ITEMS_URL"),
		Username: os.Getenv("KOHA_USERNAME"),
		Password: os.Getenv("KOHA_PASSWORD"),
	}, logger)
}

// =============================================================================
// Search
// =============================================================================

// SearchByField performs a contains match of term against one catalog field.
//
// Description:
//
//	Encodes the catalog's JSON query syntax: ?q={"<field>":{"-like":"%<term>%"}}.
//	An empty result list is a successful empty response, not an error.
//
// Inputs:
//   - ctx: Context for cancellation; the per-request timeout applies beneath it.
//   - field: Catalog field name ("title", "isbn", "issn", "author").
//   - term: The search term, unescaped.
//
// Outputs:
//   - []Book: Matching records in catalog order. Never nil on success.
//   - error: *APIError for structured catalog errors, other errors for
//     transport/timeout failures.
func (c *Client) SearchByField(ctx context.Context, field, term string) ([]Book, error) {
	q := map[string]any{field: map[string]string{"-like": "%" + term + "%"}}
	return c.searchQuery(ctx, q)
}

// SearchByFieldExact performs an exact match of value against one catalog field.
//
// The identifier lookup path tries exact before contains: an exact hit on a
// full ISBN is authoritative, while contains rescues records indexed with
// embedded qualifiers ("0306406152 (pbk.)").
func (c *Client) SearchByFieldExact(ctx context.Context, field, value string) ([]Book, error) {
	return c.searchQuery(ctx, map[string]any{field: value})
}

func (c *Client) searchQuery(ctx context.Context, q map[string]any) ([]Book, error) {
	rawQ, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog query: %w", err)
	}
	reqURL := c.cfg.BaseURL + "?q=" + url.QueryEscape(string(rawQ))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var records []bookRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	books := make([]Book, 0, len(records))
	for _, r := range records {
		books = append(books, Book{
			Title:     strings.TrimSpace(r.Title),
			Author:    strings.TrimSpace(r.Author),
			ISBN:      strings.TrimSpace(r.ISBN),
			Publisher: strings.TrimSpace(r.Publisher),
			Year:      r.CopyrightDate.String(),
			BiblioID:  r.BiblioID.String(),
			Quantity:  r.Quantity,
		})
	}
	return books, nil
}

// =============================================================================
// Items
// =============================================================================

// ItemsForBiblio returns the physical items attached to one biblio record.
//
// Outputs:
//   - []Item: The items; empty when the record has no copies.
//   - error: Non-nil on transport or catalog failure.
func (c *Client) ItemsForBiblio(ctx context.Context, biblioID string) ([]Item, error) {
	reqURL := c.cfg.BaseURL + "/" + url.PathEscape(biblioID) + "/items"
	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return decodeItems(body)
}

// ItemsForBiblios returns items for many biblio records in one request,
// grouped by biblio id.
//
// Description:
//
//	Uses the flat items endpoint with an -in query over biblio_id. Ids with
//	no items are absent from the returned map; the enricher treats absence
//	as quantity zero. Returns ErrBatchUnsupported when no items endpoint is
//	configured so the caller can degrade to per-biblio requests.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - biblioIDs: Distinct biblio ids. An empty slice returns an empty map.
//
// Outputs:
//   - map[string][]Item: Items grouped by biblio id.
//   - error: ErrBatchUnsupported, *APIError, or a transport error.
func (c *Client) ItemsForBiblios(ctx context.Context, biblioIDs []string) (map[string][]Item, error) {
	if c.cfg.ItemsURL == "" {
		return nil, ErrBatchUnsupported
	}
	if len(biblioIDs) == 0 {
		return map[string][]Item{}, nil
	}

	q := map[string]any{"biblio_id": map[string]any{"-in": biblioIDs}}
	rawQ, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal items query: %w", err)
	}
	reqURL := c.cfg.ItemsURL + "?q=" + url.QueryEscape(string(rawQ))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	items, err := decodeItems(body)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]Item, len(biblioIDs))
	for _, it := range items {
		grouped[it.BiblioID] = append(grouped[it.BiblioID], it)
	}
	return grouped, nil
}

func decodeItems(body []byte) ([]Item, error) {
	var records []itemRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode items response: %w", err)
	}
	items := make([]Item, 0, len(records))
	for _, r := range records {
		items = append(items, Item{
			ItemID:   r.ItemID.String(),
			BiblioID: r.BiblioID.String(),
			Barcode:  r.Barcode,
		})
	}
	return items, nil
}

// =============================================================================
// Transport
// =============================================================================

// get performs one authenticated GET with rate limiting and unified error
// handling.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("catalog rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("catalog request failed",
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}

	c.logger.Debug("catalog request complete",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: truncate(string(body), 200)}
	}
	return body, nil
}

// truncate shortens s for error display.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
