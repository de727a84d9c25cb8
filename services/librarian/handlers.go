// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package librarian is the HTTP face of the catalog assistant. It classifies
// each patron message, dispatches to the catalog engine, asks the
// text-generation collaborator to phrase the reply, and persists the turn.
//
// A catalog or collaborator failure never becomes a 5xx on the query path:
// patrons get a polite deterministic message and the failure is logged. HTTP
// errors are reserved for problems with the request itself.
package librarian

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/librarian/services/catalog/search"
	"github.com/AleutianAI/librarian/services/history"
	"github.com/AleutianAI/librarian/services/intent"
	"github.com/AleutianAI/librarian/services/llm"
)

// =============================================================================
// Wire Types
// =============================================================================

// QueryRequest is the body of POST /v1/librarian/query.
type QueryRequest struct {
	// CardNumber identifies the patron for history. Ignored when the
	// request carries an authenticated token.
	CardNumber string `json:"card_number"`
	Query      string `json:"query" binding:"required"`
}

// QueryResponse is the reply envelope. Books is always present, empty when
// the path produced none, so clients never branch on a missing field.
type QueryResponse struct {
	Reply       string                 `json:"reply"`
	Intent      string                 `json:"intent"`
	Books       []search.CatalogRecord `json:"books"`
	Suggestions []string               `json:"suggestions"`
	RequestID   string                 `json:"request_id"`
}

// TokenRequest is the body of POST /v1/librarian/token.
type TokenRequest struct {
	CardNumber string `json:"card_number" binding:"required"`
}

// TokenResponse carries an issued session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// =============================================================================
// Handlers
// =============================================================================

// Config bounds the two catalog paths.
type Config struct {
	// SearchCap bounds distinct records on the search path. Zero uses the
	// engine default.
	SearchCap int

	// RecommendCap bounds distinct records on the recommend path.
	RecommendCap int
}

// Handlers owns the HTTP endpoints.
//
// Thread Safety: Handlers is safe for concurrent use; all state is either
// immutable after construction or internally synchronized.
type Handlers struct {
	engine     *search.Engine
	classifier *intent.Classifier
	gen        llm.Generator
	store      history.Store
	tokens     *TokenService
	cfg        Config
	logger     *slog.Logger
}

// NewHandlers wires the query pipeline. gen may be nil (replies fall back to
// canned text) and tokens may be nil (authentication disabled).
func NewHandlers(engine *search.Engine, classifier *intent.Classifier, gen llm.Generator, store history.Store, tokens *TokenService, cfg Config, logger *slog.Logger) *Handlers {
	if cfg.SearchCap <= 0 {
		cfg.SearchCap = 50
	}
	if cfg.RecommendCap <= 0 {
		cfg.RecommendCap = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		engine:     engine,
		classifier: classifier,
		gen:        gen,
		store:      store,
		tokens:     tokens,
		cfg:        cfg,
		logger:     logger,
	}
}

// HandleQuery handles POST /v1/librarian/query.
//
// Description:
//
//	The full pipeline for one patron message: load history, classify,
//	dispatch to the intent's catalog path, phrase the reply, persist the
//	turn. Catalog failure classes map to distinct patron-facing messages
//	with HTTP 200; only a malformed request is an HTTP error.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: Missing query
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleQuery"))

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	card := authenticatedCard(c)
	if card == "" {
		card = req.CardNumber
	}

	ctx := c.Request.Context()

	var turns []history.Turn
	if h.store != nil && card != "" {
		var err error
		turns, err = h.store.History(ctx, card)
		if err != nil {
			// A history failure degrades to a context-free answer.
			logger.Warn("history load failed", slog.String("error", err.Error()))
			turns = nil
		}
	}
	historyText := history.Format(turns)

	it := h.classifier.Classify(ctx, req.Query, historyText)
	logger.Info("query classified",
		slog.String("intent", it.String()),
		slog.Int("history_messages", len(turns)),
	)

	var reply string
	var books []search.CatalogRecord
	switch it {
	case intent.IdentifierLookup:
		reply, books = h.lookupByIdentifier(ctx, req.Query, logger)
	case intent.Search:
		reply, books = h.searchBooks(ctx, req.Query, turns, historyText, logger)
	case intent.Recommend:
		reply, books = h.recommendBooks(ctx, req.Query, turns, historyText, logger)
	default:
		reply = h.generate(ctx, generalInfoPrompt(historyText, req.Query), generalInfoFallback, logger)
	}

	if h.store != nil && card != "" {
		if err := h.store.SaveTurn(ctx, card, req.Query, reply); err != nil {
			logger.Warn("history save failed", slog.String("error", err.Error()))
		}
	}

	if books == nil {
		books = []search.CatalogRecord{}
	}
	c.JSON(http.StatusOK, QueryResponse{
		Reply:       reply,
		Intent:      it.String(),
		Books:       books,
		Suggestions: suggestionsFor(it, len(books) > 0),
		RequestID:   requestID,
	})
}

// lookupByIdentifier runs the identifier path and maps its error taxonomy to
// patron-facing text.
func (h *Handlers) lookupByIdentifier(ctx context.Context, query string, logger *slog.Logger) (string, []search.CatalogRecord) {
	ids := h.engine.ExtractIdentifiers(query)
	records, err := h.engine.LookupByIdentifiers(ctx, ids)
	switch {
	case errors.Is(err, search.ErrNoValidIdentifier):
		return noIdentifierReply, nil
	case errors.Is(err, search.ErrNoMatchingRecord):
		return bookNotFoundReply, nil
	case err != nil:
		logger.Error("identifier lookup failed", slog.String("error", err.Error()))
		return catalogUnavailableReply, nil
	}

	records = h.engine.EnrichQuantities(ctx, records)
	first := records[0]
	return specificBookFoundReply(first.Title, first.ISBN), records
}

// searchBooks runs resolve, expand, fan-out, and enrichment for the search
// path. Duplicates are dropped; a title surfacing under several keywords is
// not more findable for it.
func (h *Handlers) searchBooks(ctx context.Context, query string, turns []history.Turn, historyText string, logger *slog.Logger) (string, []search.CatalogRecord) {
	keywords := h.engine.ResolveAndExpand(ctx, query, turns)
	set, err := h.engine.SearchCatalog(ctx, keywords, search.SearchOptions{
		Cap:    h.cfg.SearchCap,
		Policy: search.Drop,
	})
	if reply, ok := catalogFailureReply(err, logger); !ok {
		return reply, nil
	}
	if set.Empty() {
		return emptySearchReply, nil
	}

	records := h.engine.EnrichQuantities(ctx, set.Records)
	reply := h.generate(ctx, searchBooksPrompt(keywords.Topic, historyText, query), searchIntroFallback, logger)
	return reply, records
}

// recommendBooks mirrors searchBooks with the recommend cap and duplicate
// counting, so a title surfacing under many keywords ranks as more relevant
// until real holdings data replaces the counts.
func (h *Handlers) recommendBooks(ctx context.Context, query string, turns []history.Turn, historyText string, logger *slog.Logger) (string, []search.CatalogRecord) {
	keywords := h.engine.ResolveAndExpand(ctx, query, turns)
	set, err := h.engine.SearchCatalog(ctx, keywords, search.SearchOptions{
		Cap:    h.cfg.RecommendCap,
		Policy: search.CountOccurrences,
	})
	if reply, ok := catalogFailureReply(err, logger); !ok {
		return reply, nil
	}
	if set.Empty() {
		return emptySearchReply, nil
	}

	records := h.engine.EnrichQuantities(ctx, set.Records)
	reply := h.generate(ctx, recommendBooksPrompt(keywords.Topic, historyText, query), recommendIntroFallback, logger)
	return reply, records
}

// catalogFailureReply maps a fan-out error to its patron message. ok is true
// when err is nil and the caller should proceed.
func catalogFailureReply(err error, logger *slog.Logger) (reply string, ok bool) {
	switch {
	case err == nil:
		return "", true
	case errors.Is(err, search.ErrCatalogTimeout):
		return catalogTimeoutReply, false
	default:
		logger.Error("catalog search failed", slog.String("error", err.Error()))
		return catalogUnavailableReply, false
	}
}

// generate phrases a reply through the collaborator, falling back to canned
// text so the query path never fails on phrasing.
func (h *Handlers) generate(ctx context.Context, prompt, fallback string, logger *slog.Logger) string {
	if h.gen == nil {
		return fallback
	}
	reply, err := h.gen.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("reply generation failed, using canned text", slog.String("error", err.Error()))
		return fallback
	}
	if reply == "" {
		return fallback
	}
	return reply
}

// HandleToken handles POST /v1/librarian/token.
//
// Description:
//
//	Issues a session token for a card number. Identity verification against
//	the ILS patron database sits in front of this service; this endpoint
//	only mints the session.
//
// Response:
//
//	200 OK: TokenResponse
//	400 Bad Request: Missing card number
//	503 Service Unavailable: Authentication not configured
func (h *Handlers) HandleToken(c *gin.Context) {
	if !h.tokens.Enabled() {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "authentication not configured",
			Code:  "AUTH_NOT_AVAILABLE",
		})
		return
	}

	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "card_number is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	token, err := h.tokens.Sign(req.CardNumber)
	if err != nil {
		h.logger.Error("token signing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to issue token",
			Code:  "TOKEN_SIGN_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
