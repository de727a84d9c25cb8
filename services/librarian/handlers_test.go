// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package librarian

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/librarian/services/catalog/cache"
	"github.com/AleutianAI/librarian/services/catalog/koha"
	"github.com/AleutianAI/librarian/services/catalog/resolve"
	"github.com/AleutianAI/librarian/services/catalog/search"
	"github.com/AleutianAI/librarian/services/history"
	"github.com/AleutianAI/librarian/services/intent"
	"github.com/AleutianAI/librarian/services/llm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubCatalog satisfies search.Catalog with overridable functions.
type stubCatalog struct {
	searchFn func(ctx context.Context, field, term string) ([]koha.Book, error)
	exactFn  func(ctx context.Context, field, value string) ([]koha.Book, error)
	itemsFn  func(ctx context.Context, biblioID string) ([]koha.Item, error)
}

func (s *stubCatalog) SearchByField(ctx context.Context, field, term string) ([]koha.Book, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, field, term)
}

func (s *stubCatalog) SearchByFieldExact(ctx context.Context, field, value string) ([]koha.Book, error) {
	if s.exactFn == nil {
		return nil, nil
	}
	return s.exactFn(ctx, field, value)
}

func (s *stubCatalog) ItemsForBiblio(ctx context.Context, biblioID string) ([]koha.Item, error) {
	if s.itemsFn == nil {
		return nil, nil
	}
	return s.itemsFn(ctx, biblioID)
}

func (s *stubCatalog) ItemsForBiblios(ctx context.Context, biblioIDs []string) (map[string][]koha.Item, error) {
	return nil, koha.ErrBatchUnsupported
}

// routingGenerator answers expansion prompts with keywords and everything
// else with a fixed reply, mimicking one collaborator serving both roles.
func routingGenerator(keywords, reply string) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Expand the user's topic") {
			return keywords, nil
		}
		return reply, nil
	})
}

func newTestRouter(cat search.Catalog, gen llm.Generator, store history.Store, tokens *TokenService) *gin.Engine {
	resolver := resolve.NewResolver(gen, nil)
	expander := resolve.NewExpander(gen, cache.New[string, resolve.KeywordSet](64, time.Hour), 12, nil)
	engine := search.NewEngine(cat, resolver, expander, search.Options{}, nil)
	classifier := intent.NewClassifier(gen, nil)
	h := NewHandlers(engine, classifier, gen, store, tokens, Config{}, nil)
	return NewRouter(h, tokens, RouterOptions{})
}

func postQuery(t *testing.T, router *gin.Engine, body QueryRequest, headers map[string]string) (*httptest.ResponseRecorder, QueryResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/librarian/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp QueryResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHandleQuery_IdentifierLookupFound(t *testing.T) {
	cat := &stubCatalog{
		exactFn: func(ctx context.Context, field, value string) ([]koha.Book, error) {
			if field == "isbn" && value == "0306406152" {
				return []koha.Book{{Title: "The Theory of Everything", ISBN: "0306406152", BiblioID: "42"}}, nil
			}
			return nil, nil
		},
		itemsFn: func(ctx context.Context, biblioID string) ([]koha.Item, error) {
			return []koha.Item{{ItemID: "1", BiblioID: biblioID}, {ItemID: "2", BiblioID: biblioID}}, nil
		},
	}
	router := newTestRouter(cat, routingGenerator("", "unused"), history.NewMemoryStore(), nil)

	w, resp := postQuery(t, router, QueryRequest{Query: "do you have 0306406152?"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "book_lookup_isbn", resp.Intent)
	assert.Contains(t, resp.Reply, "The Theory of Everything")
	assert.Contains(t, resp.Reply, "0306406152")
	require.Len(t, resp.Books, 1)
	assert.Equal(t, 2, resp.Books[0].QuantityAvailable)
	assert.NotEmpty(t, resp.RequestID)
}

func TestHandleQuery_IdentifierLookupNotFound(t *testing.T) {
	router := newTestRouter(&stubCatalog{}, routingGenerator("", "unused"), history.NewMemoryStore(), nil)

	w, resp := postQuery(t, router, QueryRequest{Query: "do you have 0306406152?"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bookNotFoundReply, resp.Reply)
	assert.Empty(t, resp.Books)
	assert.Equal(t, defaultSuggestions, resp.Suggestions)
}

func TestHandleQuery_SearchPath(t *testing.T) {
	cat := &stubCatalog{
		searchFn: func(ctx context.Context, field, term string) ([]koha.Book, error) {
			if term == "whales" {
				return []koha.Book{{Title: "Moby Dick", Author: "Melville", ISBN: "9780142437247"}}, nil
			}
			return nil, nil
		},
	}
	router := newTestRouter(cat, routingGenerator("whales, ocean, marine", "Here are whale books!"), history.NewMemoryStore(), nil)

	w, resp := postQuery(t, router, QueryRequest{Query: "find books about whales"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "book_search", resp.Intent)
	assert.Equal(t, "Here are whale books!", resp.Reply)
	require.Len(t, resp.Books, 1)
	assert.Equal(t, "Moby Dick", resp.Books[0].Title)
	assert.Equal(t, searchSuggestions, resp.Suggestions)
}

func TestHandleQuery_SearchEmptyResults(t *testing.T) {
	router := newTestRouter(&stubCatalog{}, routingGenerator("nothing, nada", "unused"), history.NewMemoryStore(), nil)

	w, resp := postQuery(t, router, QueryRequest{Query: "find books about unobtainium"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, emptySearchReply, resp.Reply)
	assert.Empty(t, resp.Books)
}

func TestHandleQuery_CatalogUnavailableIsPoliteNot500(t *testing.T) {
	cat := &stubCatalog{
		searchFn: func(ctx context.Context, field, term string) ([]koha.Book, error) {
			return nil, errors.New("connection refused")
		},
	}
	router := newTestRouter(cat, routingGenerator("whales, ocean", "unused"), history.NewMemoryStore(), nil)

	w, resp := postQuery(t, router, QueryRequest{Query: "find books about whales"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, catalogUnavailableReply, resp.Reply)
	assert.Empty(t, resp.Books)
}

func TestHandleQuery_GeneralInfoFallbackWhenCollaboratorFails(t *testing.T) {
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("provider down")
	})
	router := newTestRouter(&stubCatalog{}, gen, history.NewMemoryStore(), nil)

	w, resp := postQuery(t, router, QueryRequest{Query: "hello there"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "general_info", resp.Intent)
	assert.Equal(t, generalInfoFallback, resp.Reply)
}

func TestHandleQuery_MissingQueryIs400(t *testing.T) {
	router := newTestRouter(&stubCatalog{}, routingGenerator("", ""), history.NewMemoryStore(), nil)

	w, _ := postQuery(t, router, QueryRequest{CardNumber: "C123"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQuery_PersistsTurn(t *testing.T) {
	store := history.NewMemoryStore()
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Happy to help with library questions!", nil
	})
	router := newTestRouter(&stubCatalog{}, gen, store, nil)

	w, _ := postQuery(t, router, QueryRequest{CardNumber: "C123", Query: "hello there"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	turns, err := store.History(context.Background(), "C123")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, history.RoleUser, turns[0].Role)
	assert.Equal(t, "hello there", turns[0].Content)
	assert.Equal(t, history.RoleAssistant, turns[1].Role)
}

func TestAuth_EnforcedWhenConfigured(t *testing.T) {
	tokens := &TokenService{Secret: "test-secret", Issuer: "librarian-test", Duration: time.Hour}
	store := history.NewMemoryStore()
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Hi!", nil
	})
	router := newTestRouter(&stubCatalog{}, gen, store, tokens)

	// No token: rejected.
	w, _ := postQuery(t, router, QueryRequest{Query: "hello there"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Mint a token via the endpoint.
	payload, _ := json.Marshal(TokenRequest{CardNumber: "C777"})
	req := httptest.NewRequest(http.MethodPost, "/v1/librarian/token", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var tok TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	// Authenticated query binds history to the claim's card, not the body's.
	w, _ = postQuery(t, router, QueryRequest{CardNumber: "someone-else", Query: "hello there"},
		map[string]string{"Authorization": "Bearer " + tok.Token})
	require.Equal(t, http.StatusOK, w.Code)

	turns, err := store.History(context.Background(), "C777")
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	other, err := store.History(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := &TokenService{Secret: "s1", Issuer: "librarian", Duration: time.Hour}

	token, err := svc.Sign("C42")
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "C42", claims.CardNumber)
	assert.Equal(t, "librarian", claims.Issuer)

	// A different secret must reject the token.
	other := &TokenService{Secret: "s2", Issuer: "librarian", Duration: time.Hour}
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestHandleToken_DisabledIs503(t *testing.T) {
	router := newTestRouter(&stubCatalog{}, routingGenerator("", ""), history.NewMemoryStore(), nil)

	payload, _ := json.Marshal(TokenRequest{CardNumber: "C1"})
	req := httptest.NewRequest(http.MethodPost, "/v1/librarian/token", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&stubCatalog{}, routingGenerator("", ""), history.NewMemoryStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
