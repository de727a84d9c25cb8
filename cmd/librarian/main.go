// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command librarian starts the library catalog assistant API server.
//
// The server answers conversational patron queries against a Koha-compatible
// catalog: keyword search, recommendations, ISBN/ISSN/call-number lookups,
// and general library questions, with per-patron conversation history.
//
// Usage:
//
//	go run ./cmd/librarian
//	go run ./cmd/librarian -config /etc/librarian/config.yaml -debug
//
// Required environment:
//
//	KOHA_API_URL        catalog biblios endpoint
//	KOHA_USERNAME       catalog basic-auth user
//	KOHA_PASSWORD       catalog basic-auth password
//
// Optional environment:
//
//	OPENROUTER_API_KEY  enables collaborator-phrased replies
//	LIBRARIAN_JWT_SECRET enables patron session tokens
//	HISTORY_DB_DIR      BadgerDB path for persistent history
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/healthz
//
//	# Ask for books
//	curl -X POST http://localhost:8080/v1/librarian/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"card_number": "C123", "query": "find books about whales"}'
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/librarian/services/catalog/cache"
	"github.com/AleutianAI/librarian/services/catalog/config"
	"github.com/AleutianAI/librarian/services/catalog/koha"
	"github.com/AleutianAI/librarian/services/catalog/resolve"
	"github.com/AleutianAI/librarian/services/catalog/search"
	"github.com/AleutianAI/librarian/services/history"
	"github.com/AleutianAI/librarian/services/intent"
	"github.com/AleutianAI/librarian/services/librarian"
	"github.com/AleutianAI/librarian/services/llm"
	badgerstore "github.com/AleutianAI/librarian/services/storage/badger"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	traceStdout := flag.Bool("trace-stdout", false, "Export OTel spans to stdout")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if *traceStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			slog.Warn("stdout trace exporter unavailable", slog.String("error", err.Error()))
		} else {
			tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
			otel.SetTracerProvider(tp)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					slog.Warn("tracer provider shutdown failed", slog.String("error", err.Error()))
				}
			}()
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	catalog, err := koha.NewClient(koha.Config{
		BaseURL:           cfg.Catalog.BaseURL,
		ItemsURL:          cfg.Catalog.ItemsURL,
		Username:          cfg.Catalog.Username,
		Password:          cfg.Catalog.Password,
		Timeout:           cfg.CatalogTimeout(),
		RequestsPerMinute: cfg.Catalog.RequestsPerMinute,
	}, logger)
	if err != nil {
		slog.Error("Failed to create catalog client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The collaborator is optional. Without it the resolver passes queries
	// through, expansion uses the token fallback, and replies are canned.
	var gen llm.Generator
	if client, err := llm.NewOpenRouterClient(logger); err != nil {
		slog.Warn("Text generation provider not configured, using deterministic fallbacks",
			slog.String("error", err.Error()))
	} else {
		gen = client
		slog.Info("Text generation provider connected", slog.String("model", cfg.LLM.Model))
	}

	store, historyDB := openHistoryStore(logger)
	defer func() {
		if historyDB != nil {
			if err := historyDB.Close(); err != nil {
				slog.Warn("Failed to close history store", slog.String("error", err.Error()))
			}
		}
	}()

	resolver := resolve.NewResolver(gen, logger)
	expander := resolve.NewExpander(gen,
		cache.New[string, resolve.KeywordSet](cfg.ExpansionCache.Capacity, cfg.ExpansionCache.TTL()),
		cfg.Engine.MaxKeywords, logger)
	engine := search.NewEngine(catalog, resolver, expander, search.Options{
		FanoutKeywords:       cfg.Engine.FanoutKeywords,
		FanoutConcurrency:    cfg.Engine.FanoutConcurrency,
		FanoutDeadline:       cfg.FanoutDeadline(),
		CatalogCacheCapacity: cfg.CatalogCache.Capacity,
		CatalogCacheTTL:      cfg.CatalogCache.TTL(),
	}, logger)
	classifier := intent.NewClassifier(gen, logger)

	var tokens *librarian.TokenService
	if secret := os.Getenv("LIBRARIAN_JWT_SECRET"); secret != "" {
		tokens = &librarian.TokenService{
			Secret:   secret,
			Issuer:   "aleutian-librarian",
			Duration: 24 * time.Hour,
		}
		slog.Info("Patron authentication enabled")
	} else {
		slog.Warn("LIBRARIAN_JWT_SECRET not set, authentication disabled")
	}

	handlers := librarian.NewHandlers(engine, classifier, gen, store, tokens, librarian.Config{
		SearchCap:    cfg.Engine.SearchResultCap,
		RecommendCap: cfg.Engine.RecommendResultCap,
	}, logger)
	router := librarian.NewRouter(handlers, tokens, librarian.RouterOptions{RequestLogging: *debug})

	if cfg.Server.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("Metrics listener starting", slog.String("address", cfg.Server.MetricsAddr))
			if err := http.ListenAndServe(cfg.Server.MetricsAddr, mux); err != nil {
				slog.Warn("Metrics listener stopped", slog.String("error", err.Error()))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down librarian server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Graceful shutdown failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("Starting librarian server", slog.String("address", cfg.Server.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openHistoryStore opens the persistent history store, degrading to an
// in-memory store when BadgerDB is unavailable. Returns the DB handle for
// shutdown, nil in the in-memory case.
func openHistoryStore(logger *slog.Logger) (history.Store, *badgerstore.DB) {
	dir := os.Getenv("HISTORY_DB_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			dir = filepath.Join(home, ".aleutian", "librarian", "history")
		}
	}
	if dir == "" {
		slog.Warn("No history directory resolvable, conversation history is in-memory only")
		return history.NewMemoryStore(), nil
	}

	db, err := badgerstore.Open(badgerstore.Options{Path: dir, Logger: logger})
	if err != nil {
		slog.Warn("History BadgerDB unavailable, conversation history is in-memory only",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)
		return history.NewMemoryStore(), nil
	}

	slog.Info("History BadgerDB opened", slog.String("path", dir))
	return history.NewBadgerStore(db, 0, logger), db
}
