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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Catalog Fan-out
// =============================================================================

var (
	// fanoutTotal counts fan-out runs by outcome.
	// Labels: outcome (ok, empty, unavailable, timeout, canceled)
	fanoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian",
		Subsystem: "search",
		Name:      "fanout_total",
		Help:      "Total catalog fan-out runs by outcome",
	}, []string{"outcome"})

	// keywordLookupsTotal counts per-keyword catalog lookups by result.
	// Labels: result (cache_hit, ok, error)
	keywordLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian",
		Subsystem: "search",
		Name:      "keyword_lookups_total",
		Help:      "Total per-keyword catalog lookups by result",
	}, []string{"result"})

	// fanoutDurationSeconds measures end-to-end fan-out latency.
	fanoutDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "librarian",
		Subsystem: "search",
		Name:      "fanout_duration_seconds",
		Help:      "End-to-end fan-out latency including aggregation",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 12},
	})

	// enrichmentsTotal counts quantity enrichments by strategy.
	// Labels: strategy (batch, per_id, none)
	enrichmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian",
		Subsystem: "search",
		Name:      "enrichments_total",
		Help:      "Total quantity enrichment runs by strategy",
	}, []string{"strategy"})
)
