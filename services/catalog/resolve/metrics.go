// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Query Resolution
// =============================================================================

var (
	// resolutionsTotal counts topic resolutions by path.
	// Labels: path (passthrough, contextual, contextual_fallback)
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian",
		Subsystem: "resolve",
		Name:      "resolutions_total",
		Help:      "Total topic resolutions by resolution path",
	}, []string{"path"})

	// expansionsTotal counts keyword expansions by source.
	// Labels: source (cache, generator, fallback)
	expansionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librarian",
		Subsystem: "resolve",
		Name:      "expansions_total",
		Help:      "Total keyword expansions by source",
	}, []string{"source"})

	// expansionKeywords measures how many keywords an expansion produced.
	expansionKeywords = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "librarian",
		Subsystem: "resolve",
		Name:      "expansion_keywords",
		Help:      "Keywords produced per expansion",
		Buckets:   []float64{1, 2, 4, 6, 8, 10, 12},
	})
)
