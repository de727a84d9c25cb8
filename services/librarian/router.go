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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterOptions tunes middleware for the environment.
type RouterOptions struct {
	// RequestLogging enables gin's per-request access log. Off in
	// production, where the structured handler logs carry the signal.
	RequestLogging bool
}

// NewRouter assembles the gin engine with recovery, tracing, optional
// access logging, and all routes.
//
// Routes:
//
//	GET  /healthz              liveness
//	POST /v1/librarian/token   session tokens (503 when auth disabled)
//	POST /v1/librarian/query   the query pipeline (auth enforced when configured)
func NewRouter(h *Handlers, tokens *TokenService, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-librarian"))
	if opts.RequestLogging {
		router.Use(gin.Logger())
	}

	router.GET("/healthz", h.HandleHealth)

	v1 := router.Group("/v1/librarian")
	v1.POST("/token", h.HandleToken)

	authed := v1.Group("")
	authed.Use(AuthMiddleware(tokens))
	authed.POST("/query", h.HandleQuery)

	return router
}
