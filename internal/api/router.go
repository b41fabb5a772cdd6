// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/loomfeed/internal/middleware"
)

// compressionLevel is the gzip level used for responses.
const compressionLevel = 5

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil middleware config uses defaults.
func NewRouter(handler *Handler, config *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(config),
	}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(chimiddleware.Compress(compressionLevel, "application/json"))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(req.Context(), w, http.StatusNotFound, &APIError{
			Code:    CodeInvalidRequest,
			Message: "Route not found",
		}, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(req.Context(), w, http.StatusMethodNotAllowed, &APIError{
			Code:    CodeInvalidRequest,
			Message: "Method not allowed",
		}, nil)
	})

	r.Get("/", router.handler.Root)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/recommendation", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/health", router.handler.Health)
		r.Post("/recommend", router.handler.Recommend)
		r.Post("/interaction", router.handler.Interaction)
	})

	return r
}
