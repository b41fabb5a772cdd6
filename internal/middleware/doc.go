// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

/*
Package middleware provides HTTP middleware shared by every route.

  - RequestID: accepts or generates an X-Request-ID and stores it in the
    request context for structured logging.
  - PrometheusMetrics: records request counts, latency and in-flight
    requests, labelled by the chi route pattern so path parameters cannot
    explode label cardinality.

Both follow the chi middleware signature:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.With(middleware.PrometheusMetrics).Post("/recommendation/recommend", h.Recommend)
*/
package middleware
