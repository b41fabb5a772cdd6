// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

/*
Package api exposes the recommendation engine over HTTP using the chi router.

Endpoints:

	GET  /                              service status
	GET  /recommendation/health         liveness plus model and persistence stats
	POST /recommendation/recommend      rank candidate posts into a feed
	POST /recommendation/interaction    train the model on one interaction
	GET  /metrics                       Prometheus exposition

Request bodies are decoded with goccy/go-json and validated with
go-playground/validator through the validation package. Post objects are
loosely typed: every field the caller sends is echoed back, with score,
ncf_weight and is_serendipity added. top_n and exploration_factor fall
back to their defaults (20 and 0.15) when absent, null or 0; a negative
top_n yields an empty feed.

Errors use a common envelope:

	{
	  "status": "error",
	  "metadata": {"timestamp": "...", "request_id": "..."},
	  "error": {"code": "VALIDATION_ERROR", "message": "...", "details": {...}}
	}

Middleware order is request ID, real IP, panic recovery, CORS and
compression for every route; the recommendation group adds rate limiting
and Prometheus instrumentation.
*/
package api
