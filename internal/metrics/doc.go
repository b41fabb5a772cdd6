// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry at package init through
promauto. Callers use the Record* helpers rather than touching collectors
directly so label sets stay consistent.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8001/metrics

# Available Metrics

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)

Feed Metrics:
  - recommend_requests_total: Feed requests (counter)
    Labels: mode (hybrid, content, empty)
  - recommend_duration_seconds: Scoring and assembly time (histogram)
  - recommend_candidates: Candidates per request (histogram)
  - recommend_feed_size: Posts returned per request (histogram)
  - recommend_serendipity_picks_total: Serendipity slots filled (counter)
  - recommend_ncf_weight: Requesting user's model blend weight (histogram)

Model Metrics:
  - ncf_interactions_total: Interactions trained on (counter)
    Labels: kind
  - ncf_update_duration_seconds: Online update latency (histogram)
  - ncf_user_embeddings, ncf_post_embeddings: Embeddings in memory (gauge)
  - ncf_tracked_users: Users with an interaction count (gauge)
  - ncf_embedding_evictions: Capacity evictions since start (gauge)

Snapshot Metrics:
  - snapshot_operations_total: Loads and saves (counter)
    Labels: operation (load, save), result (success, failure, absent)
  - snapshot_duration_seconds: Load and save latency (histogram)
    Labels: operation
  - snapshot_size_bytes: Encoded size of the last save (gauge)
  - snapshot_last_success_timestamp: Unix time of the last save (gauge)
  - snapshot_pending_interactions: Interactions not yet persisted (gauge)

Event Metrics:
  - events_published_total: Labels: topic, result
  - events_consumed_total: Labels: topic

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Labels: name, result (success, failure, rejected)
  - circuit_breaker_consecutive_failures: Labels: name
  - circuit_breaker_state_transitions_total: Labels: name, from_state, to_state

# Example Alerts

	groups:
	  - name: loomfeed
	    rules:
	      - alert: SnapshotSavesFailing
	        expr: increase(snapshot_operations_total{operation="save",result="failure"}[15m]) > 5
	        for: 5m
	      - alert: CircuitBreakerOpen
	        expr: circuit_breaker_state == 2
	        for: 2m

# Thread Safety

Prometheus collectors are safe for concurrent use.
*/
package metrics
