// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - API endpoint latency and throughput
// - Feed assembly and scoring
// - Online model training and size
// - Snapshot persistence
// - In-process event delivery

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}, // Scoring is CPU bound and fast
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Feed Metrics
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of feed requests",
		},
		[]string{"mode"}, // "hybrid", "content", "empty"
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_duration_seconds",
			Help:    "Time to score and assemble one feed",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	RecommendCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_candidates",
			Help:    "Number of candidate posts per feed request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)

	FeedSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_feed_size",
			Help:    "Number of posts returned per feed",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50, 100, 250, 500},
		},
	)

	SerendipityPicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_serendipity_picks_total",
			Help: "Total number of posts placed in serendipity slots",
		},
	)

	NCFBlendWeight = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_ncf_weight",
			Help:    "Latent model blend weight of the requesting user",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.65},
		},
	)

	// Model Metrics
	InteractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ncf_interactions_total",
			Help: "Total number of interactions trained on",
		},
		[]string{"kind"},
	)

	InteractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ncf_update_duration_seconds",
			Help:    "Duration of one online model update",
			Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
		},
	)

	ModelUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ncf_user_embeddings",
			Help: "Number of user embeddings held in memory",
		},
	)

	ModelPosts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ncf_post_embeddings",
			Help: "Number of post embeddings held in memory",
		},
	)

	ModelTrackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ncf_tracked_users",
			Help: "Number of users with an interaction count",
		},
	)

	ModelEvictions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ncf_embedding_evictions",
			Help: "Embeddings evicted by the capacity bound since start",
		},
	)

	// Snapshot Metrics
	SnapshotOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_operations_total",
			Help: "Total number of snapshot loads and saves",
		},
		[]string{"operation", "result"}, // operation: "load", "save"; result: "success", "failure", "absent"
	)

	SnapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_duration_seconds",
			Help:    "Duration of snapshot loads and saves",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	SnapshotBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_size_bytes",
			Help: "Encoded size of the last saved snapshot",
		},
	)

	SnapshotLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_last_success_timestamp",
			Help: "Unix timestamp of the last successful snapshot save",
		},
	)

	SnapshotPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_pending_interactions",
			Help: "Interactions recorded since the last successful save",
		},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published on the in-process bus",
		},
		[]string{"topic", "result"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of events consumed from the in-process bus",
		},
		[]string{"topic"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommend records one feed request.
// mode is "hybrid" when the latent model contributed, "content" otherwise
// and "empty" when there were no candidates.
func RecordRecommend(mode string, duration time.Duration, candidates, feedSize, serendipity int, ncfWeight float64) {
	RecommendRequests.WithLabelValues(mode).Inc()
	RecommendDuration.Observe(duration.Seconds())
	RecommendCandidates.Observe(float64(candidates))
	FeedSize.Observe(float64(feedSize))
	SerendipityPicks.Add(float64(serendipity))
	NCFBlendWeight.Observe(ncfWeight)
}

// RecordInteraction records one online model update.
func RecordInteraction(kind string, duration time.Duration) {
	InteractionsTotal.WithLabelValues(kind).Inc()
	InteractionDuration.Observe(duration.Seconds())
}

// UpdateModelGauges publishes the current model size.
func UpdateModelGauges(users, posts, trackedUsers int, evictions int64) {
	ModelUsers.Set(float64(users))
	ModelPosts.Set(float64(posts))
	ModelTrackedUsers.Set(float64(trackedUsers))
	ModelEvictions.Set(float64(evictions))
}

// RecordSnapshotLoad records a snapshot load. absent reports that the store
// had no snapshot under the key.
func RecordSnapshotLoad(duration time.Duration, absent bool, err error) {
	SnapshotDuration.WithLabelValues("load").Observe(duration.Seconds())
	switch {
	case err != nil:
		SnapshotOperations.WithLabelValues("load", "failure").Inc()
	case absent:
		SnapshotOperations.WithLabelValues("load", "absent").Inc()
	default:
		SnapshotOperations.WithLabelValues("load", "success").Inc()
	}
}

// RecordSnapshotSave records a snapshot save of size bytes.
func RecordSnapshotSave(duration time.Duration, size int, err error) {
	SnapshotDuration.WithLabelValues("save").Observe(duration.Seconds())
	if err != nil {
		SnapshotOperations.WithLabelValues("save", "failure").Inc()
		return
	}
	SnapshotOperations.WithLabelValues("save", "success").Inc()
	SnapshotBytes.Set(float64(size))
	SnapshotLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordEventPublished records one publish attempt on topic.
func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}

// RecordEventConsumed records one delivered event on topic.
func RecordEventConsumed(topic string) {
	EventsConsumed.WithLabelValues(topic).Inc()
}

// CircuitBreakerStateValue converts a breaker state name to its gauge value.
func CircuitBreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
