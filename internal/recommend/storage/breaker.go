// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/loomfeed/internal/metrics"
)

// BreakerSettings configures the circuit breaker around a store.
type BreakerSettings struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32

	// Interval resets failure counts while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings returns settings suited to snapshot saves, which
// happen at most a few times per second.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 3,
	}
}

// BreakerStore wraps a BlobStore with a circuit breaker. After repeated
// failures, calls fail fast with gobreaker.ErrOpenState until the timeout
// elapses. ErrNotFound is a normal answer and never counts as a failure.
//
// The circuit breaker uses real time for its interval and timeout; tests
// exercise it through consecutive failures rather than the clock.
type BreakerStore struct {
	store BlobStore
	cb    *gobreaker.CircuitBreaker[[]byte]
	name  string
}

// NewBreakerStore wraps store.
func NewBreakerStore(store BlobStore, settings BreakerSettings, logger zerolog.Logger) *BreakerStore {
	name := "snapshot-" + store.Name()
	logger = logger.With().Str("component", "snapshot_breaker").Str("backend", store.Name()).Logger()

	// Initialize circuit breaker state metrics
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= threshold
			if shouldTrip {
				logger.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("opening snapshot store circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("snapshot store circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.CircuitBreakerStateValue(to.String()))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey)
		},
	})

	return &BreakerStore{store: store, cb: cb, name: name}
}

// Name returns the wrapped backend name.
func (b *BreakerStore) Name() string {
	return b.store.Name()
}

// State returns the breaker state: "closed", "half-open" or "open".
func (b *BreakerStore) State() string {
	return b.cb.State().String()
}

// Load loads through the breaker.
func (b *BreakerStore) Load(ctx context.Context, key string) ([]byte, error) {
	return b.execute(func() ([]byte, error) {
		return b.store.Load(ctx, key)
	})
}

// Save saves through the breaker.
func (b *BreakerStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := b.execute(func() ([]byte, error) {
		return nil, b.store.Save(ctx, key, data)
	})
	return err
}

// Unwrap returns the wrapped store.
func (b *BreakerStore) Unwrap() BlobStore {
	return b.store
}

func (b *BreakerStore) execute(fn func() ([]byte, error)) ([]byte, error) {
	result, err := b.cb.Execute(fn)

	switch {
	case err == nil || errors.Is(err, ErrNotFound):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		counts := b.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
	}
	return result, err
}

var _ BlobStore = (*BreakerStore)(nil)
