// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package events

import (
	"errors"
	"time"
)

// BusConfig configures the in-process event bus.
type BusConfig struct {
	// Buffer is the per-subscriber output channel size.
	Buffer int64 `koanf:"buffer"`

	// CloseTimeout is how long Close waits for running handlers.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// Retry configuration for failing handlers.
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`

	// ThrottlePerSecond limits handler throughput, 0 disables throttling.
	ThrottlePerSecond int64 `koanf:"throttle_per_second"`

	// PoisonTopic receives messages whose handler failed every retry.
	// Empty disables the poison queue.
	PoisonTopic string `koanf:"poison_topic"`
}

// DefaultBusConfig returns production defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Buffer:               256,
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
		RetryMultiplier:      2.0,
		PoisonTopic:          TopicInteractionPoison,
	}
}

// Validate checks the configuration.
func (c *BusConfig) Validate() error {
	if c.Buffer < 0 {
		return errors.New("buffer must not be negative")
	}
	if c.CloseTimeout <= 0 {
		return errors.New("close timeout must be positive")
	}
	if c.RetryMaxRetries < 0 {
		return errors.New("retry max retries must not be negative")
	}
	if c.RetryMultiplier < 1 {
		return errors.New("retry multiplier must be at least 1")
	}
	if c.ThrottlePerSecond < 0 {
		return errors.New("throttle must not be negative")
	}
	if c.PoisonTopic == TopicInteractionRecorded {
		return errors.New("poison topic must differ from the interaction topic")
	}
	return nil
}
