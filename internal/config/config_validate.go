// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tomtom215/loomfeed/internal/recommend/storage"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var (
	validLogLevels  = []string{"trace", "debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "console"}
	validBackends   = []string{BackendFile, BackendBadger, BackendMemory, BackendNone}
	validSaveModes  = []string{SaveModeAsync, SaveModeSync}
)

// Validate checks every section.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateRecommend,
		c.validatePersistence,
		c.validateEvents,
		c.validateSnapshot,
		c.validateSupervisor,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) validateServer() error {
	s := &c.Server
	if s.Port < 1 || s.Port > 65535 {
		return invalid("HTTP_PORT must be between 1 and 65535, got %d", s.Port)
	}
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 || s.IdleTimeout <= 0 {
		return invalid("HTTP read, write and idle timeouts must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		return invalid("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	if s.MaxBodyBytes <= 0 {
		return invalid("HTTP_MAX_BODY_BYTES must be positive")
	}
	if len(s.CORSOrigins) == 0 {
		return invalid("CORS_ORIGINS must list at least one origin")
	}
	if !s.RateLimitDisabled {
		if s.RateLimitRequests <= 0 {
			return invalid("RATE_LIMIT_REQUESTS must be positive unless DISABLE_RATE_LIMIT is set")
		}
		if s.RateLimitWindow <= 0 {
			return invalid("RATE_LIMIT_WINDOW must be positive unless DISABLE_RATE_LIMIT is set")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		return invalid("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.Logging.Format)) {
		return invalid("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", "))
	}
	return nil
}

func (c *Config) validateRecommend() error {
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validatePersistence() error {
	p := &c.Persistence
	if !slices.Contains(validBackends, p.Backend) {
		return invalid("SNAPSHOT_BACKEND must be one of: %s", strings.Join(validBackends, ", "))
	}
	if !slices.Contains(validSaveModes, p.SaveMode) {
		return invalid("SNAPSHOT_SAVE_MODE must be one of: %s", strings.Join(validSaveModes, ", "))
	}
	if !p.Enabled() {
		return nil
	}
	if err := storage.ValidateKey(p.Key); err != nil {
		return invalid("SNAPSHOT_KEY: %v", err)
	}

	switch p.Backend {
	case BackendFile:
		if p.Dir == "" {
			return invalid("SNAPSHOT_DIR is required for the file backend")
		}
		if p.Keep < 1 {
			return invalid("SNAPSHOT_KEEP must be at least 1, got %d", p.Keep)
		}
	case BackendBadger:
		if p.BadgerPath == "" {
			return invalid("BADGER_PATH is required for the badger backend")
		}
	}

	if b := &p.Breaker; b.Enabled {
		if b.ConsecutiveFailures == 0 {
			return invalid("persistence.breaker.consecutive_failures must be positive")
		}
		if b.Timeout <= 0 {
			return invalid("persistence.breaker.timeout must be positive")
		}
	}
	return nil
}

func (c *Config) validateEvents() error {
	if err := c.Events.Validate(); err != nil {
		return invalid("events: %v", err)
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	s := &c.Snapshot
	if s.MinInterval < 0 {
		return invalid("SNAPSHOT_MIN_INTERVAL must not be negative")
	}
	if s.FlushInterval <= 0 {
		return invalid("SNAPSHOT_FLUSH_INTERVAL must be positive")
	}
	if s.SaveTimeout <= 0 {
		return invalid("SNAPSHOT_SAVE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	s := &c.Supervisor
	if s.FailureThreshold <= 0 || s.FailureDecay <= 0 {
		return invalid("supervisor failure threshold and decay must be positive")
	}
	if s.FailureBackoff <= 0 || s.ShutdownTimeout <= 0 {
		return invalid("supervisor backoff and shutdown timeout must be positive")
	}
	return nil
}
