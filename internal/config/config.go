// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/loomfeed/internal/events"
	"github.com/tomtom215/loomfeed/internal/recommend"
	"github.com/tomtom215/loomfeed/internal/recommend/storage"
	"github.com/tomtom215/loomfeed/internal/supervisor"
	"github.com/tomtom215/loomfeed/internal/supervisor/services"
)

// Persistence backends.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Snapshot save modes.
const (
	// SaveModeAsync hands interactions to the event bus; the snapshot
	// service saves off the request path.
	SaveModeAsync = "async"

	// SaveModeSync saves after every interaction inside the request.
	SaveModeSync = "sync"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every setting
//  2. Config File: optional YAML file
//  3. Environment Variables: explicit overrides
type Config struct {
	Server      ServerConfig                   `koanf:"server"`
	Logging     LoggingConfig                  `koanf:"logging"`
	Recommend   recommend.Config               `koanf:"recommend"`
	Persistence PersistenceConfig              `koanf:"persistence"`
	Events      events.BusConfig               `koanf:"events"`
	Snapshot    services.SnapshotServiceConfig `koanf:"snapshot"`
	Supervisor  supervisor.TreeConfig          `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST, HTTP_PORT: listen address (default: 0.0.0.0:8000)
//   - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT
//   - HTTP_SHUTDOWN_TIMEOUT: graceful shutdown timeout (default: 10s)
//   - HTTP_MAX_BODY_BYTES: request body limit (default: 10MiB)
//   - CORS_ORIGINS: comma-separated allowed origins (default: *)
//   - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns host:port for http.Server.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// PersistenceConfig selects where model snapshots are kept.
//
// Environment Variables:
//   - SNAPSHOT_BACKEND: file, badger, memory, none (default: file)
//   - SNAPSHOT_DIR: directory for the file backend
//   - SNAPSHOT_KEEP: file versions kept per key (default: 3)
//   - SNAPSHOT_KEY: snapshot name (default: loom_ncf_v1)
//   - BADGER_PATH: directory for the badger backend
//   - SNAPSHOT_SAVE_MODE: async or sync (default: async)
type PersistenceConfig struct {
	Backend    string        `koanf:"backend"`
	Dir        string        `koanf:"dir"`
	Keep       int           `koanf:"keep"`
	Key        string        `koanf:"key"`
	BadgerPath string        `koanf:"badger_path"`
	SaveMode   string        `koanf:"save_mode"`
	Breaker    BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker around the snapshot store.
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	MaxRequests         uint32        `koanf:"max_requests"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
}

// Settings converts the configuration for storage.NewBreakerStore.
func (b *BreakerConfig) Settings() storage.BreakerSettings {
	return storage.BreakerSettings{
		MaxRequests:         b.MaxRequests,
		Interval:            b.Interval,
		Timeout:             b.Timeout,
		ConsecutiveFailures: b.ConsecutiveFailures,
	}
}

// Async reports whether saves go through the event bus.
func (p *PersistenceConfig) Async() bool {
	return p.SaveMode == SaveModeAsync
}

// Enabled reports whether snapshots are persisted at all.
func (p *PersistenceConfig) Enabled() bool {
	return p.Backend != BackendNone
}

// defaultConfig returns a Config with every default applied. Defaults are
// loaded first, then overridden by the config file and environment.
func defaultConfig() *Config {
	breaker := storage.DefaultBreakerSettings()

	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      10 << 20,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Recommend: *recommend.DefaultConfig(),
		Persistence: PersistenceConfig{
			Backend:    BackendFile,
			Dir:        "/data/loomfeed/snapshots",
			Keep:       3,
			Key:        "loom_ncf_v1",
			BadgerPath: "/data/loomfeed/badger",
			SaveMode:   SaveModeAsync,
			Breaker: BreakerConfig{
				Enabled:             true,
				MaxRequests:         breaker.MaxRequests,
				Interval:            breaker.Interval,
				Timeout:             breaker.Timeout,
				ConsecutiveFailures: breaker.ConsecutiveFailures,
			},
		},
		Events:     events.DefaultBusConfig(),
		Snapshot:   services.DefaultSnapshotServiceConfig(),
		Supervisor: supervisor.DefaultTreeConfig(),
	}
}

// Default returns the built-in configuration without reading any source.
func Default() *Config {
	return defaultConfig()
}

// Load reads configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	cfg, err := LoadWithKoanf()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
