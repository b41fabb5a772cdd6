// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/loomfeed/config.yaml",
	"/etc/loomfeed/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvPathEnvVar overrides the .env file path.
const DotEnvPathEnvVar = "DOTENV_PATH"

// defaultDotEnvPath is read when DOTENV_PATH is unset.
const defaultDotEnvPath = ".env"

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables, after the optional .env file
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadDotEnv reads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an
// error unless DOTENV_PATH names it explicitly.
func loadDotEnv() error {
	path := os.Getenv(DotEnvPathEnvVar)
	explicit := path != ""
	if !explicit {
		path = defaultDotEnvPath
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// sliceConfigPaths are parsed from comma-separated strings when set
// through the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower case) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_max_body_bytes":   "server.max_body_bytes",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Latent model
	"embedding_dim":          "recommend.model.embedding_dim",
	"ncf_learning_rate":      "recommend.model.learning_rate",
	"ncf_regularization":     "recommend.model.regularization",
	"ncf_min_interactions":   "recommend.model.min_interactions",
	"ncf_max_weight":         "recommend.model.max_weight",
	"ncf_max_users":          "recommend.model.max_users",
	"ncf_max_posts":          "recommend.model.max_posts",
	"recommend_seed":         "recommend.seed",
	"follow_boost":           "recommend.scoring.follow_boost",
	"trust_max_penalty":      "recommend.scoring.max_penalty",
	"diversity_threshold":    "recommend.feed.diversity_threshold",
	"serendipity_ratio":      "recommend.feed.serendipity_ratio",
	"feed_default_top_n":     "recommend.feed.default_top_n",
	"feed_max_top_n":         "recommend.feed.max_top_n",
	"feed_exploration":       "recommend.feed.default_exploration",
	"feed_max_candidates":    "recommend.feed.max_candidates",
	"score_precision":        "recommend.scoring.precision",
	"tag_default_confidence": "recommend.scoring.default_confidence",

	// Persistence
	"snapshot_backend":   "persistence.backend",
	"snapshot_dir":       "persistence.dir",
	"snapshot_keep":      "persistence.keep",
	"snapshot_key":       "persistence.key",
	"badger_path":        "persistence.badger_path",
	"snapshot_save_mode": "persistence.save_mode",
	"snapshot_breaker":   "persistence.breaker.enabled",

	// Snapshot service
	"snapshot_min_interval":   "snapshot.min_interval",
	"snapshot_flush_interval": "snapshot.flush_interval",
	"snapshot_save_timeout":   "snapshot.save_timeout",

	// Event bus
	"events_buffer":         "events.buffer",
	"events_retry_count":    "events.retry_max_retries",
	"events_retry_interval": "events.retry_initial_interval",
	"events_throttle":       "events.throttle_per_second",
	"events_close_timeout":  "events.close_timeout",
	"events_poison_topic":   "events.poison_topic",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable to a koanf path. Unmapped
// variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
