// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

/*
Package config loads Loomfeed configuration with Koanf v2.

Sources are layered, later layers overriding earlier ones:

 1. Built-in defaults (structs provider)
 2. An optional YAML file: CONFIG_PATH, config.yaml, config.yml,
    /etc/loomfeed/config.yaml or /etc/loomfeed/config.yml
 3. Environment variables, mapped explicitly (HTTP_PORT -> server.port)

A .env file in the working directory, or the file named by DOTENV_PATH,
is read into the process environment before step 3. Variables that are
already set are not overwritten.

Example config.yaml:

	server:
	  port: 8000
	  cors_origins: ["https://app.example"]
	recommend:
	  model:
	    embedding_dim: 32
	    min_interactions: 5
	  feed:
	    serendipity_ratio: 0.1
	persistence:
	  backend: badger
	  badger_path: /data/loomfeed/badger
	  save_mode: async

Unknown environment variables are ignored, so the process environment
cannot inject arbitrary keys. Config is immutable after Load and safe for
concurrent reads.
*/
package config
