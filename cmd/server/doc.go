// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

/*
Package main is the entry point for the Loomfeed server.

Loomfeed ranks candidate posts for a viewer by blending an online neural
collaborative filtering model with tag affinity, follow and trust signals,
then assembles a diverse feed with a share of serendipitous picks.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("loomfeed")
	├── DataSupervisor ("data-layer")
	│   └── Snapshot service (rate-limited, periodic and final saves)
	├── MessagingSupervisor ("messaging-layer")
	│   └── Interaction event bus (Watermill, async save mode only)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (Chi router)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file, .env and environment
 2. Logging: zerolog with JSON/console output modes
 3. Engine: latent model, scorer and feed assembler
 4. Persistence: file, badger or memory snapshot store behind a circuit breaker
 5. Snapshot restore: a dimension mismatch stops startup
 6. Supervisor Tree: snapshot service, event bus and HTTP server

# Endpoints

	GET  /                           service status
	GET  /metrics                    Prometheus metrics
	GET  /recommendation/health      liveness and engine statistics
	POST /recommendation/recommend   rank candidate posts
	POST /recommendation/interaction train on a viewer interaction

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains within
HTTP_SHUTDOWN_TIMEOUT, the snapshot service writes a final snapshot when
interactions are pending, and the badger store is closed last.
*/
package main
