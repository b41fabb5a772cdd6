// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

/*
Package services adapts Loomfeed components to suture's Serve pattern.

  - HTTPServerService runs an *http.Server and drains it on shutdown.
  - EventRouterService runs the in-process event router.
  - SnapshotService persists the latent model: throttled on interaction
    events, periodically on a ticker and once more on shutdown.

Each service depends on a small interface rather than the concrete
component, so tests drive it with fakes.
*/
package services
