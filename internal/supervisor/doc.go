// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

/*
Package supervisor runs Loomfeed's long-lived services under a suture v4
supervisor tree.

Services are grouped into three layers that fail and restart independently:

	loomfeed
	├── data-layer
	│   └── SnapshotService      throttled and periodic model snapshots
	├── messaging-layer
	│   └── EventRouterService   interaction.recorded consumers
	└── api-layer
	    └── HTTPServerService    feed and interaction endpoints

Supervisor events (starts, failures, backoff) are written through sutureslog
to an slog.Logger, which main backs with the zerolog adapter from the logging
package:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(snapshotSvc)
	tree.AddMessagingService(services.NewEventRouterService(bus))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err = tree.Serve(ctx)

Canceling ctx stops every service. The snapshot service performs a final
flush on the way down, bounded by its own timeout.
*/
package supervisor
