// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

// Package events carries recorded interactions from the request path to
// background consumers over an in-process Watermill bus.
//
// The engine publishes an interaction.recorded message after every model
// update; the snapshot service consumes them to decide when to persist the
// model. Handlers run behind the Watermill router middleware stack:
//
//	PoisonQueue -> Retry -> Throttle (optional) -> Recoverer -> handler
//
// A handler that keeps failing after all retries is acked and its message
// is republished on the poison topic, where it is logged and dropped. The
// bus is not durable: messages published with no running router are lost,
// so consumers must tolerate gaps.
//
// Usage:
//
//	bus, err := events.NewBus(nil, logging.NewWatermillLogger(logger, false))
//	err = bus.HandleInteractions("snapshot", svc.OnInteraction)
//	go bus.Run(ctx)
//	<-bus.Running()
//	eng.SetPublisher(bus)
package events
