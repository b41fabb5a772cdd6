// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// EventRouter is the lifecycle of the event bus.
//
// Satisfied by *events.Bus. A watermill router runs once, so after Run
// returns the router cannot be restarted.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// EventRouterService runs the event router until shutdown.
type EventRouterService struct {
	router EventRouter
	name   string
}

// NewEventRouterService wraps router.
func NewEventRouterService(router EventRouter) *EventRouterService {
	return &EventRouterService{router: router, name: "event-router"}
}

// Serve implements suture.Service. If the router stops on its own the
// service asks not to be restarted, since Run cannot be called twice.
func (s *EventRouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if ctx.Err() != nil {
		if closeErr := s.router.Close(); closeErr != nil {
			return fmt.Errorf("close event router: %w", closeErr)
		}
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%w: event router stopped: %w", suture.ErrDoNotRestart, err)
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for supervisor logs.
func (s *EventRouterService) String() string {
	return s.name
}
