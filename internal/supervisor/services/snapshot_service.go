// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/loomfeed/internal/recommend"
)

// SnapshotEngine is the persistence side of the recommendation engine.
type SnapshotEngine interface {
	// SaveSnapshot persists the current model.
	SaveSnapshot(ctx context.Context) error

	// Pending is the number of updates not yet persisted.
	Pending() int64
}

// SnapshotServiceConfig configures snapshot scheduling.
type SnapshotServiceConfig struct {
	// MinInterval is the minimum time between event-triggered saves.
	// Zero saves after every interaction.
	MinInterval time.Duration `koanf:"min_interval"`

	// FlushInterval is how often unsaved updates are flushed regardless of
	// events. Zero disables periodic flushing.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// SaveTimeout bounds a single save, including the final one on shutdown.
	SaveTimeout time.Duration `koanf:"save_timeout"`
}

// DefaultSnapshotServiceConfig returns production defaults.
func DefaultSnapshotServiceConfig() SnapshotServiceConfig {
	return SnapshotServiceConfig{
		MinInterval:   5 * time.Second,
		FlushInterval: time.Minute,
		SaveTimeout:   30 * time.Second,
	}
}

// SnapshotService persists the model in the background.
//
// Every interaction event requests a save; requests are coalesced and rate
// limited to one per MinInterval. Anything the limiter skips is picked up by
// the periodic flush, and whatever is still pending at shutdown is written
// once more before Serve returns.
type SnapshotService struct {
	engine  SnapshotEngine
	config  SnapshotServiceConfig
	limiter *rate.Limiter
	wake    chan struct{}
	logger  zerolog.Logger
	name    string
}

// NewSnapshotService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSnapshotService(engine SnapshotEngine, cfg SnapshotServiceConfig, logger zerolog.Logger) *SnapshotService {
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &SnapshotService{
		engine:  engine,
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
		wake:    make(chan struct{}, 1),
		logger:  logger.With().Str("service", "snapshot").Logger(),
		name:    "snapshot-service",
	}
}

// OnInteraction requests a save. It never blocks and never fails, so it can
// be registered directly as an event handler.
//
//nolint:gocritic // signature matches events.InteractionHandler
func (s *SnapshotService) OnInteraction(_ context.Context, _ recommend.InteractionEvent) error {
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Serve implements suture.Service.
func (s *SnapshotService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("min_interval", s.config.MinInterval).
		Dur("flush_interval", s.config.FlushInterval).
		Msg("snapshot service starting")

	var flush <-chan time.Time
	if s.config.FlushInterval > 0 {
		ticker := time.NewTicker(s.config.FlushInterval)
		defer ticker.Stop()
		flush = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.finalFlush()
			return ctx.Err()

		case <-s.wake:
			if !s.limiter.Allow() {
				s.logger.Debug().Msg("snapshot throttled, deferring to periodic flush")
				continue
			}
			s.save(ctx, "event")

		case <-flush:
			if s.engine.Pending() > 0 {
				s.save(ctx, "periodic")
			}
		}
	}
}

func (s *SnapshotService) save(ctx context.Context, trigger string) {
	saveCtx, cancel := context.WithTimeout(ctx, s.config.SaveTimeout)
	defer cancel()

	start := time.Now()
	if err := s.engine.SaveSnapshot(saveCtx); err != nil {
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("snapshot save failed, model stays in memory")
		return
	}
	s.logger.Debug().
		Str("trigger", trigger).
		Dur("duration", time.Since(start)).
		Msg("snapshot saved")
}

// finalFlush uses a fresh context since the serving one is already canceled.
func (s *SnapshotService) finalFlush() {
	pending := s.engine.Pending()
	if pending <= 0 {
		s.logger.Info().Msg("snapshot service stopped, nothing pending")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.SaveTimeout)
	defer cancel()

	if err := s.engine.SaveSnapshot(ctx); err != nil {
		s.logger.Error().Err(err).Int64("pending", pending).Msg("final snapshot failed, updates lost")
		return
	}
	s.logger.Info().Int64("pending", pending).Msg("final snapshot saved")
}

// String implements fmt.Stringer for supervisor logs.
func (s *SnapshotService) String() string {
	return s.name
}
