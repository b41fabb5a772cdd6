// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/loomfeed/internal/logging"
	"github.com/tomtom215/loomfeed/internal/metrics"
	"github.com/tomtom215/loomfeed/internal/recommend"
)

// Topics.
const (
	TopicInteractionRecorded = "interaction.recorded"
	TopicInteractionPoison   = "interaction.poison"
)

// Message metadata keys.
const (
	MetadataUserID    = "user_id"
	MetadataRequestID = "request_id"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// InteractionHandler consumes one recorded interaction.
type InteractionHandler func(ctx context.Context, ev recommend.InteractionEvent) error

// Bus is an in-process publish/subscribe bus for interaction events.
// It implements engine.InteractionPublisher.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	config BusConfig
	logger watermill.LoggerAdapter

	mu       sync.Mutex
	handlers map[string]struct{}
	closed   bool
}

// NewBus creates a bus and its router. Handlers must be added before Run.
func NewBus(cfg *BusConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg == nil {
		def := DefaultBusConfig()
		cfg = &def
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bus config: %w", err)
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.Buffer,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	b := &Bus{
		pubsub:   pubsub,
		router:   router,
		config:   *cfg,
		logger:   logger,
		handlers: make(map[string]struct{}),
	}

	// Added first so it wraps the retry loop and only sees final failures.
	if cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueue(pubsub, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		router.AddMiddleware(poison)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		router.AddMiddleware(throttle.Middleware)
	}

	// Innermost, so a panicking handler is retried like a failing one.
	router.AddMiddleware(middleware.Recoverer)

	if cfg.PoisonTopic != "" {
		router.AddConsumerHandler("poison-logger", cfg.PoisonTopic, pubsub, b.logPoisoned)
	}

	return b, nil
}

// PublishInteraction publishes ev on the interaction topic.
//
//nolint:gocritic // event is passed by value to match the publisher interface
func (b *Bus) PublishInteraction(ctx context.Context, ev recommend.InteractionEvent) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		metrics.RecordEventPublished(TopicInteractionRecorded, ErrBusClosed)
		return ErrBusClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.RecordEventPublished(TopicInteractionRecorded, err)
		return fmt.Errorf("marshal interaction: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(MetadataUserID, ev.UserID)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataRequestID, id)
	}

	err = b.pubsub.Publish(TopicInteractionRecorded, msg)
	metrics.RecordEventPublished(TopicInteractionRecorded, err)
	if err != nil {
		return fmt.Errorf("publish interaction: %w", err)
	}
	return nil
}

// HandleInteractions registers fn as a named consumer of interaction events.
// Every registered handler receives every event.
func (b *Bus) HandleInteractions(name string, fn InteractionHandler) error {
	if name == "" || fn == nil {
		return errors.New("handler name and function are required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	b.handlers[name] = struct{}{}

	b.router.AddConsumerHandler(name, TopicInteractionRecorded, b.pubsub, func(msg *message.Message) error {
		var ev recommend.InteractionEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("decode interaction %s: %w", msg.UUID, err)
		}

		ctx := msg.Context()
		if id := msg.Metadata.Get(MetadataRequestID); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		if err := fn(ctx, ev); err != nil {
			return err
		}
		metrics.RecordEventConsumed(TopicInteractionRecorded)
		return nil
	})
	return nil
}

func (b *Bus) logPoisoned(msg *message.Message) error {
	b.logger.Error("interaction handler gave up", errors.New(msg.Metadata.Get(middleware.ReasonForPoisonedKey)), watermill.LogFields{
		"message_uuid": msg.UUID,
		"handler":      msg.Metadata.Get(middleware.PoisonedHandlerKey),
		"user_id":      msg.Metadata.Get(MetadataUserID),
	})
	metrics.RecordEventConsumed(b.config.PoisonTopic)
	return nil
}

// Run starts the router and blocks until ctx is canceled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	if err := b.router.Run(ctx); err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	return nil
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (b *Bus) IsRunning() bool {
	return b.router.IsRunning()
}

// Close stops the router and the underlying pub/sub. Safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	var errs []error
	if err := b.router.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close router: %w", err))
	}
	if err := b.pubsub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pubsub: %w", err))
	}
	return errors.Join(errs...)
}
