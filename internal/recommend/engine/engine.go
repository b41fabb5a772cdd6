// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

// Package engine wires the latent model, scorer, assembler and persistence
// into the two operations the service exposes: building a feed and
// recording an interaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/loomfeed/internal/metrics"
	"github.com/tomtom215/loomfeed/internal/recommend"
	"github.com/tomtom215/loomfeed/internal/recommend/algorithms"
	"github.com/tomtom215/loomfeed/internal/recommend/reranking"
	"github.com/tomtom215/loomfeed/internal/recommend/scoring"
	"github.com/tomtom215/loomfeed/internal/recommend/storage"
)

var (
	// ErrTooManyCandidates is returned when a feed request exceeds the
	// configured candidate limit.
	ErrTooManyCandidates = errors.New("too many candidate posts")

	// ErrInvalidInteraction is returned for interactions without a user or post.
	ErrInvalidInteraction = errors.New("invalid interaction")
)

// InteractionPublisher hands recorded interactions to asynchronous consumers.
type InteractionPublisher interface {
	PublishInteraction(ctx context.Context, ev recommend.InteractionEvent) error
}

// Engine builds feeds and trains the latent model online.
// It is safe for concurrent use.
type Engine struct {
	config *recommend.Config
	logger zerolog.Logger

	model     *algorithms.NCF
	scorer    *scoring.Scorer
	assembler *reranking.Assembler

	// Persistence; both optional and set before serving
	persister *storage.Persister[algorithms.Snapshot]
	publisher InteractionPublisher

	saveMu      sync.Mutex
	lastSave    atomic.Pointer[time.Time]
	lastSaveErr atomic.Pointer[string]
	pending     atomic.Int64

	requestCount     atomic.Int64
	interactionCount atomic.Int64
	errorCount       atomic.Int64
}

// Stats summarizes engine activity for health output.
type Stats struct {
	Model         algorithms.NCFStats `json:"model"`
	Requests      int64               `json:"requests"`
	Interactions  int64               `json:"interactions"`
	Errors        int64               `json:"errors"`
	Pending       int64               `json:"pending_interactions"`
	Backend       string              `json:"persistence_backend,omitempty"`
	LastSave      *time.Time          `json:"last_save,omitempty"`
	LastSaveError string              `json:"last_save_error,omitempty"`
}

// New creates an engine with a fresh model.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg *recommend.Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = recommend.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger = logger.With().Str("component", "recommend").Logger()
	model := algorithms.NewNCF(cfg.Model, cfg.Seed, logger)

	return &Engine{
		config:    cfg,
		logger:    logger,
		model:     model,
		scorer:    scoring.NewScorer(cfg.Scoring, model, cfg.Seed),
		assembler: reranking.NewAssembler(cfg.Feed),
	}, nil
}

// SetPersister enables snapshot loading and saving.
func (e *Engine) SetPersister(p *storage.Persister[algorithms.Snapshot]) {
	e.persister = p
}

// SetPublisher makes RecordInteraction publish events instead of saving
// synchronously.
func (e *Engine) SetPublisher(p InteractionPublisher) {
	e.publisher = p
}

// Model returns the latent model.
func (e *Engine) Model() *algorithms.NCF {
	return e.model
}

// Config returns a copy of the configuration.
func (e *Engine) Config() *recommend.Config {
	return e.config.Clone()
}

// Recommend scores the candidate posts and assembles a feed.
//
// Scoring happens twice: pass 1 ranks every candidate without repetition
// decay, and once the personalized slice is chosen the remaining candidates
// are scored again with the labels it contains. The returned items are
// sorted by score descending.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req recommend.FeedRequest) ([]recommend.FeedItem, error) {
	start := time.Now()
	e.requestCount.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Posts) == 0 {
		metrics.RecordRecommend("empty", time.Since(start), 0, 0, 0, 0)
		return []recommend.FeedItem{}, nil
	}
	if limit := e.config.Feed.MaxCandidates; limit > 0 && len(req.Posts) > limit {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCandidates, len(req.Posts), limit)
	}

	topN := e.topN(req.TopN)
	exploration := math.Max(0, math.Min(1, req.Exploration))
	if math.IsNaN(req.Exploration) {
		exploration = 0
	}

	logger := e.logger.With().Str("user_id", req.UserID).Logger()

	affinity := scoring.BuildAffinity(req.History)

	var alpha float64
	if req.UserID != "" {
		alpha = e.model.Weight(req.UserID)
	}

	input := func(i int, seen recommend.SeenTags) scoring.Input {
		return scoring.Input{
			UserID:      req.UserID,
			Post:        req.Posts[i],
			Affinity:    affinity,
			Seen:        seen,
			Exploration: exploration,
			Followed:    req.Followed,
			Trust:       req.Trust,
		}
	}

	candidates := make([]reranking.Candidate, len(req.Posts))
	for i := range req.Posts {
		candidates[i] = reranking.Candidate{
			Tags:  req.Posts[i].Tags,
			Score: e.scorer.Score(input(i, nil)).Score,
		}
	}

	rescore := func(i int, seen recommend.SeenTags) float64 {
		return e.scorer.Score(input(i, seen)).Score
	}
	selections := e.assembler.Assemble(candidates, topN, rescore)

	feed := make([]recommend.FeedItem, len(selections))
	serendipity := 0
	for i, sel := range selections {
		feed[i] = recommend.FeedItem{
			Post:        req.Posts[sel.Index],
			Score:       sel.Score,
			NCFWeight:   alpha,
			Serendipity: sel.Serendipity,
		}
		if sel.Serendipity {
			serendipity++
		}
	}

	mode := "content"
	if alpha > 0 {
		mode = "hybrid"
	}
	metrics.RecordRecommend(mode, time.Since(start), len(req.Posts), len(feed), serendipity, alpha)

	logger.Debug().
		Int("candidates", len(req.Posts)).
		Int("returned", len(feed)).
		Int("serendipity", serendipity).
		Float64("ncf_weight", alpha).
		Dur("latency", time.Since(start)).
		Msg("feed assembled")

	return feed, nil
}

// topN applies the default and the cap. Zero means unset; negative values
// pass through and produce an empty feed.
func (e *Engine) topN(requested int) int {
	if requested == 0 {
		requested = e.config.Feed.DefaultTopN
	}
	if limit := e.config.Feed.MaxTopN; limit > 0 && requested > limit {
		requested = limit
	}
	return requested
}

// RecordInteraction trains the model on one interaction and returns the
// user's updated blend weight. Unseen users and posts are created.
//
// Persistence is best effort: with a publisher set the event is handed off
// for an asynchronous save, otherwise the snapshot is saved inline. Neither
// failure is returned to the caller.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func (e *Engine) RecordInteraction(ctx context.Context, ev recommend.InteractionEvent) (float64, error) {
	if ev.UserID == "" || ev.PostID == "" {
		e.errorCount.Add(1)
		return 0, fmt.Errorf("%w: user_id and post_id are required", ErrInvalidInteraction)
	}

	start := time.Now()
	e.model.Update(ev.UserID, ev.PostID, ev.Type, ev.Negatives)
	metrics.RecordInteraction(ev.Type.String(), time.Since(start))

	e.interactionCount.Add(1)
	metrics.SnapshotPending.Set(float64(e.pending.Add(1)))
	e.updateModelGauges()

	weight := e.model.Weight(ev.UserID)

	e.logger.Info().
		Str("user_id", ev.UserID).
		Str("post_id", ev.PostID).
		Str("interaction_type", ev.Type.String()).
		Int("negatives", len(ev.Negatives)).
		Int64("interactions", e.model.Interactions(ev.UserID)).
		Float64("ncf_weight", weight).
		Msg("interaction recorded")

	switch {
	case e.publisher != nil:
		if err := e.publisher.PublishInteraction(ctx, ev); err != nil {
			e.logger.Warn().Err(err).Msg("failed to publish interaction event, snapshot deferred to next flush")
		}
	case e.persister != nil:
		if err := e.SaveSnapshot(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("snapshot save failed, continuing in memory")
		}
	}

	return weight, nil
}

// Pending returns the number of interactions recorded since the last
// successful save.
func (e *Engine) Pending() int64 {
	return e.pending.Load()
}

// SaveSnapshot persists the current model state. It is a no-op without a
// persister. Concurrent calls are serialized.
func (e *Engine) SaveSnapshot(ctx context.Context) error {
	if e.persister == nil {
		return nil
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	pending := e.pending.Load()
	snap := e.model.Snapshot()

	size, err := e.persister.Save(ctx, snap)
	if err != nil {
		msg := err.Error()
		e.lastSaveErr.Store(&msg)
		return err
	}

	now := snap.SavedAt
	e.lastSave.Store(&now)
	e.lastSaveErr.Store(nil)
	metrics.SnapshotPending.Set(float64(e.pending.Add(-pending)))

	e.logger.Debug().
		Str("backend", e.persister.Backend()).
		Str("key", e.persister.Key()).
		Int("bytes", size).
		Int64("interactions", pending).
		Msg("snapshot saved")
	return nil
}

// LoadSnapshot restores the model from the persister.
//
// A missing snapshot or an unreachable or corrupt store is logged and
// reported as (false, nil): the service starts fresh in memory. A snapshot
// whose shape does not match the configured model is returned as an error
// wrapping algorithms.ErrSnapshotMismatch and must stop startup.
func (e *Engine) LoadSnapshot(ctx context.Context) (bool, error) {
	if e.persister == nil {
		return false, nil
	}

	snap, err := e.persister.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		e.logger.Info().
			Str("backend", e.persister.Backend()).
			Str("key", e.persister.Key()).
			Msg("no saved model found, starting fresh")
		return false, nil
	case err != nil:
		e.logger.Warn().Err(err).
			Str("backend", e.persister.Backend()).
			Msg("could not load saved model, starting fresh in memory")
		return false, nil
	}

	if err := e.model.Restore(snap); err != nil {
		return false, fmt.Errorf("restore %s: %w", e.persister.Key(), err)
	}
	e.updateModelGauges()
	return true, nil
}

// Stats returns engine counters and model size.
func (e *Engine) Stats() Stats {
	s := Stats{
		Model:        e.model.Stats(),
		Requests:     e.requestCount.Load(),
		Interactions: e.interactionCount.Load(),
		Errors:       e.errorCount.Load(),
		Pending:      e.pending.Load(),
		LastSave:     e.lastSave.Load(),
	}
	if e.persister != nil {
		s.Backend = e.persister.Backend()
	}
	if msg := e.lastSaveErr.Load(); msg != nil {
		s.LastSaveError = *msg
	}
	return s
}

func (e *Engine) updateModelGauges() {
	st := e.model.Stats()
	metrics.UpdateModelGauges(st.Users, st.Posts, st.TrackedUsers, st.Evictions)
}
