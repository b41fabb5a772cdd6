// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

// Package scoring implements the content and hybrid scoring stages.
//
// The tag score rewards labels the viewer has shown affinity for, grants a
// small novelty bonus to unseen labels and decays labels that already
// appear in the feed being assembled. The hybrid score blends it with the
// latent model, adds a follow boost and applies a bounded trust penalty.
// Every hybrid score lies in [0, 1].
package scoring

import (
	"maps"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/tomtom215/loomfeed/internal/recommend"
)

// Input is everything needed to score one post for one viewer.
type Input struct {
	// UserID is the viewer; empty means content-only scoring.
	UserID string

	// Post is the candidate.
	Post recommend.Post

	// Affinity is the viewer's tag affinity.
	Affinity recommend.Affinity

	// Seen counts labels already placed in the feed.
	Seen recommend.SeenTags

	// Exploration bounds the uniform random term added to the tag score.
	Exploration float64

	// Followed is the set of creators the viewer follows.
	Followed map[string]struct{}

	// Trust maps creator ID to behavior features.
	Trust map[string]recommend.Trust
}

// Result is a hybrid score with its components.
type Result struct {
	// Score is the final score in [0, 1].
	Score float64

	// TagScore is the content score including exploration.
	TagScore float64

	// Latent is the model prediction, zero when the model was not consulted.
	Latent float64

	// Alpha is the blend weight given to Latent.
	Alpha float64

	// Follow is the follow boost applied.
	Follow float64

	// TrustFactor is the multiplicative trust penalty in [1-MaxPenalty, 1].
	TrustFactor float64
}

// Scorer computes hybrid scores. It is safe for concurrent use.
type Scorer struct {
	config recommend.ScoringConfig
	model  recommend.LatentModel
	scale  float64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewScorer creates a scorer. model may be nil for content-only scoring.
// seed makes the exploration term reproducible.
//
//nolint:gocritic // config passed by value, copied once at construction
func NewScorer(cfg recommend.ScoringConfig, model recommend.LatentModel, seed int64) *Scorer {
	if cfg.CategoryWeights == nil {
		cfg.CategoryWeights = recommend.DefaultCategoryWeights()
	}
	if cfg.Precision <= 0 {
		cfg.Precision = 4
	}
	if seed == 0 {
		seed = 42
	}
	return &Scorer{
		config: cfg,
		model:  model,
		scale:  math.Pow(10, float64(cfg.Precision)),
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // exploration noise, not security sensitive
	}
}

// Score returns the hybrid score of one post.
//
//nolint:gocritic // Input is read-only and passed by value for call-site clarity
func (s *Scorer) Score(in Input) Result {
	res := Result{
		TagScore:    s.TagScore(in.Post.Tags, in.Affinity, in.Seen, in.Exploration),
		TrustFactor: 1,
	}

	if _, ok := in.Followed[in.Post.CreatorID]; ok && in.Post.CreatorID != "" {
		res.Follow = s.config.FollowBoost
	}
	if t, ok := in.Trust[in.Post.CreatorID]; ok && in.Post.CreatorID != "" {
		res.TrustFactor = s.TrustFactor(t)
	}

	base := res.TagScore
	if s.model != nil && in.UserID != "" && in.Post.ID != "" {
		res.Alpha = s.model.Weight(in.UserID)
		if res.Alpha > 0 {
			res.Latent = s.model.Predict(in.UserID, in.Post.ID)
			base = res.Alpha*res.Latent + (1-res.Alpha)*res.TagScore
		}
	}

	final := math.Min(1, (base+res.Follow)*res.TrustFactor)
	res.Score = s.round(math.Max(0, final))
	return res
}

// TagScore returns the content score of a tag structure, including the
// exploration term, rounded to the configured precision.
func (s *Scorer) TagScore(tags recommend.Tags, affinity recommend.Affinity, seen recommend.SeenTags, exploration float64) float64 {
	var score float64

	// Sorted so the floating point sum is reproducible.
	for _, category := range slices.Sorted(maps.Keys(tags)) {
		weight := s.config.CategoryWeights[category]
		list := tags[category]
		if weight <= 0 || len(list) == 0 {
			continue
		}

		catAffinity := affinity[category]
		var catScore float64
		for _, tag := range list {
			aff, known := catAffinity[tag.Label]
			t := tag.Confidence * (s.config.AffinityBase + s.config.AffinityScale*aff)
			if !known {
				t += s.config.NoveltyBonus
			}
			if n := seen[tag.Label]; n > 0 {
				t *= math.Pow(s.config.DecayBase, float64(n))
			}
			catScore += t
		}
		score += weight * catScore / float64(len(list))
	}

	score += s.uniform(exploration)
	return s.round(score)
}

// TrustFactor maps creator behavior features to a multiplicative penalty.
//
//nolint:gocritic // Trust is small and read-only
func (s *Scorer) TrustFactor(t recommend.Trust) float64 {
	w := s.config.Suspicion
	suspicion := w.Bot*clip01(t.BotScore) +
		w.FastReply*clip01(t.FastReplyPct) +
		w.Circadian*clip01(t.CircadianFlatness) +
		w.Interval*clip01(t.IntervalRegularity)

	factor := 1 - s.config.MaxPenalty*suspicion
	return math.Min(1, math.Max(1-s.config.MaxPenalty, factor))
}

// uniform draws from [0, upper). Non-positive bounds draw nothing.
func (s *Scorer) uniform(upper float64) float64 {
	if upper <= 0 {
		return 0
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() * upper
}

func (s *Scorer) round(v float64) float64 {
	return math.Round(v*s.scale) / s.scale
}

func clip01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
