// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package recommend

import (
	"errors"
	"fmt"
	"maps"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid recommend config")

// Config contains all configuration for the recommender.
type Config struct {
	// Model contains parameters for the online NCF model.
	Model ModelConfig `json:"model" koanf:"model"`

	// Scoring contains parameters for the hybrid scorer.
	Scoring ScoringConfig `json:"scoring" koanf:"scoring"`

	// Feed contains parameters for feed assembly.
	Feed FeedConfig `json:"feed" koanf:"feed"`

	// Seed is the random seed for exploration and negative sampling.
	// If zero, a fixed default seed is used.
	Seed int64 `json:"seed" koanf:"seed"`
}

// ModelConfig contains parameters for the latent scoring model.
type ModelConfig struct {
	// EmbeddingDim is the length of every user and post embedding.
	// The hidden layer has the same width.
	// Default: 32.
	EmbeddingDim int `json:"embedding_dim" koanf:"embedding_dim"`

	// LearningRate is the SGD step size.
	// Default: 0.01.
	LearningRate float64 `json:"learning_rate" koanf:"learning_rate"`

	// Regularization is the L2 weight decay coefficient.
	// Default: 0.001.
	Regularization float64 `json:"regularization" koanf:"regularization"`

	// InitScale scales the normal draw used for fresh parameters.
	// Default: 0.01.
	InitScale float64 `json:"init_scale" koanf:"init_scale"`

	// MinInteractions is the count below which the model gets zero weight.
	// Default: 5.
	MinInteractions int64 `json:"min_interactions" koanf:"min_interactions"`

	// MaxWeight caps the blend weight of the model.
	// Default: 0.65.
	MaxWeight float64 `json:"max_weight" koanf:"max_weight"`

	// InteractionWeights maps interaction kinds to training labels.
	// Unknown kinds use DefaultLabel.
	// Default: like=1.0, comment=0.85.
	InteractionWeights map[string]float64 `json:"interaction_weights" koanf:"interaction_weights"`

	// DefaultLabel is the training label for unrecognized kinds.
	// Default: 1.0.
	DefaultLabel float64 `json:"default_label" koanf:"default_label"`

	// MaxUsers bounds the user embedding table with LRU eviction.
	// Zero means unbounded.
	// Default: 0.
	MaxUsers int `json:"max_users" koanf:"max_users"`

	// MaxPosts bounds the post embedding table with LRU eviction.
	// Zero means unbounded.
	// Default: 0.
	MaxPosts int `json:"max_posts" koanf:"max_posts"`
}

// ScoringConfig contains parameters for the hybrid scorer.
type ScoringConfig struct {
	// CategoryWeights is the importance of each taxonomy category.
	// Categories absent from the map do not contribute.
	CategoryWeights map[string]float64 `json:"category_weights" koanf:"category_weights"`

	// AffinityBase is the share of a tag's confidence granted regardless of affinity.
	// Default: 0.6.
	AffinityBase float64 `json:"affinity_base" koanf:"affinity_base"`

	// AffinityScale is the share of a tag's confidence scaled by affinity.
	// Default: 0.4.
	AffinityScale float64 `json:"affinity_scale" koanf:"affinity_scale"`

	// NoveltyBonus is added for labels the viewer has no affinity for.
	// Default: 0.08.
	NoveltyBonus float64 `json:"novelty_bonus" koanf:"novelty_bonus"`

	// DecayBase is raised to the number of times a label was already seen.
	// Default: 0.5.
	DecayBase float64 `json:"decay_base" koanf:"decay_base"`

	// DefaultConfidence is used for tags that carry no confidence.
	// Default: 0.5.
	DefaultConfidence float64 `json:"default_confidence" koanf:"default_confidence"`

	// FollowBoost is added when the viewer follows the creator.
	// Default: 0.12.
	FollowBoost float64 `json:"follow_boost" koanf:"follow_boost"`

	// MaxPenalty is the largest multiplicative trust penalty.
	// Default: 0.22.
	MaxPenalty float64 `json:"max_penalty" koanf:"max_penalty"`

	// Suspicion weights the trust features into a suspicion index.
	Suspicion SuspicionWeights `json:"suspicion" koanf:"suspicion"`

	// Precision is the number of decimal places scores are rounded to.
	// Default: 4.
	Precision int `json:"precision" koanf:"precision"`
}

// SuspicionWeights weights each trust feature. They should sum to 1.
type SuspicionWeights struct {
	// Bot weights the bot probability.
	// Default: 0.60.
	Bot float64 `json:"bot" koanf:"bot"`

	// FastReply weights the fast-reply ratio.
	// Default: 0.15.
	FastReply float64 `json:"fast_reply" koanf:"fast_reply"`

	// Circadian weights circadian flatness.
	// Default: 0.15.
	Circadian float64 `json:"circadian" koanf:"circadian"`

	// Interval weights interval regularity.
	// Default: 0.10.
	Interval float64 `json:"interval" koanf:"interval"`
}

// Sum returns the total of all suspicion weights.
func (w SuspicionWeights) Sum() float64 {
	return w.Bot + w.FastReply + w.Circadian + w.Interval
}

// FeedConfig contains parameters for feed assembly.
type FeedConfig struct {
	// DiversityThreshold is the maximum tag Jaccard similarity between two
	// personalized posts.
	// Default: 0.45.
	DiversityThreshold float64 `json:"diversity_threshold" koanf:"diversity_threshold"`

	// SerendipityRatio is the share of the feed reserved for dissimilar picks.
	// At least one slot is always reserved.
	// Default: 0.10.
	SerendipityRatio float64 `json:"serendipity_ratio" koanf:"serendipity_ratio"`

	// DefaultTopN is used when a request does not set a feed size.
	// Default: 20.
	DefaultTopN int `json:"default_top_n" koanf:"default_top_n"`

	// MaxTopN caps requested feed sizes.
	// Default: 500.
	MaxTopN int `json:"max_top_n" koanf:"max_top_n"`

	// DefaultExploration is used when a request does not set one.
	// Default: 0.15.
	DefaultExploration float64 `json:"default_exploration" koanf:"default_exploration"`

	// MaxCandidates caps the number of candidates accepted per request.
	// Default: 5000.
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`
}

// DefaultCategoryWeights returns the importance of each tagging category.
func DefaultCategoryWeights() map[string]float64 {
	return map[string]float64{
		"medium":             0.15,
		"subject":            0.25,
		"style":              0.25,
		"mood":               0.15,
		"color_palette":      0.10,
		"aesthetic_features": 0.10,
	}
}

// DefaultInteractionWeights returns the training label per interaction kind.
func DefaultInteractionWeights() map[string]float64 {
	return map[string]float64{
		string(InteractionLike):    1.0,
		string(InteractionComment): 0.85,
	}
}

// DefaultConfig returns the production configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			EmbeddingDim:       32,
			LearningRate:       0.01,
			Regularization:     0.001,
			InitScale:          0.01,
			MinInteractions:    5,
			MaxWeight:          0.65,
			InteractionWeights: DefaultInteractionWeights(),
			DefaultLabel:       1.0,
		},
		Scoring: ScoringConfig{
			CategoryWeights:   DefaultCategoryWeights(),
			AffinityBase:      0.6,
			AffinityScale:     0.4,
			NoveltyBonus:      0.08,
			DecayBase:         0.5,
			DefaultConfidence: 0.5,
			FollowBoost:       0.12,
			MaxPenalty:        0.22,
			Suspicion: SuspicionWeights{
				Bot:       0.60,
				FastReply: 0.15,
				Circadian: 0.15,
				Interval:  0.10,
			},
			Precision: 4,
		},
		Feed: FeedConfig{
			DiversityThreshold: 0.45,
			SerendipityRatio:   0.10,
			DefaultTopN:        20,
			MaxTopN:            500,
			DefaultExploration: 0.15,
			MaxCandidates:      5000,
		},
		Seed: 42,
	}
}

// Validate checks the configuration for consistency.
//
//nolint:gocyclo // flat list of independent range checks
func (c *Config) Validate() error {
	m := c.Model
	if m.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: model.embedding_dim must be positive, got %d", ErrInvalidConfig, m.EmbeddingDim)
	}
	if m.LearningRate <= 0 {
		return fmt.Errorf("%w: model.learning_rate must be positive, got %f", ErrInvalidConfig, m.LearningRate)
	}
	if m.Regularization < 0 {
		return fmt.Errorf("%w: model.regularization must be non-negative, got %f", ErrInvalidConfig, m.Regularization)
	}
	if m.InitScale <= 0 {
		return fmt.Errorf("%w: model.init_scale must be positive, got %f", ErrInvalidConfig, m.InitScale)
	}
	if m.MinInteractions < 0 {
		return fmt.Errorf("%w: model.min_interactions must be non-negative, got %d", ErrInvalidConfig, m.MinInteractions)
	}
	if m.MaxWeight < 0 || m.MaxWeight > 1 {
		return fmt.Errorf("%w: model.max_weight must be in [0, 1], got %f", ErrInvalidConfig, m.MaxWeight)
	}
	if m.MaxUsers < 0 || m.MaxPosts < 0 {
		return fmt.Errorf("%w: model.max_users and model.max_posts must be non-negative", ErrInvalidConfig)
	}

	s := c.Scoring
	for category, w := range s.CategoryWeights {
		if w < 0 {
			return fmt.Errorf("%w: scoring.category_weights[%s] must be non-negative, got %f", ErrInvalidConfig, category, w)
		}
	}
	if s.DecayBase < 0 || s.DecayBase > 1 {
		return fmt.Errorf("%w: scoring.decay_base must be in [0, 1], got %f", ErrInvalidConfig, s.DecayBase)
	}
	if s.FollowBoost < 0 {
		return fmt.Errorf("%w: scoring.follow_boost must be non-negative, got %f", ErrInvalidConfig, s.FollowBoost)
	}
	if s.MaxPenalty < 0 || s.MaxPenalty > 1 {
		return fmt.Errorf("%w: scoring.max_penalty must be in [0, 1], got %f", ErrInvalidConfig, s.MaxPenalty)
	}
	if s.Suspicion.Bot < 0 || s.Suspicion.FastReply < 0 || s.Suspicion.Circadian < 0 || s.Suspicion.Interval < 0 {
		return fmt.Errorf("%w: scoring.suspicion weights must be non-negative", ErrInvalidConfig)
	}
	if s.Suspicion.Sum() > 1+1e-9 {
		return fmt.Errorf("%w: scoring.suspicion weights must sum to at most 1, got %f", ErrInvalidConfig, s.Suspicion.Sum())
	}
	if s.Precision < 1 || s.Precision > 12 {
		return fmt.Errorf("%w: scoring.precision must be in [1, 12], got %d", ErrInvalidConfig, s.Precision)
	}

	f := c.Feed
	if f.DiversityThreshold < 0 || f.DiversityThreshold > 1 {
		return fmt.Errorf("%w: feed.diversity_threshold must be in [0, 1], got %f", ErrInvalidConfig, f.DiversityThreshold)
	}
	if f.SerendipityRatio < 0 || f.SerendipityRatio > 1 {
		return fmt.Errorf("%w: feed.serendipity_ratio must be in [0, 1], got %f", ErrInvalidConfig, f.SerendipityRatio)
	}
	if f.DefaultTopN <= 0 {
		return fmt.Errorf("%w: feed.default_top_n must be positive, got %d", ErrInvalidConfig, f.DefaultTopN)
	}
	if f.MaxTopN < f.DefaultTopN {
		return fmt.Errorf("%w: feed.max_top_n must be >= feed.default_top_n, got %d < %d", ErrInvalidConfig, f.MaxTopN, f.DefaultTopN)
	}
	if f.DefaultExploration < 0 {
		return fmt.Errorf("%w: feed.default_exploration must be non-negative, got %f", ErrInvalidConfig, f.DefaultExploration)
	}
	if f.MaxCandidates <= 0 {
		return fmt.Errorf("%w: feed.max_candidates must be positive, got %d", ErrInvalidConfig, f.MaxCandidates)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Model.InteractionWeights = maps.Clone(c.Model.InteractionWeights)
	out.Scoring.CategoryWeights = maps.Clone(c.Scoring.CategoryWeights)
	return &out
}

// Label returns the training label for an interaction kind.
func (m *ModelConfig) Label(kind InteractionType) float64 {
	if w, ok := m.InteractionWeights[string(kind)]; ok {
		return w
	}
	return m.DefaultLabel
}
