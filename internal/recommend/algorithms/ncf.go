// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package algorithms

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tomtom215/loomfeed/internal/recommend"
)

// NCF is an online neural collaborative filtering model.
//
// Parameters are stored as flat slices: w1 is row-major with 2d rows and
// h columns (h == d), w2 is the single output column.
type NCF struct {
	config recommend.ModelConfig
	logger zerolog.Logger

	mu     sync.RWMutex
	dim    int
	hidden int
	w1     []float64
	b1     []float64
	w2     []float64
	b2     float64
	users  *embeddingTable
	posts  *embeddingTable
	counts map[string]int64

	// rng is only used under the write lock.
	rng *rand.Rand

	updates atomic.Int64
}

// NCFStats describes the current size of the model.
type NCFStats struct {
	// Users is the number of user embeddings held in memory.
	Users int `json:"users"`

	// Posts is the number of post embeddings held in memory.
	Posts int `json:"posts"`

	// TrackedUsers is the number of users with an interaction count.
	TrackedUsers int `json:"tracked_users"`

	// Updates is the number of Update calls since construction.
	Updates int64 `json:"updates"`

	// Evictions is the number of embeddings dropped by capacity bounds.
	Evictions int64 `json:"evictions"`
}

// NewNCF creates a freshly initialized model.
// Zero-valued numeric fields in cfg are replaced with defaults.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewNCF(cfg recommend.ModelConfig, seed int64, logger zerolog.Logger) *NCF {
	defaults := recommend.DefaultConfig().Model
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = defaults.EmbeddingDim
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = defaults.LearningRate
	}
	if cfg.InitScale <= 0 {
		cfg.InitScale = defaults.InitScale
	}
	if cfg.MaxWeight <= 0 {
		cfg.MaxWeight = defaults.MaxWeight
	}
	if cfg.DefaultLabel <= 0 {
		cfg.DefaultLabel = defaults.DefaultLabel
	}
	if cfg.InteractionWeights == nil {
		cfg.InteractionWeights = defaults.InteractionWeights
	}
	if seed == 0 {
		seed = 42
	}

	m := &NCF{
		config: cfg,
		logger: logger.With().Str("component", "ncf").Logger(),
		dim:    cfg.EmbeddingDim,
		hidden: cfg.EmbeddingDim,
		users:  newEmbeddingTable(cfg.MaxUsers),
		posts:  newEmbeddingTable(cfg.MaxPosts),
		counts: make(map[string]int64),
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic init, not security sensitive
	}
	m.initParams()
	return m
}

// initParams draws fresh network weights. Biases start at zero.
func (m *NCF) initParams() {
	m.w1 = m.randomVector(2 * m.dim * m.hidden)
	m.b1 = make([]float64, m.hidden)
	m.w2 = m.randomVector(m.hidden)
	m.b2 = 0
}

func (m *NCF) randomVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = m.rng.NormFloat64() * m.config.InitScale
	}
	return v
}

// Dim returns the embedding dimension.
func (m *NCF) Dim() int {
	return m.dim
}

// Predict returns the model score in (0, 1) for a user/post pair.
// Unknown identifiers are scored with zero embeddings and are not stored.
func (m *NCF) Predict(userID, postID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, _ := m.users.get(userID)
	post, _ := m.posts.get(postID)
	score, _, _ := m.forward(user, post)
	return score
}

// forward computes the score, the hidden activations and the input vector.
// A nil embedding is treated as all zeros.
func (m *NCF) forward(user, post []float64) (float64, []float64, []float64) {
	x := make([]float64, 2*m.dim)
	copy(x[:m.dim], user)
	copy(x[m.dim:], post)

	h := make([]float64, m.hidden)
	for j := range h {
		sum := m.b1[j]
		for i, xi := range x {
			sum += xi * m.w1[i*m.hidden+j]
		}
		h[j] = math.Tanh(sum)
	}

	out := m.b2
	for j, hj := range h {
		out += hj * m.w2[j]
	}
	return sigmoid(out), h, x
}

// Update applies one online training step for an interaction.
// Unknown users and posts get fresh embeddings. Negatives equal to the
// positive post or empty are ignored; if any remain, one is drawn uniformly
// for a pairwise ranking step.
func (m *NCF) Update(userID, postID string, kind recommend.InteractionType, negatives []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lr := m.config.LearningRate
	reg := m.config.Regularization
	label := m.config.Label(kind)

	user := m.embedding(m.users, userID)
	post := m.embedding(m.posts, postID)

	score, h, x := m.forward(user, post)
	dOut := (label - score) * score * (1 - score)

	// Gradients are computed against the pre-step parameters.
	dTanh := make([]float64, m.hidden)
	for j := range dTanh {
		dTanh[j] = (1 - h[j]*h[j]) * m.w2[j] * dOut
	}
	dX := make([]float64, 2*m.dim)
	for i := range dX {
		row := m.w1[i*m.hidden : (i+1)*m.hidden]
		var sum float64
		for j, g := range dTanh {
			sum += g * row[j]
		}
		dX[i] = sum
	}
	dUser := dX[:m.dim]
	dPost := dX[m.dim:]

	for j := range m.w2 {
		m.w2[j] += lr * (h[j]*dOut - reg*m.w2[j])
	}
	m.b2 += lr * dOut
	for i, xi := range x {
		row := m.w1[i*m.hidden : (i+1)*m.hidden]
		for j, g := range dTanh {
			row[j] += lr * (xi*g - reg*row[j])
		}
	}
	for j, g := range dTanh {
		m.b1[j] += lr * g
	}
	for k := range user {
		user[k] += lr * (dUser[k] - reg*user[k])
	}
	for k := range post {
		post[k] += lr * (dPost[k] - reg*post[k])
	}

	if candidates := filterNegatives(negatives, postID); len(candidates) > 0 {
		negID := candidates[m.rng.Intn(len(candidates))]
		neg := m.embedding(m.posts, negID)
		negScore, _, _ := m.forward(user, neg)

		grad := -1 / (1 + math.Exp(score-negScore))
		for k := range post {
			step := lr * (-grad * dPost[k])
			post[k] += step
			neg[k] -= step
		}
	}

	m.counts[userID]++
	m.updates.Add(1)

	m.logger.Debug().
		Str("user_id", userID).
		Str("post_id", postID).
		Str("interaction_type", kind.String()).
		Int64("interactions", m.counts[userID]).
		Float64("score", score).
		Msg("ncf update")
}

// embedding returns the stored vector for id, creating it if absent.
// Must be called with the write lock held.
func (m *NCF) embedding(table *embeddingTable, id string) []float64 {
	if v, ok := table.get(id); ok {
		return v
	}
	v := m.randomVector(m.dim)
	table.put(id, v)
	return v
}

// filterNegatives drops empty identifiers and the positive post.
func filterNegatives(negatives []string, positive string) []string {
	if len(negatives) == 0 {
		return nil
	}
	out := make([]string, 0, len(negatives))
	for _, id := range negatives {
		if id != "" && id != positive {
			out = append(out, id)
		}
	}
	return out
}

// Interactions returns how many updates the user has received.
func (m *NCF) Interactions(userID string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[userID]
}

// Weight returns the blend weight of the model for a user in [0, MaxWeight].
func (m *NCF) Weight(userID string) float64 {
	return m.weightFor(m.Interactions(userID))
}

// weightFor maps an interaction count to a blend weight. It is zero below
// MinInteractions and from there grows with the logarithm of the number of
// interactions at or past the threshold.
func (m *NCF) weightFor(count int64) float64 {
	if count < m.config.MinInteractions {
		return 0
	}
	past := float64(count - m.config.MinInteractions + 1)
	alpha := m.config.MaxWeight * (1 - 1/(1+math.Log1p(past)))
	return math.Min(alpha, m.config.MaxWeight)
}

// Stats returns the current model size.
func (m *NCF) Stats() NCFStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return NCFStats{
		Users:        m.users.len(),
		Posts:        m.posts.len(),
		TrackedUsers: len(m.counts),
		Updates:      m.updates.Load(),
		Evictions:    m.users.evictions.Load() + m.posts.evictions.Load(),
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
