// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package algorithms

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ErrSnapshotMismatch is returned by Restore when a snapshot's shape does not
// match the configured model. Live parameters are left untouched.
var ErrSnapshotMismatch = errors.New("snapshot does not match model shape")

// Snapshot is the full persisted state of an NCF model.
type Snapshot struct {
	// Dim is the embedding dimension.
	Dim int

	// Hidden is the hidden layer width.
	Hidden int

	// LearningRate and Regularization record the training setup.
	LearningRate   float64
	Regularization float64

	// W1 is row-major (2*Dim x Hidden).
	W1 []float64
	B1 []float64
	W2 []float64
	B2 float64

	// Users and Posts hold every embedding in memory at snapshot time.
	Users map[string][]float64
	Posts map[string][]float64

	// Counts holds the per-user interaction counters.
	Counts map[string]int64

	// SavedAt is when the snapshot was taken.
	SavedAt time.Time
}

// Snapshot returns a deep copy of the model state.
func (m *NCF) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Snapshot{
		Dim:            m.dim,
		Hidden:         m.hidden,
		LearningRate:   m.config.LearningRate,
		Regularization: m.config.Regularization,
		W1:             slices.Clone(m.w1),
		B1:             slices.Clone(m.b1),
		W2:             slices.Clone(m.w2),
		B2:             m.b2,
		Users:          make(map[string][]float64, m.users.len()),
		Posts:          make(map[string][]float64, m.posts.len()),
		Counts:         maps.Clone(m.counts),
		SavedAt:        time.Now().UTC(),
	}
	m.users.each(func(id string, v []float64) { s.Users[id] = slices.Clone(v) })
	m.posts.each(func(id string, v []float64) { s.Posts[id] = slices.Clone(v) })
	return s
}

// Validate checks that the snapshot is internally consistent and matches
// the given embedding dimension.
func (s *Snapshot) Validate(dim int) error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrSnapshotMismatch)
	}
	if s.Dim != dim {
		return fmt.Errorf("%w: embedding dim %d, model expects %d", ErrSnapshotMismatch, s.Dim, dim)
	}
	if s.Hidden != dim {
		return fmt.Errorf("%w: hidden width %d, model expects %d", ErrSnapshotMismatch, s.Hidden, dim)
	}
	if len(s.W1) != 2*s.Dim*s.Hidden {
		return fmt.Errorf("%w: W1 has %d values, want %d", ErrSnapshotMismatch, len(s.W1), 2*s.Dim*s.Hidden)
	}
	if len(s.B1) != s.Hidden || len(s.W2) != s.Hidden {
		return fmt.Errorf("%w: b1/W2 lengths %d/%d, want %d", ErrSnapshotMismatch, len(s.B1), len(s.W2), s.Hidden)
	}
	for id, v := range s.Users {
		if len(v) != s.Dim {
			return fmt.Errorf("%w: user %q embedding has %d values, want %d", ErrSnapshotMismatch, id, len(v), s.Dim)
		}
	}
	for id, v := range s.Posts {
		if len(v) != s.Dim {
			return fmt.Errorf("%w: post %q embedding has %d values, want %d", ErrSnapshotMismatch, id, len(v), s.Dim)
		}
	}
	return nil
}

// Restore replaces the model state with a snapshot.
// Training hyperparameters keep their configured values.
func (m *NCF) Restore(s *Snapshot) error {
	if err := s.Validate(m.dim); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.w1 = slices.Clone(s.W1)
	m.b1 = slices.Clone(s.B1)
	m.w2 = slices.Clone(s.W2)
	m.b2 = s.B2

	m.users.reset()
	for id, v := range s.Users {
		m.users.put(id, slices.Clone(v))
	}
	m.posts.reset()
	for id, v := range s.Posts {
		m.posts.put(id, slices.Clone(v))
	}

	m.counts = make(map[string]int64, len(s.Counts))
	for id, c := range s.Counts {
		m.counts[id] = c
	}

	if s.LearningRate != m.config.LearningRate || s.Regularization != m.config.Regularization {
		m.logger.Info().
			Float64("snapshot_learning_rate", s.LearningRate).
			Float64("learning_rate", m.config.LearningRate).
			Float64("snapshot_regularization", s.Regularization).
			Float64("regularization", m.config.Regularization).
			Msg("snapshot hyperparameters differ from configuration, using configuration")
	}

	m.logger.Info().
		Int("users", m.users.len()).
		Int("posts", m.posts.len()).
		Time("saved_at", s.SavedAt).
		Msg("ncf model restored from snapshot")
	return nil
}
