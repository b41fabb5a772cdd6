// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package scoring

import (
	"math"
	"sync"
	"testing"

	"github.com/tomtom215/loomfeed/internal/recommend"
)

// fakeModel returns fixed values and records whether it was consulted.
type fakeModel struct {
	mu        sync.Mutex
	weight    float64
	predict   float64
	predicted int
}

func (f *fakeModel) Predict(_, _ string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predicted++
	return f.predict
}

func (f *fakeModel) Weight(_ string) float64 {
	return f.weight
}

func newTestScorer(model recommend.LatentModel) *Scorer {
	return NewScorer(recommend.DefaultConfig().Scoring, model, 7)
}

func styleTags(label string, confidence float64) recommend.Tags {
	return recommend.Tags{"style": {{Label: label, Confidence: confidence}}}
}

func TestScorer_TagScore(t *testing.T) {
	t.Parallel()

	s := newTestScorer(nil)
	affinity := recommend.Affinity{"style": {"impressionism": 1.0}}

	tests := []struct {
		name     string
		tags     recommend.Tags
		affinity recommend.Affinity
		seen     recommend.SeenTags
		want     float64
	}{
		// 0.25 * 0.9 * (0.6 + 0.4*1)
		{"known label", styleTags("impressionism", 0.9), affinity, nil, 0.225},
		// 0.25 * (0.9*0.6 + 0.08)
		{"novel label", styleTags("cubism", 0.9), affinity, nil, 0.155},
		// 0.225 * 0.5
		{"seen once", styleTags("impressionism", 0.9), affinity, recommend.SeenTags{"impressionism": 1}, 0.1125},
		// 0.25 * 0.8 * 0.25
		{"seen twice", styleTags("impressionism", 0.8), affinity, recommend.SeenTags{"impressionism": 2}, 0.05},
		{"unknown category", recommend.Tags{"texture": {{Label: "rough", Confidence: 1}}}, affinity, nil, 0},
		{"no tags", nil, affinity, nil, 0},
		{
			name: "category average",
			tags: recommend.Tags{"style": {
				{Label: "impressionism", Confidence: 1},
				{Label: "cubism", Confidence: 1},
			}},
			affinity: affinity,
			// 0.25 * ((1.0) + (0.6 + 0.08)) / 2
			want: 0.21,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.TagScore(tt.tags, tt.affinity, tt.seen, 0)
			if !approx(got, tt.want) {
				t.Errorf("TagScore() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestScorer_PreferredStyleRanksHigher(t *testing.T) {
	t.Parallel()

	history := []recommend.HistoryEntry{
		{Tags: styleTags("impressionism", 0.9), Weight: 1},
		{Tags: styleTags("impressionism", 0.8), Weight: 1},
	}
	affinity := BuildAffinity(history)
	s := newTestScorer(nil)

	liked := s.Score(Input{
		Post:     recommend.Post{ID: "a", CreatorID: "x", Tags: styleTags("impressionism", 0.9)},
		Affinity: affinity,
	})
	other := s.Score(Input{
		Post:     recommend.Post{ID: "b", CreatorID: "y", Tags: styleTags("cubism", 0.9)},
		Affinity: affinity,
	})

	if liked.Score <= other.Score {
		t.Errorf("impressionism score %f should exceed cubism score %f", liked.Score, other.Score)
	}
}

func TestScorer_TrustFactor(t *testing.T) {
	t.Parallel()

	s := newTestScorer(nil)

	tests := []struct {
		name  string
		trust recommend.Trust
		want  float64
	}{
		{"clean creator", recommend.Trust{}, 1.0},
		{"worst case", recommend.Trust{BotScore: 1, FastReplyPct: 1, CircadianFlatness: 1, IntervalRegularity: 1}, 0.78},
		{"bot only", recommend.Trust{BotScore: 1}, 1 - 0.22*0.6},
		{"out of range clipped", recommend.Trust{BotScore: 7, FastReplyPct: 3, CircadianFlatness: 2, IntervalRegularity: 9}, 0.78},
		{"negative clipped", recommend.Trust{BotScore: -1}, 1.0},
		{"nan ignored", recommend.Trust{BotScore: math.NaN()}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.TrustFactor(tt.trust)
			if !approx(got, tt.want) {
				t.Errorf("TrustFactor() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestScorer_FollowAndTrust(t *testing.T) {
	t.Parallel()

	s := newTestScorer(nil)
	post := recommend.Post{ID: "p1", CreatorID: "artist"}
	followed := map[string]struct{}{"artist": {}}
	worst := map[string]recommend.Trust{
		"artist": {BotScore: 1, FastReplyPct: 1, CircadianFlatness: 1, IntervalRegularity: 1},
	}

	tests := []struct {
		name     string
		followed map[string]struct{}
		trust    map[string]recommend.Trust
		want     float64
	}{
		{"neither", nil, nil, 0},
		{"followed", followed, nil, 0.12},
		{"followed and suspicious", followed, worst, 0.0936},
		{"suspicious only", nil, worst, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := s.Score(Input{Post: post, Followed: tt.followed, Trust: tt.trust})
			if !approx(got.Score, tt.want) {
				t.Errorf("Score() = %f, want %f", got.Score, tt.want)
			}
		})
	}
}

func TestScorer_Blend(t *testing.T) {
	t.Parallel()

	post := recommend.Post{ID: "p1", CreatorID: "c1", Tags: styleTags("impressionism", 0.9)}
	affinity := recommend.Affinity{"style": {"impressionism": 1.0}}

	t.Run("zero weight is content only", func(t *testing.T) {
		t.Parallel()
		model := &fakeModel{weight: 0, predict: 0.99}
		got := newTestScorer(model).Score(Input{UserID: "u1", Post: post, Affinity: affinity})
		if !approx(got.Score, 0.225) {
			t.Errorf("Score() = %f, want 0.225", got.Score)
		}
		if model.predicted != 0 {
			t.Errorf("Predict called %d times with zero weight", model.predicted)
		}
	})

	t.Run("weighted blend", func(t *testing.T) {
		t.Parallel()
		model := &fakeModel{weight: 0.5, predict: 0.8}
		got := newTestScorer(model).Score(Input{UserID: "u1", Post: post, Affinity: affinity})
		// 0.5*0.8 + 0.5*0.225
		if !approx(got.Score, 0.5125) {
			t.Errorf("Score() = %f, want 0.5125", got.Score)
		}
		if got.Alpha != 0.5 || got.Latent != 0.8 {
			t.Errorf("Alpha/Latent = %f/%f, want 0.5/0.8", got.Alpha, got.Latent)
		}
	})

	t.Run("anonymous viewer skips model", func(t *testing.T) {
		t.Parallel()
		model := &fakeModel{weight: 0.65, predict: 1}
		got := newTestScorer(model).Score(Input{Post: post, Affinity: affinity})
		if model.predicted != 0 || got.Alpha != 0 {
			t.Errorf("model consulted for anonymous viewer: alpha=%f", got.Alpha)
		}
	})
}

func TestScorer_ScoreBounds(t *testing.T) {
	t.Parallel()

	everything := recommend.Tags{}
	for category := range recommend.DefaultCategoryWeights() {
		everything[category] = []recommend.Tag{{Label: "x-" + category, Confidence: 1}}
	}
	worst := map[string]recommend.Trust{
		"c": {BotScore: 1, FastReplyPct: 1, CircadianFlatness: 1, IntervalRegularity: 1},
	}
	followed := map[string]struct{}{"c": {}}

	models := []recommend.LatentModel{
		nil,
		&fakeModel{weight: 0.65, predict: 1},
		&fakeModel{weight: 0.65, predict: 0},
	}

	for _, model := range models {
		s := newTestScorer(model)
		for i := 0; i < 200; i++ {
			for _, in := range []Input{
				{UserID: "u", Post: recommend.Post{ID: "p", CreatorID: "c", Tags: everything}, Exploration: 1, Followed: followed},
				{UserID: "u", Post: recommend.Post{ID: "p", CreatorID: "c", Tags: everything}, Exploration: 1, Followed: followed, Trust: worst},
				{UserID: "u", Post: recommend.Post{ID: "p", CreatorID: "c"}, Trust: worst},
			} {
				got := s.Score(in).Score
				if got < 0 || got > 1 || math.IsNaN(got) {
					t.Fatalf("Score() = %f, outside [0, 1]", got)
				}
			}
		}
	}
}

func TestScorer_Exploration(t *testing.T) {
	t.Parallel()

	s := newTestScorer(nil)
	tags := styleTags("impressionism", 0.9)
	affinity := recommend.Affinity{"style": {"impressionism": 1.0}}

	for i := 0; i < 500; i++ {
		got := s.TagScore(tags, affinity, nil, 0.15)
		if got < 0.225 || got > 0.225+0.15+1e-4 {
			t.Fatalf("TagScore() with exploration = %f, want within [0.225, 0.375]", got)
		}
	}

	if got := s.TagScore(tags, affinity, nil, -1); !approx(got, 0.225) {
		t.Errorf("negative exploration TagScore() = %f, want 0.225", got)
	}
}

func TestScorer_Deterministic(t *testing.T) {
	t.Parallel()

	tags := styleTags("impressionism", 0.9)
	a := newTestScorer(nil)
	b := newTestScorer(nil)

	for i := 0; i < 20; i++ {
		if x, y := a.TagScore(tags, nil, nil, 0.3), b.TagScore(tags, nil, nil, 0.3); x != y {
			t.Fatalf("draw %d differs: %f != %f", i, x, y)
		}
	}
}
