// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package reranking

import (
	"math"
	"slices"

	"github.com/tomtom215/loomfeed/internal/recommend"
)

// maxAssembleSize limits slice allocations for oversized topN values.
// topN is also bounded by the number of candidates.
const maxAssembleSize = 10000

// Candidate is one scored post awaiting assembly.
type Candidate struct {
	// Tags are the post's taxonomy tags.
	Tags recommend.Tags

	// Score is the pass 1 score.
	Score float64
}

// Selection is one post placed in the feed.
type Selection struct {
	// Index is the position of the post in the candidate slice.
	Index int

	// Score is the final score: pass 1 for personalized posts, pass 2 for
	// serendipitous ones.
	Score float64

	// Serendipity reports whether the post fills a serendipity slot.
	Serendipity bool
}

// Rescorer scores candidate i again with the labels already placed in the
// personalized slice.
type Rescorer func(i int, seen recommend.SeenTags) float64

// Assembler builds a diversity-constrained feed with a serendipity pool.
type Assembler struct {
	threshold float64
	ratio     float64
}

// NewAssembler creates an assembler from feed configuration.
// Out-of-range values are clamped to [0, 1].
//
//nolint:gocritic // config passed by value, copied once at construction
func NewAssembler(cfg recommend.FeedConfig) *Assembler {
	return &Assembler{
		threshold: clamp01(cfg.DiversityThreshold),
		ratio:     clamp01(cfg.SerendipityRatio),
	}
}

// Slots returns the number of serendipity slots reserved in a feed of size
// topN. At least one slot is always reserved.
func (a *Assembler) Slots(topN int) int {
	if topN <= 0 {
		return 0
	}
	return max(1, int(math.Floor(float64(topN)*a.ratio)))
}

// Assemble selects and orders up to topN candidates.
//
// The personalized slice takes the best pass 1 candidates that stay under
// the diversity threshold with everything accepted before them. rescore is
// then called once for every candidate outside that slice, and the
// serendipity slots go to those least similar to the personalized slice.
// The result is sorted by score descending; ties keep personalized posts
// first and otherwise preserve candidate order. A nil rescore keeps pass 1
// scores.
func (a *Assembler) Assemble(candidates []Candidate, topN int, rescore Rescorer) []Selection {
	if len(candidates) == 0 || topN <= 0 {
		return []Selection{}
	}
	if topN > maxAssembleSize {
		topN = maxAssembleSize
	}

	slots := a.Slots(topN)
	target := topN - slots

	labels := make([]labelSet, len(candidates))
	for i := range candidates {
		labels[i] = newLabelSet(candidates[i].Tags)
	}

	// Pass 1 ranking; SortStableFunc keeps input order among ties.
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return compareDesc(candidates[x].Score, candidates[y].Score)
	})

	personal := make([]int, 0, min(target, len(candidates)))
	chosen := make([]bool, len(candidates))
	seen := make(recommend.SeenTags)

	for _, i := range order {
		if len(personal) >= target {
			break
		}
		if a.tooSimilar(labels, personal, i) {
			continue
		}
		personal = append(personal, i)
		chosen[i] = true
		for _, list := range candidates[i].Tags {
			for _, tag := range list {
				seen[tag.Label]++
			}
		}
	}

	selections := make([]Selection, 0, min(topN, len(candidates)))
	for _, i := range personal {
		selections = append(selections, Selection{Index: i, Score: candidates[i].Score})
	}

	// Pass 2 over the remainder, in candidate order.
	remaining := make([]int, 0, len(candidates)-len(personal))
	scores := make([]float64, len(candidates))
	for i := range candidates {
		if chosen[i] {
			continue
		}
		remaining = append(remaining, i)
		if rescore != nil {
			scores[i] = rescore(i, seen)
		} else {
			scores[i] = candidates[i].Score
		}
	}

	dissimilarity := make([]float64, len(candidates))
	for _, i := range remaining {
		dissimilarity[i] = 1 - a.maxSimilarity(labels, personal, i)
	}
	slices.SortStableFunc(remaining, func(x, y int) int {
		return compareDesc(dissimilarity[x], dissimilarity[y])
	})

	for _, i := range remaining[:min(slots, len(remaining))] {
		selections = append(selections, Selection{Index: i, Score: scores[i], Serendipity: true})
	}

	slices.SortStableFunc(selections, func(x, y Selection) int {
		return compareDesc(x.Score, y.Score)
	})
	return selections
}

// tooSimilar reports whether candidate i exceeds the diversity threshold
// against any accepted candidate.
func (a *Assembler) tooSimilar(labels []labelSet, accepted []int, i int) bool {
	for _, j := range accepted {
		if jaccard(labels[i], labels[j]) > a.threshold {
			return true
		}
	}
	return false
}

// maxSimilarity is 0 when nothing was accepted, so dissimilarity becomes 1.
func (a *Assembler) maxSimilarity(labels []labelSet, accepted []int, i int) float64 {
	var best float64
	for _, j := range accepted {
		if s := jaccard(labels[i], labels[j]); s > best {
			best = s
		}
	}
	return best
}

func compareDesc(x, y float64) int {
	switch {
	case x > y:
		return -1
	case x < y:
		return 1
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
