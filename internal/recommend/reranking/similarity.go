// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package reranking

import (
	"github.com/tomtom215/loomfeed/internal/recommend"
)

// labelSet is the flattened set of labels across all categories.
type labelSet map[string]struct{}

func newLabelSet(tags recommend.Tags) labelSet {
	return labelSet(tags.Labels())
}

// TagSimilarity returns the Jaccard similarity of two tag structures over
// their flattened label sets. It is 0 when either side has no labels.
func TagSimilarity(a, b recommend.Tags) float64 {
	return jaccard(newLabelSet(a), newLabelSet(b))
}

func jaccard(a, b labelSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate the smaller set.
	if len(a) > len(b) {
		a, b = b, a
	}
	intersection := 0
	for label := range a {
		if _, ok := b[label]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
