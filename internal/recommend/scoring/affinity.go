// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package scoring

import (
	"github.com/tomtom215/loomfeed/internal/recommend"
)

// BuildAffinity derives per-category tag preferences from interaction history.
//
// Every tag of every entry contributes confidence × weight to its
// category/label bucket; each category is then normalized by its own total.
// Entries with a non-positive weight are skipped, and categories whose total
// stays zero are omitted, so every present category sums to 1.
func BuildAffinity(history []recommend.HistoryEntry) recommend.Affinity {
	affinity := make(recommend.Affinity)

	for _, entry := range history {
		if entry.Weight <= 0 {
			continue
		}
		for category, tags := range entry.Tags {
			for _, tag := range tags {
				if tag.Label == "" {
					continue
				}
				bucket, ok := affinity[category]
				if !ok {
					bucket = make(map[string]float64)
					affinity[category] = bucket
				}
				bucket[tag.Label] += tag.Confidence * entry.Weight
			}
		}
	}

	for category, bucket := range affinity {
		var total float64
		for _, v := range bucket {
			total += v
		}
		if total <= 0 {
			delete(affinity, category)
			continue
		}
		for label, v := range bucket {
			bucket[label] = v / total
		}
	}

	return affinity
}
