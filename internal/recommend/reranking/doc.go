// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

// Package reranking turns scored candidates into an ordered, diverse feed.
//
// Reranking runs after pass 1 scoring and owns everything that depends on
// the relationship between posts rather than on a single post:
//
//	Scorer (pass 1) -> personalized slice -> Scorer (pass 2, decay) -> serendipity slice -> merge
//
// # Diversity
//
// The personalized slice is built greedily from the highest scoring
// candidates. A candidate is rejected when its tag Jaccard similarity to any
// already accepted post exceeds the diversity threshold (default 0.45):
//
//	sim(a, b) = |labels(a) ∩ labels(b)| / |labels(a) ∪ labels(b)|
//
// Labels are flattened across every taxonomy category. Two posts where either
// side carries no labels have similarity 0.
//
// # Serendipity
//
// A share of the feed (default 10%, never fewer than one slot) is reserved
// for the candidates least similar to the personalized slice. Serendipitous
// picks keep their pass 2 score and are flagged so clients can label them.
//
// # Rescoring
//
// Once the personalized slice is fixed, the labels it contains are counted
// and every remaining candidate is scored again through a callback so that
// repeated labels are decayed. The assembler does not know how scores are
// computed.
//
// # Thread Safety
//
// An Assembler holds only configuration and is safe for concurrent use. Each
// Assemble call allocates its own working state.
//
// # See Also
//
//   - internal/recommend/scoring: pass 1 and pass 2 scores
//   - internal/recommend/engine: wires scoring and assembly per request
package reranking
