// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

// Package recommend defines the domain model of the hybrid feed recommender.
//
// # Architecture
//
// A feed is produced by blending two signals per candidate post:
//
//   - Collaborative: an online neural collaborative filtering model
//     (package algorithms) that learns user and post embeddings from
//     like/comment interactions one event at a time.
//   - Content: a tag affinity distribution built from the viewer's recent
//     interaction history (package scoring).
//
// The blend weight moves from pure content scoring toward the learned
// signal as a user accumulates interactions. A follow bonus and a creator
// trust penalty are applied on top, then the feed assembler (package
// reranking) enforces tag diversity and reserves slots for serendipitous
// picks. Package engine wires these together and package storage persists
// model snapshots.
//
// # Boundary Coercion
//
// Tag structures and creator trust statistics arrive as loosely typed JSON
// produced by external tagging and bot-detection services. ParseTags,
// ParseHistory and ParseTrust coerce them into the strict types of this
// package; malformed entries are dropped, never fatal.
//
// # Usage
//
//	cfg := recommend.DefaultConfig()
//	model := algorithms.NewNCF(cfg.Model, logger)
//	scorer := scoring.NewScorer(cfg.Scoring, model)
//	assembler := reranking.NewAssembler(cfg.Feed)
//	eng, err := engine.New(cfg, model, scorer, assembler, logger)
//
// # Thread Safety
//
// The latent model is the only shared mutable state. Updates acquire an
// exclusive lock, while prediction and snapshot operations use a shared
// lock. Affinity building and feed assembly are per-request and safe to
// run in parallel.
package recommend
