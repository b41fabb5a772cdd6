// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

// Package algorithms implements the online latent scoring model.
//
// NCF is a neural collaborative filtering model trained one interaction at
// a time. A (user, post) pair is scored by concatenating both embeddings
// and passing them through a tanh hidden layer and a logistic output:
//
//	x     = [user ; post]                 (2d)
//	h     = tanh(x·W1 + b1)               (d)
//	score = sigmoid(h·W2 + b2)            (scalar)
//
// # Training
//
// Update takes one pointwise gradient step of the squared error between
// the interaction label and the score, with L2 weight decay on the weights
// and the two touched embeddings. When candidate negatives are supplied a
// BPR-style pairwise step additionally pushes the positive post above one
// randomly drawn negative.
//
// # Cold Start
//
// Weight returns how much the hybrid scorer should trust Predict for a
// user. It is zero below a minimum interaction count and grows with the
// logarithm of the interactions past that threshold, capped at MaxWeight.
//
// # Thread Safety
//
// Update and Restore acquire an exclusive lock. Predict, Weight, Stats and
// Snapshot share a read lock, so concurrent feed requests never block each
// other. Predict never creates embeddings: unknown identifiers read as
// zero vectors.
package algorithms
