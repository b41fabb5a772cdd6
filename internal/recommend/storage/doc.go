// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

// Package storage persists model snapshots.
//
// Persistence is split in two layers. A BlobStore saves and loads opaque
// byte blobs under a named key; a Persister encodes typed values into those
// blobs. The service keeps running from in-memory state when the store is
// unreachable, so every store error is reported to the caller rather than
// handled here.
//
// # Overview
//
// The storage system provides:
//   - Gob serialization for efficient Go type encoding
//   - Gzip compression to reduce storage footprint
//   - SHA-256 checksums for data integrity verification
//   - Versioned snapshot files with automatic pruning
//   - A BadgerDB key-value backend
//   - A circuit breaker so an unhealthy backend fails fast
//
// # Backends
//
//	FileStore    {key}_v{version}.gob.gz files in a directory, newest wins
//	BadgerStore  one badger key per snapshot key, on disk or in memory
//	MemoryStore  process-local map, for tests and "none" persistence
//	BreakerStore wraps any of the above with sony/gobreaker
//
// # Blob Format
//
// Encode produces a gob-encoded envelope:
//
//	envelope:
//	  - Format (codec version)
//	  - Checksum (SHA-256 of the raw gob payload, hex)
//	  - SavedAt
//	  - CompressedData (gzip-compressed gob payload)
//
// Decode verifies the checksum before decoding and reports corruption as
// ErrChecksumMismatch.
//
// # Usage Example
//
//	store, err := storage.NewFileStore("/data/snapshots", 3)
//	if err != nil {
//	    return err
//	}
//	p := storage.NewPersister[algorithms.Snapshot](
//	    storage.NewBreakerStore(store, storage.DefaultBreakerSettings(), logger),
//	    "loom_ncf_v1",
//	)
//
//	snap, err := p.Load(ctx)
//	switch {
//	case errors.Is(err, storage.ErrNotFound):
//	    // fresh start
//	case err != nil:
//	    // log and continue in memory
//	default:
//	    err = model.Restore(snap)
//	}
//
// # Thread Safety
//
// All stores are safe for concurrent use. FileStore serializes writes per
// store with a mutex; BadgerStore relies on badger transactions.
package storage
