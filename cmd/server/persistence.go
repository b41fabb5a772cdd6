// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package main

import (
	"fmt"

	"github.com/tomtom215/loomfeed/internal/config"
	"github.com/tomtom215/loomfeed/internal/logging"
	"github.com/tomtom215/loomfeed/internal/metrics"
	"github.com/tomtom215/loomfeed/internal/recommend/algorithms"
	"github.com/tomtom215/loomfeed/internal/recommend/storage"
)

// openStore builds the snapshot store selected by cfg. The returned close
// function is never nil. A nil store means persistence is disabled: either
// by configuration or because the backend could not be opened, in which
// case the model runs in memory only. Only an unknown backend is an error.
func openStore(cfg *config.PersistenceConfig) (storage.BlobStore, func() error, error) {
	noop := func() error { return nil }

	var (
		store   storage.BlobStore
		closeFn = noop
	)
	switch cfg.Backend {
	case config.BackendNone:
		return nil, noop, nil
	case config.BackendMemory:
		store = storage.NewMemoryStore()
	case config.BackendFile:
		fs, err := storage.NewFileStore(cfg.Dir, cfg.Keep)
		if err != nil {
			storeUnavailable(cfg, cfg.Dir, err)
			return nil, noop, nil
		}
		store = fs
	case config.BackendBadger:
		bs, err := storage.OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			storeUnavailable(cfg, cfg.BadgerPath, err)
			return nil, noop, nil
		}
		store = bs
		closeFn = bs.Close
	default:
		return nil, noop, fmt.Errorf("unknown persistence backend %q", cfg.Backend)
	}

	if cfg.Breaker.Enabled {
		store = storage.NewBreakerStore(store, cfg.Breaker.Settings(), logging.WithComponent("snapshot-breaker"))
	}
	return store, closeFn, nil
}

func storeUnavailable(cfg *config.PersistenceConfig, path string, err error) {
	metrics.RecordSnapshotLoad(0, false, err)
	logging.Warn().Err(err).
		Str("backend", cfg.Backend).
		Str("path", path).
		Msg("Snapshot store unavailable, continuing with the model in memory only")
}

// newPersister returns the snapshot persister for cfg, or nil when
// persistence is disabled.
func newPersister(cfg *config.PersistenceConfig, store storage.BlobStore) *storage.Persister[algorithms.Snapshot] {
	if store == nil {
		return nil
	}
	return storage.NewPersister[algorithms.Snapshot](store, cfg.Key).
		WithLogger(logging.WithComponent("snapshot"))
}
