// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/loomfeed/internal/metrics"
)

// Persister loads and saves one typed value under a fixed key.
type Persister[T any] struct {
	store  BlobStore
	key    string
	logger zerolog.Logger
}

// NewPersister creates a persister for key on store.
func NewPersister[T any](store BlobStore, key string) *Persister[T] {
	return &Persister[T]{store: store, key: key, logger: zerolog.Nop()}
}

// WithLogger sets the logger used to report version fallbacks and returns p.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func (p *Persister[T]) WithLogger(logger zerolog.Logger) *Persister[T] {
	p.logger = logger
	return p
}

// Key returns the snapshot key.
func (p *Persister[T]) Key() string {
	return p.key
}

// Backend returns the store name.
func (p *Persister[T]) Backend() string {
	return p.store.Name()
}

// Load reads and decodes the stored value. It returns ErrNotFound when the
// store has nothing under the key.
func (p *Persister[T]) Load(ctx context.Context) (*T, error) {
	start := time.Now()

	data, err := p.store.Load(ctx, p.key)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordSnapshotLoad(time.Since(start), true, nil)
		return nil, err
	}
	if err != nil {
		metrics.RecordSnapshotLoad(time.Since(start), false, err)
		return nil, fmt.Errorf("load %s from %s: %w", p.key, p.store.Name(), err)
	}

	v := new(T)
	if err := Decode(data, v); err != nil {
		if older, ok := p.loadOlder(ctx, err); ok {
			metrics.RecordSnapshotLoad(time.Since(start), false, nil)
			return older, nil
		}
		metrics.RecordSnapshotLoad(time.Since(start), false, err)
		return nil, fmt.Errorf("load %s from %s: %w", p.key, p.store.Name(), err)
	}

	metrics.RecordSnapshotLoad(time.Since(start), false, nil)
	return v, nil
}

// loadOlder walks the retained versions behind a newest blob that failed to
// decode and returns the first one that decodes. Stores without versions
// have nothing to fall back to.
func (p *Persister[T]) loadOlder(ctx context.Context, cause error) (*T, bool) {
	vs, ok := versionedStore(p.store)
	if !ok {
		return nil, false
	}
	versions, err := vs.Versions(p.key)
	if err != nil || len(versions) < 2 {
		return nil, false
	}

	// versions[0] is the blob that just failed.
	for _, version := range versions[1:] {
		data, err := vs.LoadVersion(ctx, p.key, version)
		if err != nil {
			continue
		}
		v := new(T)
		if err := Decode(data, v); err != nil {
			continue
		}
		p.logger.Warn().Err(cause).
			Str("key", p.key).
			Int("skipped_version", versions[0]).
			Int("version", version).
			Msg("newest snapshot unreadable, loaded an older version")
		return v, true
	}
	return nil, false
}

// Save encodes v and writes it under the key. It returns the encoded size.
func (p *Persister[T]) Save(ctx context.Context, v *T) (int, error) {
	start := time.Now()

	data, err := Encode(v)
	if err != nil {
		metrics.RecordSnapshotSave(time.Since(start), 0, err)
		return 0, err
	}

	if err := p.store.Save(ctx, p.key, data); err != nil {
		metrics.RecordSnapshotSave(time.Since(start), len(data), err)
		return 0, fmt.Errorf("save %s to %s: %w", p.key, p.store.Name(), err)
	}

	metrics.RecordSnapshotSave(time.Since(start), len(data), nil)
	return len(data), nil
}
