// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned by Load when no blob exists under the key.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidKey is returned for keys that cannot be stored safely.
	ErrInvalidKey = errors.New("invalid snapshot key")
)

// BlobStore saves and loads opaque blobs under named keys.
type BlobStore interface {
	// Load returns the blob stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores data under key, replacing any previous blob.
	Save(ctx context.Context, key string, data []byte) error

	// Name identifies the backend in logs and health output.
	Name() string
}

// VersionedStore is a BlobStore that keeps older versions of a key.
type VersionedStore interface {
	BlobStore

	// Versions lists the stored versions of key, newest first.
	Versions(key string) ([]int, error)

	// LoadVersion returns one stored version of key, or ErrNotFound.
	LoadVersion(ctx context.Context, key string, version int) ([]byte, error)
}

// versionedStore finds a VersionedStore behind any Unwrap chain.
func versionedStore(store BlobStore) (VersionedStore, bool) {
	for store != nil {
		if vs, ok := store.(VersionedStore); ok {
			return vs, true
		}
		u, ok := store.(interface{ Unwrap() BlobStore })
		if !ok {
			return nil, false
		}
		store = u.Unwrap()
	}
	return nil, false
}

// ValidateKey rejects keys that are empty or could escape a directory.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if len(key) > 128 {
		return fmt.Errorf("%w: longer than 128 characters", ErrInvalidKey)
	}
	if strings.ContainsAny(key, `/\:`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q contains path characters", ErrInvalidKey, key)
	}
	return nil
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Load returns a copy of the blob under key.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

// Save stores a copy of data under key.
func (s *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = slices.Clone(data)
	return nil
}

// Name returns "memory".
func (s *MemoryStore) Name() string {
	return "memory"
}

var _ BlobStore = (*MemoryStore)(nil)
