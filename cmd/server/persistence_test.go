// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/loomfeed/internal/config"
	"github.com/tomtom215/loomfeed/internal/recommend/storage"
)

func TestOpenStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		backend  string
		breaker  bool
		wantNil  bool
		wantName string
	}{
		{name: "none", backend: config.BackendNone, wantNil: true},
		{name: "memory", backend: config.BackendMemory, wantName: "memory"},
		{name: "file", backend: config.BackendFile, wantName: "file"},
		{name: "badger", backend: config.BackendBadger, wantName: "badger"},
		{name: "memory with breaker", backend: config.BackendMemory, breaker: true, wantName: "memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			cfg := config.Default().Persistence
			cfg.Backend = tt.backend
			cfg.Dir = filepath.Join(dir, "snapshots")
			cfg.BadgerPath = filepath.Join(dir, "badger")
			cfg.Breaker.Enabled = tt.breaker

			store, closeFn, err := openStore(&cfg)
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			t.Cleanup(func() {
				if err := closeFn(); err != nil {
					t.Errorf("close error = %v", err)
				}
			})

			if tt.wantNil {
				if store != nil {
					t.Fatalf("openStore() = %v, want nil", store)
				}
				if p := newPersister(&cfg, store); p != nil {
					t.Errorf("newPersister() = %v, want nil", p)
				}
				return
			}

			if store == nil {
				t.Fatal("openStore() returned nil store")
			}
			if _, ok := store.(*storage.BreakerStore); ok != tt.breaker {
				t.Errorf("store is breaker = %v, want %v", ok, tt.breaker)
			}

			p := newPersister(&cfg, store)
			if p == nil {
				t.Fatal("newPersister() = nil")
			}
			if p.Backend() != tt.wantName {
				t.Errorf("Backend() = %q, want %q", p.Backend(), tt.wantName)
			}
			if p.Key() != cfg.Key {
				t.Errorf("Key() = %q, want %q", p.Key(), cfg.Key)
			}

			ctx := context.Background()
			if _, err := p.Load(ctx); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("Load() on empty store error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Persistence
	cfg.Backend = "s3"

	store, closeFn, err := openStore(&cfg)
	if err == nil {
		t.Fatal("openStore() error = nil, want error")
	}
	if store != nil {
		t.Errorf("openStore() store = %v, want nil", store)
	}
	if closeFn == nil {
		t.Fatal("close function is nil")
	}
	if err := closeFn(); err != nil {
		t.Errorf("close error = %v", err)
	}
}

func TestOpenStoreUnavailableDegradesToMemory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend string
	}{
		{name: "file", backend: config.BackendFile},
		{name: "badger", backend: config.BackendBadger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// A regular file where a directory is expected makes the path unusable.
			blocker := filepath.Join(t.TempDir(), "blocker")
			if err := os.WriteFile(blocker, []byte("not a directory"), 0o600); err != nil {
				t.Fatal(err)
			}

			cfg := config.Default().Persistence
			cfg.Backend = tt.backend
			cfg.Dir = filepath.Join(blocker, "snapshots")
			cfg.BadgerPath = filepath.Join(blocker, "badger")

			store, closeFn, err := openStore(&cfg)
			if err != nil {
				t.Fatalf("openStore() error = %v, want nil so startup continues", err)
			}
			if store != nil {
				t.Errorf("openStore() store = %v, want nil (persistence disabled)", store)
			}
			if p := newPersister(&cfg, store); p != nil {
				t.Errorf("newPersister() = %v, want nil", p)
			}
			if closeFn == nil {
				t.Fatal("close function is nil")
			}
			if err := closeFn(); err != nil {
				t.Errorf("close error = %v", err)
			}
		})
	}
}
