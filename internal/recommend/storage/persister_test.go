// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestPersister_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			p := NewPersister[testState](store, "loom_ncf_v1")

			if _, err := p.Load(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load() on empty store error = %v, want ErrNotFound", err)
			}

			want := sampleState()
			size, err := p.Save(ctx, &want)
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if size <= 0 {
				t.Errorf("Save() size = %d, want > 0", size)
			}

			got, err := p.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Counts["u1"] != 5 || len(got.Users) != 2 {
				t.Errorf("Load() = %+v", got)
			}
		})
	}
}

func TestPersister_Accessors(t *testing.T) {
	t.Parallel()

	p := NewPersister[testState](NewMemoryStore(), "snap")
	if p.Key() != "snap" || p.Backend() != "memory" {
		t.Errorf("Key/Backend = %q/%q", p.Key(), p.Backend())
	}
}

func TestPersister_CorruptBlob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Save(ctx, "snap", []byte("garbage")); err != nil {
		t.Fatal(err)
	}

	p := NewPersister[testState](store, "snap")
	_, err := p.Load(ctx)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want a decode failure", err)
	}
}

func TestPersister_StoreFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := newFlakyStore()
	inner.failing.Store(true)
	p := NewPersister[testState](inner, "snap")

	state := sampleState()
	if _, err := p.Save(ctx, &state); !errors.Is(err, errUnavailable) {
		t.Errorf("Save() error = %v, want errUnavailable", err)
	}
	if _, err := p.Load(ctx); !errors.Is(err, errUnavailable) {
		t.Errorf("Load() error = %v, want errUnavailable", err)
	}
}

func TestPersister_FallsBackToOlderVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wrap func(*FileStore) BlobStore
	}{
		{name: "file", wrap: func(fs *FileStore) BlobStore { return fs }},
		{name: "file behind breaker", wrap: func(fs *FileStore) BlobStore {
			return NewBreakerStore(fs, DefaultBreakerSettings(), zerolog.Nop())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			fs, err := NewFileStore(t.TempDir(), 3)
			if err != nil {
				t.Fatalf("NewFileStore() error = %v", err)
			}

			var logs bytes.Buffer
			p := NewPersister[testState](tt.wrap(fs), "loom_ncf_v1").WithLogger(zerolog.New(&logs))

			older := sampleState()
			if _, err := p.Save(ctx, &older); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			newer := sampleState()
			newer.Counts["u1"] = 9
			if _, err := p.Save(ctx, &newer); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			latest, ok := fs.LatestVersion("loom_ncf_v1")
			if !ok || latest != 2 {
				t.Fatalf("LatestVersion() = %d, %v, want 2", latest, ok)
			}
			if err := os.WriteFile(fs.path("loom_ncf_v1", latest), []byte("torn write"), 0o600); err != nil {
				t.Fatal(err)
			}

			got, err := p.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v, want the older version", err)
			}
			if got.Counts["u1"] != 5 {
				t.Errorf("Load() counts = %v, want the version 1 value 5", got.Counts)
			}
			if !bytes.Contains(logs.Bytes(), []byte("loaded an older version")) {
				t.Errorf("fallback not logged: %s", logs.String())
			}
		})
	}
}

func TestPersister_NoReadableVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	for _, data := range []string{"bad one", "bad two"} {
		if err := fs.Save(ctx, "snap", []byte(data)); err != nil {
			t.Fatal(err)
		}
	}

	p := NewPersister[testState](fs, "snap")
	if _, err := p.Load(ctx); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want a decode failure", err)
	}
}

func TestFileStore_LoadVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	for _, data := range []string{"one", "two", "three"} {
		if err := fs.Save(ctx, "snap", []byte(data)); err != nil {
			t.Fatal(err)
		}
	}

	versions, err := fs.Versions("snap")
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 2 || versions[0] != 3 || versions[1] != 2 {
		t.Fatalf("Versions() = %v, want [3 2]", versions)
	}

	got, err := fs.LoadVersion(ctx, "snap", 2)
	if err != nil || string(got) != "two" {
		t.Errorf("LoadVersion(2) = %q, %v, want two", got, err)
	}
	if _, err := fs.LoadVersion(ctx, "snap", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadVersion(1) error = %v, want ErrNotFound after pruning", err)
	}
}
