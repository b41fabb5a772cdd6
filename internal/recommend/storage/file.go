// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const snapshotExt = ".gob.gz"

// FileStore keeps versioned blobs as files in one directory.
//
// Every Save writes a new {key}_v{version}.gob.gz file and then prunes
// older versions beyond the retention count. Load reads the newest version;
// LoadVersion reaches the retained older ones.
type FileStore struct {
	baseDir string
	keep    int

	mu sync.RWMutex

	// Latest version per key
	versions map[string]int
}

// NewFileStore creates a store at baseDir keeping the newest keep versions
// per key. keep below 1 is treated as 1.
func NewFileStore(baseDir string, keep int) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for snapshot storage
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	if keep < 1 {
		keep = 1
	}

	s := &FileStore{
		baseDir:  baseDir,
		keep:     keep,
		versions: make(map[string]int),
	}

	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan existing snapshots: %w", err)
	}
	return s, nil
}

// Name returns "file".
func (s *FileStore) Name() string {
	return "file"
}

// Dir returns the snapshot directory.
func (s *FileStore) Dir() string {
	return s.baseDir
}

// scan records the newest version of every key found on disk.
func (s *FileStore) scan() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, version, ok := parseSnapshotFilename(entry.Name())
		if !ok {
			continue
		}
		if current, seen := s.versions[key]; !seen || version > current {
			s.versions[key] = version
		}
	}
	return nil
}

// parseSnapshotFilename splits "loom_ncf_v1_v12.gob.gz" into
// ("loom_ncf_v1", 12). The last "_v" separates key from version.
func parseSnapshotFilename(name string) (key string, version int, ok bool) {
	base, found := strings.CutSuffix(name, snapshotExt)
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(base, "_v")
	if idx < 1 {
		return "", 0, false
	}
	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version < 1 {
		return "", 0, false
	}
	return base[:idx], version, true
}

// Save writes data as the next version of key and prunes old versions.
func (s *FileStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.versions[key] + 1
	path := s.path(key, version)

	// Write to a temp file in the same directory, then rename into place
	tmp, err := os.CreateTemp(s.baseDir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // sync error takes precedence
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	s.versions[key] = version
	s.prune(key)
	return nil
}

// Load reads the newest version of key.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	version, ok := s.versions[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.LoadVersion(ctx, key, version)
}

// LoadVersion reads one retained version of key.
func (s *FileStore) LoadVersion(ctx context.Context, key string, version int) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key, version))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s v%d: %w", key, version, err)
	}
	return data, nil
}

// Versions returns the versions of key present on disk, newest first.
func (s *FileStore) Versions(key string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listVersions(key)
}

// LatestVersion returns the newest version of key.
func (s *FileStore) LatestVersion(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[key]
	return version, ok
}

func (s *FileStore) listVersions(key string) ([]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		k, v, ok := parseSnapshotFilename(entry.Name())
		if ok && k == key {
			versions = append(versions, v)
		}
	}
	slices.SortFunc(versions, func(a, b int) int { return b - a })
	return versions, nil
}

// prune removes versions of key beyond the retention count. Caller holds mu.
func (s *FileStore) prune(key string) {
	versions, err := s.listVersions(key)
	if err != nil {
		return
	}
	for _, v := range versions[min(s.keep, len(versions)):] {
		_ = os.Remove(s.path(key, v)) //nolint:errcheck // best-effort cleanup of old versions
	}
}

func (s *FileStore) path(key string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", key, version, snapshotExt))
}

var _ VersionedStore = (*FileStore)(nil)
