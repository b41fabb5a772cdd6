// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// codecFormat is bumped whenever the envelope layout changes.
const codecFormat = 1

// maxDecodedSize bounds decompression of untrusted blobs.
const maxDecodedSize = 1 << 30

var (
	// ErrChecksumMismatch is returned when a blob's payload does not match
	// its recorded checksum.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

	// ErrUnsupportedFormat is returned for envelopes written by an unknown
	// codec version.
	ErrUnsupportedFormat = errors.New("unsupported snapshot format")
)

// envelope is the encoded form of every blob.
type envelope struct {
	Format         int
	Checksum       string
	SavedAt        time.Time
	CompressedData []byte
}

// Encode serializes v into a checksummed, compressed blob.
func Encode(v any) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(v); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	env := envelope{
		Format:         codecFormat,
		Checksum:       hex.EncodeToString(hash[:]),
		SavedAt:        time.Now().UTC(),
		CompressedData: compressed.Bytes(),
	}

	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(env); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out.Bytes(), nil
}

// Decode verifies and deserializes a blob produced by Encode into v,
// which must be a pointer.
func Decode(data []byte, v any) error {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return fmt.Errorf("read envelope: %w", err)
	}
	if env.Format != codecFormat {
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, env.Format)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(env.CompressedData))
	if err != nil {
		return fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(io.LimitReader(gzr, maxDecodedSize))
	if err != nil {
		return fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != env.Checksum {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, env.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return nil
}
