// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"testing"
)

type testState struct {
	Weights []float64
	Users   map[string][]float64
	Counts  map[string]int64
}

func sampleState() testState {
	return testState{
		Weights: []float64{0.1, -0.2, 0.3},
		Users:   map[string][]float64{"u1": {1, 2}, "u2": {3, 4}},
		Counts:  map[string]int64{"u1": 5},
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	data, err := Encode(sampleState())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var got testState
	if err := Decode(data, &got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Weights) != 3 || got.Weights[1] != -0.2 {
		t.Errorf("Weights = %v", got.Weights)
	}
	if got.Users["u2"][1] != 4 || got.Counts["u1"] != 5 {
		t.Errorf("decoded state = %+v", got)
	}
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	data, err := Encode(sampleState())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	env.Checksum = "0000"
	var tampered bytes.Buffer
	if err := gob.NewEncoder(&tampered).Encode(env); err != nil {
		t.Fatalf("encode envelope: %v", err)
	}

	var got testState
	err = Decode(tampered.Bytes(), &got)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Decode() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Format: 99}); err != nil {
		t.Fatalf("encode envelope: %v", err)
	}

	var got testState
	if err := Decode(buf.Bytes(), &got); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Decode() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"random bytes", []byte("definitely not a snapshot")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got testState
			if err := Decode(tt.data, &got); err == nil {
				t.Error("Decode() expected error")
			}
		})
	}
}
