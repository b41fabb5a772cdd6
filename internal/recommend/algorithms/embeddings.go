// Loomfeed - Hybrid Feed Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/loomfeed

package algorithms

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// embeddingTable stores embeddings keyed by identifier.
// With a positive capacity it evicts the least recently used identifier;
// otherwise it grows without bound.
//
// Mutation (put) must happen under the owning model's write lock. The LRU
// variant is internally synchronized, so get is safe under a read lock.
type embeddingTable struct {
	items     map[string][]float64
	cache     *lru.Cache[string, []float64]
	evictions atomic.Int64
}

func newEmbeddingTable(capacity int) *embeddingTable {
	t := &embeddingTable{}
	if capacity <= 0 {
		t.items = make(map[string][]float64)
		return t
	}

	cache, err := lru.NewWithEvict[string, []float64](capacity, func(string, []float64) {
		t.evictions.Add(1)
	})
	if err != nil {
		// Only returned for non-positive sizes, excluded above.
		t.items = make(map[string][]float64)
		return t
	}
	t.cache = cache
	return t
}

func (t *embeddingTable) get(id string) ([]float64, bool) {
	if t.cache != nil {
		return t.cache.Get(id)
	}
	v, ok := t.items[id]
	return v, ok
}

func (t *embeddingTable) put(id string, v []float64) {
	if t.cache != nil {
		t.cache.Add(id, v)
		return
	}
	t.items[id] = v
}

func (t *embeddingTable) len() int {
	if t.cache != nil {
		return t.cache.Len()
	}
	return len(t.items)
}

// each visits every embedding without touching recency.
func (t *embeddingTable) each(fn func(id string, v []float64)) {
	if t.cache != nil {
		for _, id := range t.cache.Keys() {
			if v, ok := t.cache.Peek(id); ok {
				fn(id, v)
			}
		}
		return
	}
	for id, v := range t.items {
		fn(id, v)
	}
}

// reset drops every embedding, keeping the capacity policy.
func (t *embeddingTable) reset() {
	if t.cache != nil {
		evicted := t.evictions.Load()
		t.cache.Purge()
		t.evictions.Store(evicted)
		return
	}
	t.items = make(map[string][]float64)
}
