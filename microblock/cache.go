// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package microblock

import (
	"container/list"
	"sync"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/types"
)

// PreExecCacheSize bounds the pre-execution cache at 10,000 entries (spec
// §4.7 "Pre-execution cache").
const PreExecCacheSize = 10_000

// StateDelta is the account-level effect of speculatively applying one
// transaction, cached so a later block-building pass can skip re-executing
// transactions whose inputs have not changed underneath it.
type StateDelta struct {
	TxHash  canon.Hash256
	Reads   []types.Address // accounts consulted (the cache's invalidation key-set)
	Writes  map[types.Address]types.AccountState
	Applies bool // false if execution determined the TX must be skipped
}

type cacheEntry struct {
	key   canon.Hash256
	delta StateDelta
}

// PreExecCache is an LRU cache of speculative transaction execution results,
// keyed by tx_hash and invalidated whenever a write lands on an account any
// cached entry read (spec §4.7: "Entries invalidated on any write to
// accounts they read. Hit rate is a performance, not correctness,
// optimization."). No LRU/cache library appears in the retrieval pack, so
// this is built directly on stdlib container/list, the same ring the
// teacher's own in-process caches are absent of a substitute for (see
// DESIGN.md).
type PreExecCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[canon.Hash256]*list.Element
}

// NewPreExecCache returns an empty cache bounded at PreExecCacheSize.
func NewPreExecCache() *PreExecCache {
	return &PreExecCache{
		capacity: PreExecCacheSize,
		ll:       list.New(),
		items:    make(map[canon.Hash256]*list.Element),
	}
}

// Get returns the cached delta for txHash, if present and not stale.
func (c *PreExecCache) Get(txHash canon.Hash256) (StateDelta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[txHash]
	if !ok {
		return StateDelta{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).delta, true
}

// Put inserts or refreshes delta, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *PreExecCache) Put(delta StateDelta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[delta.TxHash]; ok {
		el.Value.(*cacheEntry).delta = delta
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: delta.TxHash, delta: delta})
	c.items[delta.TxHash] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Invalidate drops every cached entry whose Reads set intersects written, the
// account set a just-applied transaction mutated.
func (c *PreExecCache) Invalidate(written map[types.Address]struct{}) {
	if len(written) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var stale []*list.Element
	for el := c.ll.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*cacheEntry)
		for _, r := range entry.delta.Reads {
			if _, hit := written[r]; hit {
				stale = append(stale, el)
				break
			}
		}
	}
	for _, el := range stale {
		c.ll.Remove(el)
		delete(c.items, el.Value.(*cacheEntry).key)
	}
}

// Len reports the number of entries currently cached.
func (c *PreExecCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
