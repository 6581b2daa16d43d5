// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainmgr

import (
	"sync"
	"time"

	"github.com/luxfi/qnet/types"
)

// BufferMaxRetries is the maximum number of times a buffered block may be
// re-attempted before it is dropped (spec §4.9).
const BufferMaxRetries = 3

// BufferCleanupAge drops any buffered entry older than this regardless of
// retry count.
const BufferCleanupAge = 60 * time.Second

// BufferMaxSize caps the number of heights the out-of-order buffer may
// hold at once, bounding memory under a flood of unlinkable blocks.
const BufferMaxSize = 10_000

// RescanWindow is how far ahead of a newly-applied height the buffer is
// re-scanned for now-linkable blocks (spec §4.9: "[N+1 .. N+10]").
const RescanWindow = 10

type bufferedBlock struct {
	block      *types.MicroBlock
	insertedAt time.Time
	retries    int
}

// Buffer holds microblocks received out of order, keyed by height, until
// their previous_hash becomes locally available.
type Buffer struct {
	mu      sync.Mutex
	entries map[uint64]*bufferedBlock
}

// NewBuffer returns an empty out-of-order buffer.
func NewBuffer() *Buffer {
	return &Buffer{entries: make(map[uint64]*bufferedBlock)}
}

// Add inserts block if the buffer has room and it is not already present;
// returns false if the buffer is full.
func (b *Buffer) Add(block *types.MicroBlock, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.entries[block.Height]; dup {
		return true
	}
	if len(b.entries) >= BufferMaxSize {
		return false
	}
	b.entries[block.Height] = &bufferedBlock{block: block, insertedAt: now}
	return true
}

// Get returns the buffered block at height, if any.
func (b *Buffer) Get(height uint64) (*types.MicroBlock, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[height]
	if !ok {
		return nil, false
	}
	return e.block, true
}

// MarkRetry increments height's retry counter, evicting it once
// BufferMaxRetries is exceeded. Returns false if the entry was evicted.
func (b *Buffer) MarkRetry(height uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[height]
	if !ok {
		return false
	}
	e.retries++
	if e.retries > BufferMaxRetries {
		delete(b.entries, height)
		return false
	}
	return true
}

// Remove drops height unconditionally, used once a buffered block has been
// successfully applied.
func (b *Buffer) Remove(height uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, height)
}

// Cleanup evicts every entry older than BufferCleanupAge.
func (b *Buffer) Cleanup(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var evicted int
	for h, e := range b.entries {
		if now.Sub(e.insertedAt) > BufferCleanupAge {
			delete(b.entries, h)
			evicted++
		}
	}
	return evicted
}

// Rescan returns buffered blocks at heights [fromHeight+1, fromHeight+
// RescanWindow] that are now present, letting the caller re-attempt
// validation for each once a gap-filling block arrives (spec §4.9: "On
// block #N arrival, re-scan buffer for heights [N+1..N+10]").
func (b *Buffer) Rescan(fromHeight uint64) []*types.MicroBlock {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*types.MicroBlock
	for h := fromHeight + 1; h <= fromHeight+RescanWindow; h++ {
		if e, ok := b.entries[h]; ok {
			out = append(out, e.block)
		}
	}
	return out
}

// Len returns the number of buffered heights.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
