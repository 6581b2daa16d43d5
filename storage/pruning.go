// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import "github.com/luxfi/qnet/types"

// PruningWindow is the sliding window of microblocks (by height) whose
// bodies are retained after finalization (spec §4.3). Blocks older than
// head-PruningWindow, once covered by a finalized macroblock, have their
// bodies (tx list) deleted; headers and hashes are kept forever.
const PruningWindow = 100_000

// Pruner applies the sliding-window pruning policy against a Store.
type Pruner struct {
	store *Store
}

func NewPruner(store *Store) *Pruner {
	return &Pruner{store: store}
}

// Prune deletes microblock bodies older than PruningWindow blocks behind
// head, provided they are covered by a finalized macroblock
// (finalizedThroughHeight). It is idempotent: re-pruning an already-pruned
// block is a cheap no-op re-write.
func (p *Pruner) Prune(head, finalizedThroughHeight uint64) error {
	if head < PruningWindow {
		return nil
	}
	cutoff := head - PruningWindow
	if cutoff > finalizedThroughHeight {
		cutoff = finalizedThroughHeight
	}
	for h := uint64(1); h <= cutoff; h++ {
		ok, err := p.store.HasMicroBlock(h)
		if err != nil {
			return types.StorageError("storage.Pruner.Prune", err)
		}
		if !ok {
			continue
		}
		if err := p.store.PruneMicroBlockBody(h); err != nil {
			return types.StorageError("storage.Pruner.Prune", err)
		}
	}
	return nil
}
