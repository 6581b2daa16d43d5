// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package microblock implements the per-second block-production pipeline
// (spec §4.7): pull transactions from the bundle and public mempools,
// speculatively execute them, fold the result into the PoH chain, sign and
// provisionally persist the block. The pipeline is grounded on the
// teacher's single-producer-per-slot block-building loop
// (engine/bft/consensus.go's block proposal path), generalized from
// DAG-vertex proposal to a linear, timestamp-gated microblock cadence.
package microblock

import (
	"fmt"
	"sort"
	"time"

	"github.com/luxfi/qnet/codec"
	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/crypto/hybrid"
	"github.com/luxfi/qnet/crypto/poh"
	"github.com/luxfi/qnet/mempool"
	"github.com/luxfi/qnet/types"
)

// BlockInterval is the minimum spacing between consecutive microblock
// timestamps, enforced by WaitGate.
const BlockInterval = 500 * time.Millisecond

// MaxTxsPerBlock bounds N_max, the number of transactions one microblock
// may include.
const MaxTxsPerBlock = 2000

// Executor speculatively applies one transaction against chain state,
// letting the pipeline skip, rather than slash, transactions that would
// fail (spec §4.7 step 3). The caller supplies the implementation; this
// package does not provide one.
type Executor interface {
	// Apply speculatively runs tx. ok=false means the TX must be skipped:
	// it is dropped from the block without further penalty.
	Apply(tx *types.Transaction) (delta StateDeltaApplier, ok bool, err error)
}

// StateDeltaApplier is the minimal surface the pipeline needs from an
// applied transaction's result: which accounts it read, for cache
// invalidation, and its resulting account-level effects.
type StateDeltaApplier interface {
	Reads() []types.Address
	Writes() map[types.Address]types.AccountState
}

// MempoolSource is the public mempool's pull surface.
type MempoolSource interface {
	Take(limit int, shardHint uint8) []*types.Transaction
}

// BundleSource is the private-bundle pool's pull surface.
type BundleSource interface {
	Take(maxBundleTxs int, now time.Time) []*mempool.Bundle
}

// Builder assembles, signs, and provisionally persists microblocks for the
// node currently scheduled as producer.
type Builder struct {
	Mempool  MempoolSource
	Bundles  BundleSource
	Executor Executor
	Clock    *poh.Clock
	Cache    *PreExecCache
	Signer   *hybrid.PrivateKey
}

// NewBuilder wires the production pipeline's collaborators.
func NewBuilder(mp MempoolSource, bundles BundleSource, exec Executor, clock *poh.Clock, signer *hybrid.PrivateKey) *Builder {
	return &Builder{
		Mempool:  mp,
		Bundles:  bundles,
		Executor: exec,
		Clock:    clock,
		Cache:    NewPreExecCache(),
		Signer:   signer,
	}
}

// WaitGate returns the timestamp to stamp the new block with: now, or
// prevTimestamp + BlockInterval if now is earlier (spec §4.7 step 1). It
// does not sleep; it only computes the gated timestamp.
func WaitGate(prevTimestampUs int64, now time.Time) time.Time {
	earliest := time.UnixMicro(prevTimestampUs).Add(BlockInterval)
	if now.Before(earliest) {
		return earliest
	}
	return now
}

// SelectTransactions pulls up to MaxTxsPerBlock transactions: at most
// BundleSlotsForBlockSize(MaxTxsPerBlock) slots reserved for bundles
// (highest total_gas_price first, all-or-nothing per bundle), the remainder
// filled from the public mempool by gas_price descending (spec §4.7 step
// 2, spec I7).
func (b *Builder) SelectTransactions(now time.Time) []*types.Transaction {
	bundleSlots := mempool.BundleSlotsForBlockSize(MaxTxsPerBlock)
	var out []*types.Transaction

	if b.Bundles != nil {
		for _, bundle := range b.Bundles.Take(bundleSlots, now) {
			out = append(out, bundle.Txs...)
		}
	}

	remaining := MaxTxsPerBlock - len(out)
	if remaining > 0 && b.Mempool != nil {
		out = append(out, b.Mempool.Take(remaining, 0)...)
	}
	return out
}

// speculativelyApply runs every candidate TX, skipping (not slashing) any
// that fail, consulting and maintaining the pre-execution cache along the
// way (spec §4.7 step 3).
func (b *Builder) speculativelyApply(candidates []*types.Transaction) []*types.Transaction {
	included := make([]*types.Transaction, 0, len(candidates))

	for _, tx := range candidates {
		if cached, hit := b.Cache.Get(tx.Hash); hit {
			if !cached.Applies {
				continue
			}
			included = append(included, tx)
			continue
		}

		delta, ok, err := b.Executor.Apply(tx)
		if err != nil || !ok {
			b.Cache.Put(StateDelta{TxHash: tx.Hash, Applies: false})
			continue
		}
		writes := delta.Writes()
		written := make(map[types.Address]struct{}, len(writes))
		for addr := range writes {
			written[addr] = struct{}{}
		}
		// invalidate other cached entries this write makes stale before
		// caching the fresh one, so a TX never evicts its own new entry.
		b.Cache.Invalidate(written)
		b.Cache.Put(StateDelta{TxHash: tx.Hash, Reads: delta.Reads(), Writes: writes, Applies: true})
		included = append(included, tx)
	}

	return included
}

// Build runs the full single-microblock pipeline (spec §4.7 steps 1-6),
// signing under producerAddr's identity. The caller is responsible for
// having already confirmed producerAddr is the scheduled producer for this
// slot (producer.SelectProducer) and for persisting/broadcasting the
// result (storage.PutMicroBlock, then p2p propagation).
func (b *Builder) Build(prev *types.MicroBlock, producerAddr types.Address, round uint64, now time.Time) (*types.MicroBlock, error) {
	ts := WaitGate(prev.Timestamp, now)

	candidates := b.SelectTransactions(ts)
	included := b.speculativelyApply(candidates)

	txHashes := make([]canon.Hash256, len(included))
	for i, tx := range included {
		txHashes[i] = tx.Hash
	}
	merkleRoot := canon.MerkleRoot(txHashes)

	pohData := make([]byte, 0, 32*len(txHashes))
	for _, h := range txHashes {
		pohData = append(pohData, h[:]...)
	}
	entry := b.Clock.Advance(pohData)

	blk := &types.MicroBlock{
		Height:       prev.Height + 1,
		Round:        round,
		PrevHash:     prev.Hash(),
		ProducerAddr: producerAddr,
		Timestamp:    ts.UnixMicro(),
		PohHash:      entry.Hash,
		PohCount:     entry.NumHashes,
		TxHashes:     txHashes,
		Txs:          included,
		StateRoot:    merkleRoot,
	}

	sig, err := hybrid.Sign(b.Signer, blk.SigningBytes())
	if err != nil {
		return nil, fmt.Errorf("microblock: sign block %d: %w", blk.Height, err)
	}
	blk.Signature = codec.EncodeHybridSignature(sig)
	return blk, nil
}

// sortTxHashesFor returns a copy of hashes in ascending byte order, an
// ordering independent of map iteration for comparing merkle input sets.
func sortTxHashesFor(hashes []canon.Hash256) []canon.Hash256 {
	out := make([]canon.Hash256, len(hashes))
	copy(out, hashes)
	sort.Slice(out, func(i, j int) bool { return string(out[i][:]) < string(out[j][:]) })
	return out
}
