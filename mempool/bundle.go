// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"errors"
	"sync"
	"time"

	"github.com/luxfi/qnet/types"
)

var (
	errBundleScoreTooLow = errors.New("mempool: submitter consensus_score below bundle threshold")
	errBundleSize        = errors.New("mempool: bundle size out of range")
	errBundlePremium     = errors.New("mempool: bundle gas premium too low")
	errBundleDeadline    = errors.New("mempool: bundle deadline too far in the future")
	errBundleRateLimited = errors.New("mempool: bundle submission rate limited")
)

// BundleMinConsensusScore is the minimum consensus_score required to submit
// a private bundle (spec §4.4).
const BundleMinConsensusScore = 80.0

// BundleMaxTxs is the maximum number of transactions in one bundle.
const BundleMaxTxs = 10

// BundleMinGasPremium is the minimum multiple of the pool's current base
// gas price a bundle must offer.
const BundleMinGasPremium = 1.2

// BundleMaxDeadline bounds how far in the future a bundle's deadline may be
// set, relative to submission time.
const BundleMaxDeadline = 60 * time.Second

// BundleBlockShare is the maximum fraction of a block's transaction slots
// private bundles may occupy; the remainder always comes from the public
// pool (spec I7).
const BundleBlockShare = 0.20

// BundleRateLimit is the maximum number of bundles one submitter may submit
// per minute.
const BundleRateLimit = 10
const bundleRateLimitWindow = time.Minute

// Bundle is an atomically-included group of transactions submitted outside
// the public mempool (spec §4.4).
type Bundle struct {
	Txs          []*types.Transaction
	Submitter    types.Address
	GasPremium   float64
	Deadline     time.Time
	Signature    []byte // ML-DSA signature over the bundle's canonical body
	SubmittedAt  time.Time
}

// TotalGasPrice sums the bundle's constituent gas prices, the value block
// composition ranks competing bundles by.
func (b *Bundle) TotalGasPrice() uint64 {
	var total uint64
	for _, tx := range b.Txs {
		total += tx.GasPrice
	}
	return total
}

// BundlePool holds pending private bundles, gated by submitter
// consensus_score and a per-submitter rate limit.
type BundlePool struct {
	mu          sync.Mutex
	bundles     []*Bundle
	submitCount map[types.Address][]time.Time // sliding-window submission timestamps
}

func NewBundlePool() *BundlePool {
	return &BundlePool{submitCount: make(map[types.Address][]time.Time)}
}

// Submit validates and queues a bundle. consensusScore is the submitter's
// current score, looked up by the caller from the reputation registry.
func (bp *BundlePool) Submit(b *Bundle, consensusScore float64, baseGasPrice uint64, now time.Time) error {
	if consensusScore < BundleMinConsensusScore {
		return types.ValidationError("mempool.Submit", errBundleScoreTooLow)
	}
	if len(b.Txs) == 0 || len(b.Txs) > BundleMaxTxs {
		return types.ValidationError("mempool.Submit", errBundleSize)
	}
	if float64(b.TotalGasPrice()) < BundleMinGasPremium*float64(baseGasPrice)*float64(len(b.Txs)) {
		return types.ValidationError("mempool.Submit", errBundlePremium)
	}
	if b.Deadline.After(now.Add(BundleMaxDeadline)) {
		return types.ValidationError("mempool.Submit", errBundleDeadline)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	window := bp.submitCount[b.Submitter]
	cutoff := now.Add(-bundleRateLimitWindow)
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= BundleRateLimit {
		return types.ValidationError("mempool.Submit", errBundleRateLimited)
	}
	bp.submitCount[b.Submitter] = append(kept, now)

	b.SubmittedAt = now
	bp.bundles = append(bp.bundles, b)
	return nil
}

// Take returns bundles ranked by TotalGasPrice descending whose combined
// transaction count fits within maxBundleTxs (spec §4.4: "at most 20% of
// block space"), dropping any bundle whose Deadline has passed. Selection
// is all-or-nothing per bundle (spec: "Bundle inclusion is atomic").
func (bp *BundlePool) Take(maxBundleTxs int, now time.Time) []*Bundle {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	live := bp.bundles[:0]
	var candidates []*Bundle
	for _, b := range bp.bundles {
		if now.After(b.Deadline) {
			continue // expired: caller is expected to resubmit to the public pool
		}
		live = append(live, b)
		candidates = append(candidates, b)
	}
	bp.bundles = live

	sortByTotalGasPriceDesc(candidates)

	var selected []*Bundle
	used := 0
	for _, b := range candidates {
		if used+len(b.Txs) > maxBundleTxs {
			continue
		}
		selected = append(selected, b)
		used += len(b.Txs)
	}
	return selected
}

func sortByTotalGasPriceDesc(bundles []*Bundle) {
	for i := 1; i < len(bundles); i++ {
		for j := i; j > 0 && bundles[j].TotalGasPrice() > bundles[j-1].TotalGasPrice(); j-- {
			bundles[j], bundles[j-1] = bundles[j-1], bundles[j]
		}
	}
}

// BundleSlotsForBlockSize returns the number of transaction slots reserved
// for bundles given a block's total transaction capacity (spec §4.4/I7).
func BundleSlotsForBlockSize(blockCapacity int) int {
	return int(BundleBlockShare * float64(blockCapacity))
}
