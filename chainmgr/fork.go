// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainmgr

import (
	"errors"
	"sync"
	"time"

	"github.com/luxfi/qnet/reputation"
	"github.com/luxfi/qnet/types"
)

// ForkResolutionCooldown rate-limits reorg passes (spec §4.9: "at most one
// fork-resolution pass per 60s").
const ForkResolutionCooldown = 60 * time.Second

// MinReorgValidators is the minimum number of high-reputation validators
// that must sign the remote branch's last macroblock-covered region for an
// equal-height reorg to proceed.
const MinReorgValidators = 3

// MinReorgValidatorScore is the consensus_score floor a validator's
// signature must clear to count toward MinReorgValidators.
const MinReorgValidatorScore = 70.0

// ErrReorgInProgress is returned when a reorg is attempted while another is
// already running (spec §4.9: "at most one concurrent reorg").
var ErrReorgInProgress = errors.New("chainmgr: reorg already in progress")

// Decision is the outcome of a fork-resolution pass.
type Decision int

const (
	DecisionKeepLocal Decision = iota
	DecisionAdoptRemote
	DecisionWait
)

// ForkResolver serializes and rate-limits reorg decisions (spec §4.9).
type ForkResolver struct {
	mu          sync.Mutex
	lastResolve time.Time
	reorging    bool
}

// NewForkResolver returns a resolver ready to act immediately.
func NewForkResolver() *ForkResolver { return &ForkResolver{} }

// Resolve decides between the local and remote chain views, deterministically
// and the same way on every node (spec §4.9):
//   - remote height > local height: adopt remote.
//   - equal heights: adopt remote only if at least MinReorgValidators
//     distinct validators with consensus_score >= MinReorgValidatorScore
//     signed the remote branch's last macroblock-covered region.
//   - local height > remote height: keep local.
func Resolve(localHeight, remoteHeight uint64, remoteBranchSigners []types.Address, registry *reputation.Registry) Decision {
	switch {
	case remoteHeight > localHeight:
		return DecisionAdoptRemote
	case remoteHeight < localHeight:
		return DecisionKeepLocal
	default:
		if countHighReputationSigners(remoteBranchSigners, registry) >= MinReorgValidators {
			return DecisionAdoptRemote
		}
		return DecisionWait
	}
}

func countHighReputationSigners(signers []types.Address, registry *reputation.Registry) int {
	seen := make(map[types.Address]bool, len(signers))
	count := 0
	for _, addr := range signers {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		e, ok := registry.Get(addr)
		if ok && e.ConsensusScore >= MinReorgValidatorScore {
			count++
		}
	}
	return count
}

// TryBegin claims the right to run one fork-resolution pass, enforcing both
// the 60s cooldown and the single-concurrent-reorg rule. The caller must
// call Finish when the pass completes.
func (r *ForkResolver) TryBegin(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reorging {
		return ErrReorgInProgress
	}
	if now.Sub(r.lastResolve) < ForkResolutionCooldown {
		return types.ValidationError("chainmgr.ForkResolver.TryBegin", errForkResolutionCooldown)
	}
	r.reorging = true
	r.lastResolve = now
	return nil
}

// Finish releases the in-progress lock taken by TryBegin.
func (r *ForkResolver) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reorging = false
}

var errForkResolutionCooldown = errors.New("chainmgr: fork resolution rate limited")
