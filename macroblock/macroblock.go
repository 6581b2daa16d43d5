// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package macroblock implements the 90-microblock-window commit-reveal BFT
// coordinator (spec §4.8): validators commit to a proposed state_root
// during blocks 61-90, reveal during block 90, and the window finalizes
// once a single state_root clears 2/3 of the eligible validator set. The
// accumulate-votes/check-threshold shape is grounded on the teacher's
// quorum package (threshold/simple_threshold.go's RecordPrism/Finalized),
// reduced from Snowball's multi-round confidence counting to the
// single-round majority check this spec calls for.
package macroblock

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/qnet/codec"
	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/crypto/hybrid"
	"github.com/luxfi/qnet/types"
)

var (
	errWindowFinalized  = errors.New("macroblock: window already finalized")
	errNoMatchingCommit = errors.New("macroblock: reveal has no matching commit")
	errRevealMismatch   = errors.New("macroblock: reveal does not match commit hash")
)

// WindowSize is the number of consecutive microblocks one macroblock
// finalizes (spec §3, §4.8).
const WindowSize = 90

// CommitPhaseStart is the first height (1-indexed within the window) at
// which commit messages are accepted.
const CommitPhaseStart = 61

// EligibilityThreshold is the minimum consensus_score a validator needs to
// participate in macroblock voting (spec §4.8).
const EligibilityThreshold = 70.0

// MaxEligibleValidators caps the sampled eligible set.
const MaxEligibleValidators = 1000

// FinalizationFraction is the fraction of the eligible set a single
// state_root must clear to finalize the window.
const FinalizationFraction = 2.0 / 3.0

// Timeout schedule (spec §4.8): initial phase allows the longest window,
// successive grace extensions tighten it.
const (
	InitialTimeout = 20 * time.Second
	SecondTimeout  = 10 * time.Second
	SteadyTimeout  = 7 * time.Second
	GraceExtension = 30 // microblocks added per missed finalization attempt
)

// LeaderReward and ParticipantReward are the consensus_score deltas applied
// on a successful finalization (spec §4.8).
const (
	LeaderReward      = 10
	ParticipantReward = 5
)

// MacroHeight returns the macroblock index a given microblock height falls
// within (1-indexed heights; height 1..90 -> macro 0).
func MacroHeight(height uint64) uint64 {
	if height == 0 {
		return 0
	}
	return (height - 1) / WindowSize
}

// WindowBounds returns the [first, last] microblock heights of macroHeight.
func WindowBounds(macroHeight uint64) (first, last uint64) {
	first = macroHeight*WindowSize + 1
	last = first + WindowSize - 1
	return
}

// Window accumulates commit and reveal messages for one macroblock window
// and tallies reveals toward finalization.
type Window struct {
	mu sync.Mutex

	macroHeight uint64
	first, last uint64

	commits map[types.Address]types.CommitEntry
	reveals map[types.Address]types.RevealEntry

	finalized bool
	result    *types.MacroBlock
}

// NewWindow starts tracking votes for macroHeight.
func NewWindow(macroHeight uint64) *Window {
	first, last := WindowBounds(macroHeight)
	return &Window{
		macroHeight: macroHeight,
		first:       first,
		last:        last,
		commits:     make(map[types.Address]types.CommitEntry),
		reveals:     make(map[types.Address]types.RevealEntry),
	}
}

// AddCommit records validator's commitment. Returns false if the window has
// already finalized or the validator already committed.
func (w *Window) AddCommit(c types.CommitEntry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return false
	}
	if _, dup := w.commits[c.ValidatorAddr]; dup {
		return false
	}
	w.commits[c.ValidatorAddr] = c
	return true
}

// AddReveal records validator's reveal, rejecting it if it does not match
// a prior commit (spec §4.8: "Verify commit matches reveal.").
func (w *Window) AddReveal(r types.RevealEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return types.ConsensusError("macroblock.AddReveal", errWindowFinalized)
	}
	c, ok := w.commits[r.ValidatorAddr]
	if !ok {
		return types.ConsensusError("macroblock.AddReveal", errNoMatchingCommit)
	}
	if c.CommitHash != r.CommitHash() {
		return types.ConsensusError("macroblock.AddReveal", errRevealMismatch)
	}
	w.reveals[r.ValidatorAddr] = r
	return nil
}

// Tally counts valid reveals per claimed state_root, grounded on the same
// accumulate-then-check shape as threshold.RecordPrism/Finalized, reduced
// to a single round: every reveal is one vote, no confidence rounds.
func (w *Window) Tally() map[canon.Hash256]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	counts := make(map[canon.Hash256]int)
	for _, r := range w.reveals {
		counts[r.Vote]++
	}
	return counts
}

// TryFinalize checks whether any candidate state_root has cleared
// FinalizationFraction of eligibleCount; if so it builds and caches the
// MacroBlock, recording reward deltas for the leading voters (spec §4.8:
// leader +10, each participant +5). The leader is the winning root's voter
// with the lowest address, which attributes the leader bonus
// deterministically; every other voter for that root is a participant.
func (w *Window) TryFinalize(eligibleCount int, nowMicros int64) (*types.MacroBlock, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finalized {
		return w.result, true
	}
	if eligibleCount == 0 {
		return nil, false
	}

	counts := make(map[canon.Hash256]int)
	winners := make(map[canon.Hash256][]types.Address)
	for addr, r := range w.reveals {
		counts[r.Vote]++
		winners[r.Vote] = append(winners[r.Vote], addr)
	}

	needed := int(FinalizationFraction * float64(eligibleCount))
	if float64(needed) < FinalizationFraction*float64(eligibleCount) {
		needed++ // round up: a root must reach at least 2/3, not just its floor
	}
	var winningRoot canon.Hash256
	found := false
	for root, n := range counts {
		if n >= needed {
			winningRoot = root
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}

	participants := winners[winningRoot]
	sort.Slice(participants, func(i, j int) bool { return string(participants[i][:]) < string(participants[j][:]) })

	deltas := make(map[types.Address]int64, len(participants))
	for i, addr := range participants {
		if i == 0 {
			deltas[addr] = LeaderReward
		} else {
			deltas[addr] = ParticipantReward
		}
	}

	revealSet := make([]types.RevealEntry, 0, len(w.reveals))
	for _, r := range w.reveals {
		revealSet = append(revealSet, r)
	}
	commitSet := make([]types.CommitEntry, 0, len(w.commits))
	for _, c := range w.commits {
		commitSet = append(commitSet, c)
	}

	mb := &types.MacroBlock{
		MacroHeight:  w.macroHeight,
		FirstHeight:  w.first,
		LastHeight:   w.last,
		StateRoot:    winningRoot,
		CommitSet:    commitSet,
		RevealSet:    revealSet,
		FinalizedAt:  nowMicros,
		RewardDeltas: deltas,
	}
	w.finalized = true
	w.result = mb
	return mb, true
}

// Finalized reports whether the window has already produced a MacroBlock.
func (w *Window) Finalized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finalized
}

// PhaseTimeout returns the commit/reveal round timeout for the grace
// attempt-th extension of this window (0 = the window's initial attempt).
func PhaseTimeout(attempt int) time.Duration {
	switch attempt {
	case 0:
		return InitialTimeout
	case 1:
		return SecondTimeout
	default:
		return SteadyTimeout
	}
}

// SignCommit and SignReveal produce the hybrid signature over a commit or
// reveal message's canonical bytes, letting callers fill in Signature
// before broadcasting (spec §4.8's "hybrid_signature" field on both
// message kinds).
func SignCommit(sk *hybrid.PrivateKey, c *types.CommitEntry) error {
	sig, err := hybrid.Sign(sk, commitSigningBytes(c))
	if err != nil {
		return err
	}
	c.Signature = codec.EncodeHybridSignature(sig)
	return nil
}

func SignReveal(sk *hybrid.PrivateKey, r *types.RevealEntry) error {
	sig, err := hybrid.Sign(sk, revealSigningBytes(r))
	if err != nil {
		return err
	}
	r.Signature = codec.EncodeHybridSignature(sig)
	return nil
}

func commitSigningBytes(c *types.CommitEntry) []byte {
	buf := make([]byte, 0, types.AddressLen+32+8)
	buf = append(buf, c.ValidatorAddr[:]...)
	buf = append(buf, c.CommitHash[:]...)
	buf = appendI64(buf, c.Timestamp)
	return buf
}

func revealSigningBytes(r *types.RevealEntry) []byte {
	buf := make([]byte, 0, types.AddressLen+32+16)
	buf = append(buf, r.ValidatorAddr[:]...)
	buf = append(buf, r.Vote[:]...)
	buf = appendU64(buf, r.Nonce)
	buf = appendI64(buf, r.Timestamp)
	return buf
}

func appendU64(buf []byte, v uint64) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func appendI64(buf []byte, v int64) []byte { return appendU64(buf, uint64(v)) }
