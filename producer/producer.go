// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package producer implements deterministic, entropy-seeded block-producer
// rotation (spec §4.6): every node computes the same single producer for
// an entire round from public chain state, so production is not
// negotiated. The sampling step — seed the selection from an accumulated
// hash and index deterministically into a candidate set — follows the
// same shape as the teacher's validators.Set.Sample, adapted from
// weighted-random sampling over a fixed validator set to a single
// SHA3-512-seeded index pick per round.
package producer

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/types"
)

// RoundSize is the number of consecutive microblocks one selected producer
// produces before the next round's selection takes over (spec §4.6 step 4).
const RoundSize = 30

// FinalityWindow is how far back (in blocks) the round's entropy source is
// taken from: height = max(0, H-FinalityWindow).
const FinalityWindow = 10

// MaxCandidates is the hard cap on the number of nodes considered for
// selection in any round, after ranking by consensus_score.
const MaxCandidates = 1000

// seedDomain is the fixed domain-separation string mixed into every round
// seed (spec §4.6 step 2).
const seedDomain = "QNet_Quantum_Producer_Selection_v3"

// Candidate is one node eligible for producer selection, carrying the
// consensus_score the ranking and seed formula both depend on.
type Candidate struct {
	Addr  types.Address
	Score float64
}

// RankCandidates sorts candidates by consensus_score descending, ties
// broken by node_id ascending, and caps the result at MaxCandidates (spec
// §4.6 step 1). The input slice is not mutated.
func RankCandidates(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return string(ranked[i].Addr[:]) < string(ranked[j].Addr[:])
	})
	if len(ranked) > MaxCandidates {
		ranked = ranked[:MaxCandidates]
	}
	return ranked
}

// Seed computes the round's selection seed:
// SHA3_512(domain || entropy || round_LE || concat(id || score_LE for each candidate))
// where entropy is the hash of the microblock at height max(0, H-FinalityWindow)
// (spec §4.6 step 2). candidates must already be ranked (RankCandidates).
func Seed(round uint64, entropy canon.Hash256, candidates []Candidate) canon.Hash512 {
	buf := make([]byte, 0, len(seedDomain)+32+8+len(candidates)*(types.AddressLen+8))
	buf = append(buf, seedDomain...)
	buf = append(buf, entropy[:]...)
	buf = appendU64(buf, round)
	for _, c := range candidates {
		buf = append(buf, c.Addr[:]...)
		buf = appendU64(buf, math.Float64bits(c.Score))
	}
	return canon.Sum512(buf)
}

// EntropyHeight returns the height whose microblock hash feeds the round
// seed's entropy term.
func EntropyHeight(currentHeight uint64) uint64 {
	if currentHeight < FinalityWindow {
		return 0
	}
	return currentHeight - FinalityWindow
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// SelectProducer picks the round's single producer: index = seed[0:8] as a
// little-endian uint64, mod the candidate count (spec §4.6 step 3).
// candidates must already be ranked (RankCandidates) so every node derives
// the same ordering to index into.
func SelectProducer(candidates []Candidate, seed canon.Hash512) (types.Address, int) {
	if len(candidates) == 0 {
		return types.Address{}, -1
	}
	idx := int(binary.LittleEndian.Uint64(seed[:8]) % uint64(len(candidates)))
	return candidates[idx].Addr, idx
}

// FailoverProducer returns the producer that should take over after
// attempt prior producers (starting at the round's primary, index
// primaryIdx) have each timed out, walking the same ranked candidate list
// in order (spec §4.6's progressive-finalization failover).
func FailoverProducer(candidates []Candidate, primaryIdx, attempt int) types.Address {
	if len(candidates) == 0 {
		return types.Address{}
	}
	idx := (primaryIdx + attempt) % len(candidates)
	return candidates[idx].Addr
}

// Failover timeout schedule (spec §4.6): the round's first block allows a
// longer initial timeout before failover triggers, blocks 2-10 use a
// shorter window, and blocks 11-30 run at steady-state; each further retry
// within the same slot backs off by BackoffMultiplier.
const (
	InitialTimeout      = 20 * time.Second
	EarlyTimeout        = 10 * time.Second
	SteadyTimeout       = 7 * time.Second
	earlyTimeoutCutoff  = 10 // blocks 2-10 use EarlyTimeout
	BackoffMultiplier   = 1.5
)

// BaseTimeout returns the un-backed-off timeout for slot (1-indexed
// position within the round, 1 <= slot <= RoundSize).
func BaseTimeout(slot int) time.Duration {
	switch {
	case slot <= 1:
		return InitialTimeout
	case slot <= earlyTimeoutCutoff:
		return EarlyTimeout
	default:
		return SteadyTimeout
	}
}

// RetryTimeout applies BackoffMultiplier exponential backoff for the
// attempt-th failover retry (attempt 0 is the base timeout itself).
func RetryTimeout(slot, attempt int) time.Duration {
	d := float64(BaseTimeout(slot))
	for i := 0; i < attempt; i++ {
		d *= BackoffMultiplier
	}
	return time.Duration(d)
}
