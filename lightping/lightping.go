// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lightping implements the light-node ping and attestation-
// commitment protocol (spec §4.11): shard assignment by node-id hash,
// rotating Full/Super pinger duty per 4-hour window, per-window attestation
// collection, and the producer's periodic PingCommitmentWithSampling
// emission verified via Merkle sampling. The commitment's Merkle-root +
// sampled-proof shape is grounded on crypto/canon/merkle.go, generalized
// from the single microblock transaction-root use case to an
// attestation-and-heartbeat root.
package lightping

import (
	"encoding/binary"
	"sort"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/crypto/hybrid"
	"github.com/luxfi/qnet/types"
)

// ShardCount is the number of pinger shards light nodes are partitioned
// into (spec §4.11: "shard := SHA3_256(light_node_id)[0]").
const ShardCount = 256

// RotationWindowMicros is how often the designated pingers for a shard
// rotate, in microseconds.
const RotationWindowMicros = int64(4 * 60 * 60 * 1_000_000)

// MinSamplesFloor and MinSamplesPercent bound the commitment's sample set
// (spec §4.11: ">= max(10_000, 1% of pings)").
const (
	MinSamplesFloor   = 10_000
	MinSamplesPercent = 0.01
)

// Shard returns the pinger shard a light node belongs to.
func Shard(lightNodeID types.Address) uint8 {
	sum := canon.Sum256(lightNodeID[:])
	return sum[0]
}

// AssignPingers selects the designated Full/Super pingers for shard during
// the window rooted at windowEntropy (the finalized-block hash that seeds
// the rotation), generalizing producer's seeded-index selection to picking
// a fixed-size subset rather than one producer.
func AssignPingers(shard uint8, windowEntropy canon.Hash256, candidates []types.Address, count int) []types.Address {
	if len(candidates) == 0 || count <= 0 {
		return nil
	}
	ordered := make([]types.Address, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return string(ordered[i][:]) < string(ordered[j][:]) })

	seedInput := make([]byte, 0, 33)
	seedInput = append(seedInput, shard)
	seedInput = append(seedInput, windowEntropy[:]...)
	seed := canon.Sum256(seedInput)
	base := binary.LittleEndian.Uint64(seed[:8])

	if count > len(ordered) {
		count = len(ordered)
	}
	out := make([]types.Address, count)
	used := make(map[int]bool, count)
	for i := 0; i < count; i++ {
		idx := int((base + uint64(i)) % uint64(len(ordered)))
		for used[idx] {
			idx = (idx + 1) % len(ordered)
		}
		used[idx] = true
		out[i] = ordered[idx]
	}
	return out
}

// Attestation is one light node's proof of liveness for the current window
// (spec §4.11).
type Attestation struct {
	LightNodeID    types.Address
	PingerNodeID   types.Address
	LightSig       []byte // classical, fast signature from the light node
	PingerHybridSig *hybrid.Signature
	TimestampMicros int64
}

// SigningBytes returns the canonical bytes the light node signs.
func (a *Attestation) SigningBytes() []byte {
	buf := make([]byte, 0, 48)
	buf = append(buf, a.LightNodeID[:]...)
	buf = append(buf, a.PingerNodeID[:]...)
	buf = appendInt64(buf, a.TimestampMicros)
	return buf
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

// Leaf returns the attestation's Merkle leaf hash over its identifying
// fields, used to build a window's commitment root.
func (a *Attestation) Leaf() canon.Hash256 {
	return canon.Sum256(a.SigningBytes(), a.LightSig)
}

// Store accumulates the attestations a Full/Super pinger has collected over
// the current window, ready to be rolled into a commitment. It records
// attestations only; heartbeats are not stored here.
type Store struct {
	entries []canon.Hash256
	byLight map[types.Address]bool
}

func NewStore() *Store {
	return &Store{byLight: make(map[types.Address]bool)}
}

// Record appends an attestation's leaf hash if this is the light node's
// first valid attestation this window.
func (s *Store) Record(a *Attestation) bool {
	if s.byLight[a.LightNodeID] {
		return false
	}
	s.byLight[a.LightNodeID] = true
	s.entries = append(s.entries, a.Leaf())
	return true
}

// Len returns the number of distinct attestations recorded this window.
func (s *Store) Len() int { return len(s.entries) }

// Commitment is the producer's periodic PingCommitmentWithSampling
// transaction payload (spec §4.11).
type Commitment struct {
	MerkleRoot  canon.Hash256
	SampleSeed  canon.Hash256
	SampleProofs []SampleProof
}

// SampleProof is one sampled leaf plus its inclusion proof.
type SampleProof struct {
	Index int
	Leaf  canon.Hash256
	Proof canon.MerkleProof
}

// SampleSeed derives the window's deterministic sample seed from the
// finalized block hash that anchors the window (spec §4.11:
// "sample_seed = SHA3-256(finalized_block)").
func SampleSeed(finalizedBlockHash canon.Hash256) canon.Hash256 {
	return canon.Sum256(finalizedBlockHash[:])
}

// RequiredSamples returns the minimum sample count for a window with n
// total attestations+heartbeats (spec §4.11: ">= max(10_000, 1% of n)").
func RequiredSamples(n int) int {
	pct := int(float64(n) * MinSamplesPercent)
	if pct > MinSamplesFloor {
		return pct
	}
	return MinSamplesFloor
}

// BuildCommitment roots entries and samples a deterministic subset seeded
// by sampleSeed, each with its Merkle proof for downstream verification.
func BuildCommitment(entries []canon.Hash256, sampleSeed canon.Hash256) Commitment {
	root := canon.MerkleRoot(entries)
	required := RequiredSamples(len(entries))
	if required > len(entries) {
		required = len(entries)
	}

	indices := sampleIndices(sampleSeed, len(entries), required)
	proofs := make([]SampleProof, len(indices))
	for i, idx := range indices {
		proofs[i] = SampleProof{
			Index: idx,
			Leaf:  entries[idx],
			Proof: canon.BuildMerkleProof(entries, idx),
		}
	}
	return Commitment{MerkleRoot: root, SampleSeed: sampleSeed, SampleProofs: proofs}
}

func sampleIndices(seed canon.Hash256, n, count int) []int {
	if n == 0 || count == 0 {
		return nil
	}
	if count > n {
		count = n
	}
	chosen := make(map[int]bool, count)
	out := make([]int, 0, count)
	ctr := uint64(0)
	for len(out) < count {
		buf := make([]byte, 0, 40)
		buf = append(buf, seed[:]...)
		buf = appendInt64(buf, int64(ctr))
		h := canon.Sum256(buf)
		idx := int(binary.LittleEndian.Uint64(h[:8]) % uint64(n))
		ctr++
		if chosen[idx] {
			continue
		}
		chosen[idx] = true
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// VerifyCommitment checks (a) the Merkle root recomputation, (b) the sample
// seed's determinism against the finalized block, and (c) every sampled
// proof (spec §4.11).
func VerifyCommitment(c Commitment, entries []canon.Hash256, finalizedBlockHash canon.Hash256) bool {
	if canon.MerkleRoot(entries) != c.MerkleRoot {
		return false
	}
	if SampleSeed(finalizedBlockHash) != c.SampleSeed {
		return false
	}
	for _, sp := range c.SampleProofs {
		if !canon.VerifyMerkleProof(c.MerkleRoot, sp.Leaf, sp.Proof) {
			return false
		}
	}
	return true
}
