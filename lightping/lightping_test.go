// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package lightping

import (
	"testing"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[len(a)-1] = b
	return a
}

func TestShardIsStableAndInRange(t *testing.T) {
	a := addr(42)
	s1 := Shard(a)
	s2 := Shard(a)
	if s1 != s2 {
		t.Fatal("Shard must be deterministic")
	}
	// uint8 is always < ShardCount; this just documents the invariant.
	if int(s1) >= ShardCount {
		t.Fatalf("shard %d out of range", s1)
	}
}

func TestAssignPingersDeterministicAndCapped(t *testing.T) {
	candidates := []types.Address{addr(1), addr(2), addr(3), addr(4), addr(5)}
	entropy := canon.Sum256([]byte("window-0"))

	a := AssignPingers(7, entropy, candidates, 3)
	b := AssignPingers(7, entropy, candidates, 3)
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("got %d, %d pingers, want 3, 3", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("AssignPingers must be deterministic for the same shard/window/candidates")
		}
	}

	seen := make(map[types.Address]bool)
	for _, p := range a {
		if seen[p] {
			t.Fatal("AssignPingers returned a duplicate peer")
		}
		seen[p] = true
	}

	full := AssignPingers(7, entropy, candidates, 100)
	if len(full) != len(candidates) {
		t.Fatalf("got %d, want count capped to %d candidates", len(full), len(candidates))
	}
}

func TestAssignPingersVariesByShard(t *testing.T) {
	candidates := []types.Address{addr(1), addr(2), addr(3), addr(4), addr(5), addr(6), addr(7), addr(8)}
	entropy := canon.Sum256([]byte("window-1"))

	a := AssignPingers(1, entropy, candidates, 2)
	b := AssignPingers(2, entropy, candidates, 2)
	if a[0] == b[0] && a[1] == b[1] {
		t.Fatal("expected different shards to plausibly select different pinger sets")
	}
}

func TestStoreRecordDedupesPerLightNode(t *testing.T) {
	s := NewStore()
	at := &Attestation{LightNodeID: addr(1), PingerNodeID: addr(2), LightSig: []byte("sig"), TimestampMicros: 100}

	if !s.Record(at) {
		t.Fatal("expected first record to succeed")
	}
	if s.Record(at) {
		t.Fatal("expected duplicate record from the same light node to be rejected")
	}
	if s.Len() != 1 {
		t.Fatalf("got %d entries, want 1", s.Len())
	}
}

func TestRequiredSamplesFloorAndPercent(t *testing.T) {
	if RequiredSamples(100) != MinSamplesFloor {
		t.Fatalf("got %d, want floor %d", RequiredSamples(100), MinSamplesFloor)
	}
	n := 10_000_000
	want := int(float64(n) * MinSamplesPercent)
	if RequiredSamples(n) != want {
		t.Fatalf("got %d, want %d", RequiredSamples(n), want)
	}
}

func TestBuildAndVerifyCommitmentRoundTrip(t *testing.T) {
	entries := make([]canon.Hash256, 0, 50)
	for i := 0; i < 50; i++ {
		entries = append(entries, canon.Sum256([]byte{byte(i)}))
	}
	finalized := canon.Sum256([]byte("finalized-block"))
	seed := SampleSeed(finalized)

	c := BuildCommitment(entries, seed)
	if len(c.SampleProofs) != len(entries) {
		t.Fatalf("got %d sample proofs, want all %d entries sampled below the floor", len(c.SampleProofs), len(entries))
	}
	if !VerifyCommitment(c, entries, finalized) {
		t.Fatal("expected commitment to verify")
	}

	tampered := c
	tampered.MerkleRoot = canon.Sum256([]byte("bogus"))
	if VerifyCommitment(tampered, entries, finalized) {
		t.Fatal("expected tampered root to fail verification")
	}
}

func TestVerifyCommitmentRejectsWrongFinalizedBlock(t *testing.T) {
	entries := []canon.Hash256{canon.Sum256([]byte("a")), canon.Sum256([]byte("b"))}
	finalized := canon.Sum256([]byte("finalized-1"))
	c := BuildCommitment(entries, SampleSeed(finalized))

	other := canon.Sum256([]byte("finalized-2"))
	if VerifyCommitment(c, entries, other) {
		t.Fatal("expected verification against a different finalized block to fail")
	}
}
