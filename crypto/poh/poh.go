// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package poh implements the QNet cryptographic clock: a sequential hash
// chain that gives every node a verifiable, replayable ordering of events
// between microblocks (spec §4.1). It is not a formal VDF — it is a
// production-cost-biased chain whose normative property is the 1-in-4
// SHA3-512 interleave (spec §9), which defeats trivial parallelization of
// the otherwise-Blake3 chain.
package poh

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/zeebo/blake3"
)

// IterationsPerTick is the design-target number of hash iterations advanced
// per Tick call. The spec treats the resulting throughput (iterations/tick
// over TickInterval) as a target, not a normative floor (spec §9).
const IterationsPerTick = 5000

// TickInterval is the wall-clock cadence the PoH generator advances at.
const TickInterval = 10 * time.Millisecond

// SHA3Interleave is normative: every 4th iteration hashes with SHA3-512
// instead of Blake3.
const SHA3Interleave = 4

// Entry is a single emitted checkpoint of the hash chain.
type Entry struct {
	NumHashes   uint64
	Hash        [64]byte
	Data        []byte // optional payload mixed into the chain (e.g. a tx hash)
	TimestampUs int64
}

// Clock is the sequential hash chain. It is safe for concurrent read access
// to Seed, but Advance/Tick must be called from a single producer
// goroutine at a time.
type Clock struct {
	mu      sync.RWMutex
	hash    [64]byte
	counter uint64
}

// NewClock seeds a fresh PoH chain from a 64-byte seed, typically derived
// from the genesis hash or the previous microblock's poh_hash.
func NewClock(seed [64]byte) *Clock {
	return &Clock{hash: seed}
}

// Seed returns the chain's current hash and counter as a resumable seed.
func (c *Clock) Seed() ([64]byte, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hash, c.counter
}

// iterate advances the chain by exactly one hash, mixing in optional data.
func iterate(prev [64]byte, counter uint64, data []byte) [64]byte {
	var ctrBuf [8]byte
	binary.LittleEndian.PutUint64(ctrBuf[:], counter)

	if counter%SHA3Interleave == 0 {
		h := canon.Sum512(prev[:], ctrBuf[:], data)
		return [64]byte(h)
	}

	hasher := blake3.New()
	hasher.Write(prev[:])
	hasher.Write(ctrBuf[:])
	if len(data) > 0 {
		hasher.Write(data)
	}
	// blake3's default digest is 32 bytes; read 64 bytes from its XOF so the
	// chain state stays uniform width against the interleaved SHA3-512 step.
	var out [64]byte
	_, _ = hasher.Digest().Read(out[:])
	return out
}

// Advance advances the chain by exactly one iteration with data mixed in
// (e.g. a block's concatenated transaction hashes) and returns the emitted
// Entry.
func (c *Clock) Advance(data []byte) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counter++
	c.hash = iterate(c.hash, c.counter, data)

	return Entry{
		NumHashes:   c.counter,
		Hash:        c.hash,
		Data:        data,
		TimestampUs: time.Now().UnixMicro(),
	}
}

// Tick advances the chain by IterationsPerTick empty iterations, the
// steady-state clock tick with no data mixed in.
func (c *Clock) Tick() Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < IterationsPerTick; i++ {
		c.counter++
		c.hash = iterate(c.hash, c.counter, nil)
	}

	return Entry{
		NumHashes:   c.counter,
		Hash:        c.hash,
		TimestampUs: time.Now().UnixMicro(),
	}
}

// Replay recomputes the chain from a known checkpoint (hash, counter) up to
// targetCount, optionally re-mixing the same data entries a verifier
// received out of band. It returns the resulting Entry, letting any
// verifier catch up to and check a producer's claimed PoH state.
func Replay(fromHash [64]byte, fromCounter uint64, targetCount uint64, data [][]byte) Entry {
	hash := fromHash
	counter := fromCounter
	di := 0
	for counter < targetCount {
		counter++
		var d []byte
		if di < len(data) {
			d = data[di]
			di++
		}
		hash = iterate(hash, counter, d)
	}
	return Entry{NumHashes: counter, Hash: hash, TimestampUs: time.Now().UnixMicro()}
}

// VerifyStep checks that advancing from (prevHash, prevCounter) by exactly
// one iteration with the given data produces claimedHash.
func VerifyStep(prevHash [64]byte, prevCounter uint64, data []byte, claimedHash [64]byte) bool {
	return iterate(prevHash, prevCounter+1, data) == claimedHash
}
