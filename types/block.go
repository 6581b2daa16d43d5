// Copyright (C) 2019-2024, Lux Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/luxfi/qnet/crypto/canon"

// MicroBlock is produced on a 1-second cadence by the round's scheduled
// producer (spec §3). 90 consecutive microblocks are finalized together by
// one MacroBlock.
type MicroBlock struct {
	Height       uint64
	Round        uint64 // round index this block belongs to (Height / RoundSize)
	PrevHash     canon.Hash256
	ProducerAddr Address
	Timestamp    int64 // unix micros
	PohHash      [64]byte
	PohCount     uint64
	TxHashes     []canon.Hash256
	Txs          []*Transaction
	StateRoot    canon.Hash256
	Signature    []byte // hybrid signature over the block's signing bytes
}

// Hash returns the block's identifying digest over every field except the
// signature.
func (b *MicroBlock) Hash() canon.Hash256 {
	return canon.Sum256(b.SigningBytes())
}

// SigningBytes returns the canonical bytes the producer signs.
func (b *MicroBlock) SigningBytes() []byte {
	buf := make([]byte, 0, 128+32*len(b.TxHashes))
	buf = appendU64(buf, b.Height)
	buf = appendU64(buf, b.Round)
	buf = append(buf, b.PrevHash[:]...)
	buf = append(buf, b.ProducerAddr[:]...)
	buf = appendU64(buf, uint64(b.Timestamp))
	buf = append(buf, b.PohHash[:]...)
	buf = appendU64(buf, b.PohCount)
	for _, h := range b.TxHashes {
		buf = append(buf, h[:]...)
	}
	buf = append(buf, b.StateRoot[:]...)
	return buf
}

// CommitEntry is one validator's commitment to a macroblock window's
// proposed state_root, submitted during blocks 61-90 of the window
// (spec §4.8).
type CommitEntry struct {
	ValidatorAddr Address
	CommitHash    canon.Hash256 // SHA3-256(vote || nonce)
	Timestamp     int64
	Signature     []byte
}

// RevealEntry opens a prior CommitEntry during the window's reveal phase,
// opened at block 90 (spec §4.8). Vote is the validator's proposed
// state_root for the window.
type RevealEntry struct {
	ValidatorAddr Address
	Vote          canon.Hash256
	Nonce         uint64
	Timestamp     int64
	Signature     []byte
}

// CommitHash returns SHA3-256(vote || nonce_LE), the value a RevealEntry's
// commitment must match.
func (r *RevealEntry) CommitHash() canon.Hash256 {
	buf := make([]byte, 0, 40)
	buf = append(buf, r.Vote[:]...)
	buf = appendU64(buf, r.Nonce)
	return canon.Sum256(buf)
}

// MacroBlock finalizes one 90-microblock window once the most-voted
// state_root among valid reveals clears 2/3 of the eligible validator set
// (spec §3, §4.8). MacroHeight = FirstHeight / 90.
type MacroBlock struct {
	MacroHeight  uint64
	FirstHeight  uint64
	LastHeight   uint64
	StateRoot    canon.Hash256
	CommitSet    []CommitEntry
	RevealSet    []RevealEntry
	FinalizedAt  int64 // unix micros
	RewardDeltas map[Address]int64
	Signature    []byte // aggregated validator signature bundle
}

func (m *MacroBlock) Hash() canon.Hash256 {
	buf := make([]byte, 0, 64)
	buf = appendU64(buf, m.MacroHeight)
	buf = appendU64(buf, m.FirstHeight)
	buf = appendU64(buf, m.LastHeight)
	buf = append(buf, m.StateRoot[:]...)
	return canon.Sum256(buf)
}
