// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainmgr

import (
	"errors"

	"github.com/luxfi/qnet/codec"
	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/crypto/hybrid"
	"github.com/luxfi/qnet/producer"
	"github.com/luxfi/qnet/storage"
	"github.com/luxfi/qnet/types"
)

var (
	errBlockTooLarge    = errors.New("chainmgr: block exceeds maximum encoded size")
	errWrongProducer    = errors.New("chainmgr: block producer does not match scheduled producer")
	errStateRootMismatch = errors.New("chainmgr: re-executed state_root does not match claimed root")
)

// MaxBlockEncodedBytes is the structural size ceiling checked in
// validation step 1 (spec §4.9, spec §4.10's 64KB chunked-block cap).
const MaxBlockEncodedBytes = 64 << 10

// PublicKeyLookup resolves a node's long-term PQ identity for signature
// verification.
type PublicKeyLookup interface {
	PublicKey(addr types.Address) (*hybrid.PublicKey, bool)
}

// Executor re-executes a block's transactions over the state at height-1
// and reports the resulting state root, for validation step 5.
type Executor interface {
	ReExecute(block *types.MicroBlock) (stateRoot canon.Hash256, err error)
}

// Pipeline runs the 5-step validation contract of spec §4.9 against one
// candidate block.
type Pipeline struct {
	Verifier *hybrid.Verifier
	Keys     PublicKeyLookup
	Store    *storage.Store
	Executor Executor
}

// Validate runs every step in order, short-circuiting on the first
// failure. candidates must already reflect the eligible, ranked set for
// the block's round (producer.RankCandidates).
func (p *Pipeline) Validate(block *types.MicroBlock, candidates []producer.Candidate, seed canon.Hash512) error {
	// 1. Structural.
	encoded := codec.EncodeMicroBlock(block)
	if len(encoded) > MaxBlockEncodedBytes {
		return types.ValidationError("chainmgr.Validate", errBlockTooLarge)
	}

	// 2. Cryptographic.
	pk, ok := p.Keys.PublicKey(block.ProducerAddr)
	if !ok {
		return types.ValidationError("chainmgr.Validate", types.ErrNotValidator)
	}
	sig, err := codec.DecodeHybridSignature(block.Signature)
	if err != nil {
		return types.ValidationError("chainmgr.Validate", err)
	}
	if err := p.Verifier.Verify(pk, block.SigningBytes(), sig); err != nil {
		return types.ValidationError("chainmgr.Validate", err)
	}

	// 3. Producer check.
	expected, _ := producer.SelectProducer(candidates, seed)
	if expected != block.ProducerAddr {
		return types.ValidationError("chainmgr.Validate", errWrongProducer)
	}

	// 4. Chain linking.
	prev, err := p.Store.GetMicroBlockByHeight(block.Height - 1)
	if err != nil {
		return err
	}
	if prev.Hash() != block.PrevHash {
		return types.ValidationError("chainmgr.Validate", types.ErrInvalidBlock)
	}

	// 5. State transition.
	if p.Executor != nil {
		root, err := p.Executor.ReExecute(block)
		if err != nil {
			return types.StateError("chainmgr.Validate", err)
		}
		if root != block.StateRoot {
			return types.ValidationError("chainmgr.Validate", errStateRootMismatch)
		}
	}

	return nil
}

// Apply persists block via an atomic multi-CF storage batch and advances
// the head pointer (spec §4.9 "Apply").
func (p *Pipeline) Apply(block *types.MicroBlock) error {
	batch := p.Store.NewBatch()
	p.Store.PutMicroBlock(batch, block)
	p.Store.SetHead(batch, block.Height)
	if err := batch.Write(); err != nil {
		return err
	}
	return nil
}
