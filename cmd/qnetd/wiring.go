// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"time"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/mempool"
	"github.com/luxfi/qnet/reputation"
	"github.com/luxfi/qnet/storage"
	"github.com/luxfi/qnet/types"
)

// accountNonceSource adapts storage.Store to mempool.NonceSource.
type accountNonceSource struct {
	store *storage.Store
}

func (a accountNonceSource) AccountNonce(addr types.Address) uint64 {
	acc, err := a.store.GetAccount(addr)
	if err != nil {
		return 0
	}
	return acc.Nonce
}

// chainReader adapts storage.Store to api.ChainReader.
type chainReader struct {
	store *storage.Store
}

func (c chainReader) Head() (uint64, error) { return c.store.Head() }

func (c chainReader) GetMicroBlockByHeight(height uint64) (*types.MicroBlock, error) {
	return c.store.GetMicroBlockByHeight(height)
}

func (c chainReader) GetMicroBlockByHash(hash canon.Hash256) (*types.MicroBlock, error) {
	return c.store.GetMicroBlockByHash(hash)
}

func (c chainReader) GetAccount(addr types.Address) (*types.AccountState, error) {
	return c.store.GetAccount(addr)
}

// txSubmitter adapts mempool.Pool to api.TxSubmitter.
type txSubmitter struct {
	pool *mempool.Pool
}

func (t txSubmitter) Submit(tx *types.Transaction) error {
	return t.pool.Add(tx, time.Now())
}

// scoreSource adapts reputation.Registry to p2p.ScoreSource.
type scoreSource struct {
	registry *reputation.Registry
}

func (s scoreSource) ConsensusScore(addr types.Address) float64 {
	e, ok := s.registry.Get(addr)
	if !ok {
		return 0
	}
	return e.ConsensusScore
}
