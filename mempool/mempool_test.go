// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/qnet/types"
)

type zeroNonces struct{}

func (zeroNonces) AccountNonce(types.Address) uint64 { return 0 }

func mkTx(from byte, nonce, gasPrice uint64) *types.Transaction {
	var addr types.Address
	addr[0] = from
	tx := &types.Transaction{From: addr, Nonce: nonce, GasPrice: gasPrice}
	tx.ComputeHash()
	return tx
}

func TestAddRejectsBelowMinGasPrice(t *testing.T) {
	p := New(zeroNonces{}, 100, DefaultMaxBytes, DefaultTTL)
	err := p.Add(mkTx(1, 0, MinGasPrice-1), time.Now())
	require.Error(t, err)
}

func TestAddRejectsDuplicateHash(t *testing.T) {
	p := New(zeroNonces{}, 100, DefaultMaxBytes, DefaultTTL)
	tx := mkTx(1, 0, MinGasPrice)
	require.NoError(t, p.Add(tx, time.Now()))
	require.Error(t, p.Add(tx, time.Now()))
}

func TestAddRejectsStaleNonce(t *testing.T) {
	src := &staleNonceSource{n: 5}
	p := New(src, 100, DefaultMaxBytes, DefaultTTL)
	err := p.Add(mkTx(1, 3, MinGasPrice), time.Now())
	require.ErrorIs(t, err, types.ErrNonceTooLow)
}

type staleNonceSource struct{ n uint64 }

func (s *staleNonceSource) AccountNonce(types.Address) uint64 { return s.n }

func TestTakeOrdersByGasPriceDescending(t *testing.T) {
	p := New(zeroNonces{}, 100, DefaultMaxBytes, DefaultTTL)
	now := time.Now()
	require.NoError(t, p.Add(mkTx(1, 0, 100_000), now))
	require.NoError(t, p.Add(mkTx(2, 0, 500_000), now))
	require.NoError(t, p.Add(mkTx(3, 0, 200_000), now))

	got := p.Take(2, 0)
	require.Len(t, got, 2)
	require.Equal(t, uint64(500_000), got[0].GasPrice)
	require.Equal(t, uint64(200_000), got[1].GasPrice)
}

func TestTakeRespectsOnePendingPerSender(t *testing.T) {
	p := New(zeroNonces{}, 100, DefaultMaxBytes, DefaultTTL)
	now := time.Now()
	require.NoError(t, p.Add(mkTx(1, 0, 500_000), now))
	require.NoError(t, p.Add(mkTx(1, 1, 900_000), now)) // same sender, higher price, later nonce

	got := p.Take(10, 0)
	require.Len(t, got, 1)
	require.Equal(t, uint64(0), got[0].Nonce) // lowest-nonce tx for the sender, not highest price
}

func TestRemoveDeletesFromAllIndexes(t *testing.T) {
	p := New(zeroNonces{}, 100, DefaultMaxBytes, DefaultTTL)
	tx := mkTx(1, 0, MinGasPrice)
	require.NoError(t, p.Add(tx, time.Now()))
	p.Remove(tx.Hash)
	require.Equal(t, 0, p.Len())
}

func TestEvictExpiredRemovesStaleEntries(t *testing.T) {
	p := New(zeroNonces{}, 100, DefaultMaxBytes, 1*time.Millisecond)
	now := time.Now()
	require.NoError(t, p.Add(mkTx(1, 0, MinGasPrice), now))
	n := p.EvictExpired(now.Add(time.Second))
	require.Equal(t, 1, n)
	require.Equal(t, 0, p.Len())
}

func TestMempoolFullRejectsBeyondMaxSize(t *testing.T) {
	p := New(zeroNonces{}, 1, DefaultMaxBytes, DefaultTTL)
	require.NoError(t, p.Add(mkTx(1, 0, MinGasPrice), time.Now()))
	err := p.Add(mkTx(2, 0, MinGasPrice), time.Now())
	require.ErrorIs(t, err, types.ErrMempoolFull)
}
