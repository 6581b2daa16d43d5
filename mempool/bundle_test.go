// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/qnet/types"
)

func mkBundle(submitter byte, n int, gasPrice uint64, deadline time.Time) *Bundle {
	var addr types.Address
	addr[0] = submitter
	txs := make([]*types.Transaction, n)
	for i := range txs {
		txs[i] = &types.Transaction{From: addr, GasPrice: gasPrice}
	}
	return &Bundle{Txs: txs, Submitter: addr, GasPremium: BundleMinGasPremium, Deadline: deadline}
}

func TestSubmitRejectsLowScore(t *testing.T) {
	bp := NewBundlePool()
	b := mkBundle(1, 2, 1_000_000, time.Now().Add(time.Second))
	err := bp.Submit(b, 79.9, 100_000, time.Now())
	require.Error(t, err)
}

func TestSubmitRejectsOversizeBundle(t *testing.T) {
	bp := NewBundlePool()
	b := mkBundle(1, BundleMaxTxs+1, 10_000_000, time.Now().Add(time.Second))
	err := bp.Submit(b, 90, 100_000, time.Now())
	require.Error(t, err)
}

func TestSubmitRejectsLowPremium(t *testing.T) {
	bp := NewBundlePool()
	b := mkBundle(1, 1, 100_000, time.Now().Add(time.Second)) // exactly base price, not 1.2x
	err := bp.Submit(b, 90, 100_000, time.Now())
	require.Error(t, err)
}

func TestSubmitEnforcesRateLimit(t *testing.T) {
	bp := NewBundlePool()
	now := time.Now()
	for i := 0; i < BundleRateLimit; i++ {
		b := mkBundle(1, 1, 1_000_000, now.Add(time.Second))
		require.NoError(t, bp.Submit(b, 90, 100_000, now))
	}
	over := mkBundle(1, 1, 1_000_000, now.Add(time.Second))
	err := bp.Submit(over, 90, 100_000, now)
	require.Error(t, err)
}

func TestTakeOrdersByTotalGasPriceAndRespectsCap(t *testing.T) {
	bp := NewBundlePool()
	now := time.Now()
	small := mkBundle(1, 2, 1_000_000, now.Add(time.Minute))
	big := mkBundle(2, 2, 5_000_000, now.Add(time.Minute))
	require.NoError(t, bp.Submit(small, 90, 100_000, now))
	require.NoError(t, bp.Submit(big, 90, 100_000, now))

	taken := bp.Take(2, now) // only room for one 2-tx bundle
	require.Len(t, taken, 1)
	require.Equal(t, big.Submitter, taken[0].Submitter)
}

func TestTakeDropsExpiredBundles(t *testing.T) {
	bp := NewBundlePool()
	now := time.Now()
	b := mkBundle(1, 1, 1_000_000, now.Add(-time.Second))
	require.NoError(t, bp.Submit(b, 90, 100_000, now.Add(-time.Minute)))

	taken := bp.Take(10, now)
	require.Empty(t, taken)
}

func TestBundleSlotsForBlockSize(t *testing.T) {
	require.Equal(t, 10, BundleSlotsForBlockSize(50))
}
