// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package microblock

import (
	cryptorand "crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/crypto/mldsa"
	"github.com/luxfi/ids"
	"github.com/luxfi/qnet/crypto/hybrid"
	"github.com/luxfi/qnet/crypto/poh"
	"github.com/luxfi/qnet/mempool"
	"github.com/luxfi/qnet/types"
)

func newSigner(t *testing.T) *hybrid.PrivateKey {
	t.Helper()
	pqPriv, err := mldsa.GenerateKey(cryptorand.Reader, hybrid.Mode)
	require.NoError(t, err)
	return &hybrid.PrivateKey{NodeID: ids.GenerateTestNodeID(), PQ: pqPriv}
}

type fakeMempool struct{ txs []*types.Transaction }

func (f *fakeMempool) Take(limit int, _ uint8) []*types.Transaction {
	if limit > len(f.txs) {
		limit = len(f.txs)
	}
	return f.txs[:limit]
}

type fakeBundles struct{ bundles []*mempool.Bundle }

func (f *fakeBundles) Take(maxBundleTxs int, _ time.Time) []*mempool.Bundle {
	var out []*mempool.Bundle
	used := 0
	for _, b := range f.bundles {
		if used+len(b.Txs) > maxBundleTxs {
			continue
		}
		out = append(out, b)
		used += len(b.Txs)
	}
	return out
}

type fakeDelta struct {
	reads  []types.Address
	writes map[types.Address]types.AccountState
}

func (d fakeDelta) Reads() []types.Address                        { return d.reads }
func (d fakeDelta) Writes() map[types.Address]types.AccountState { return d.writes }

type fakeExecutor struct {
	fail map[canon256]bool
}

type canon256 = [32]byte

func (e *fakeExecutor) Apply(tx *types.Transaction) (StateDeltaApplier, bool, error) {
	if e.fail[tx.Hash] {
		return nil, false, nil
	}
	return fakeDelta{
		reads:  []types.Address{tx.From},
		writes: map[types.Address]types.AccountState{tx.From: {Address: tx.From, Nonce: tx.Nonce + 1}},
	}, true, nil
}

func mkTx(from byte, nonce, gasPrice uint64) *types.Transaction {
	var addr types.Address
	addr[0] = from
	tx := &types.Transaction{From: addr, Nonce: nonce, GasPrice: gasPrice}
	tx.ComputeHash()
	return tx
}

func TestWaitGateHoldsUntilInterval(t *testing.T) {
	prev := time.UnixMicro(1_000_000)
	early := prev.Add(100 * time.Millisecond)
	gated := WaitGate(prev.UnixMicro(), early)
	require.Equal(t, prev.Add(BlockInterval), gated)
}

func TestWaitGatePassesThroughWhenLate(t *testing.T) {
	prev := time.UnixMicro(1_000_000)
	late := prev.Add(2 * time.Second)
	gated := WaitGate(prev.UnixMicro(), late)
	require.Equal(t, late, gated)
}

func TestSelectTransactionsReservesBundleSlots(t *testing.T) {
	bundleTx := mkTx(1, 0, 9_000_000)
	bundle := &mempool.Bundle{Txs: []*types.Transaction{bundleTx}, Submitter: bundleTx.From}
	publicTx := mkTx(2, 0, 500_000)

	b := &Builder{
		Mempool: &fakeMempool{txs: []*types.Transaction{publicTx}},
		Bundles: &fakeBundles{bundles: []*mempool.Bundle{bundle}},
	}
	got := b.SelectTransactions(time.Now())
	require.Len(t, got, 2)
}

func TestBuildProducesSignedBlock(t *testing.T) {
	signer := newSigner(t)
	tx := mkTx(1, 0, 500_000)

	b := NewBuilder(&fakeMempool{txs: []*types.Transaction{tx}}, nil, &fakeExecutor{}, poh.NewClock([64]byte{}), signer)

	prev := &types.MicroBlock{Height: 10, Timestamp: time.Now().Add(-time.Second).UnixMicro()}
	blk, err := b.Build(prev, types.Address{1}, 0, time.Now())
	require.NoError(t, err)
	require.Equal(t, uint64(11), blk.Height)
	require.Len(t, blk.Txs, 1)
	require.NotEmpty(t, blk.Signature)
	require.NotEqual(t, [64]byte{}, blk.PohHash)
}

func TestBuildSkipsFailingTransactionsWithoutError(t *testing.T) {
	signer := newSigner(t)
	ok := mkTx(1, 0, 500_000)
	bad := mkTx(2, 0, 600_000)

	exec := &fakeExecutor{fail: map[canon256]bool{bad.Hash: true}}
	b := NewBuilder(&fakeMempool{txs: []*types.Transaction{bad, ok}}, nil, exec, poh.NewClock([64]byte{}), signer)

	prev := &types.MicroBlock{Height: 0, Timestamp: time.Now().Add(-time.Second).UnixMicro()}
	blk, err := b.Build(prev, types.Address{1}, 0, time.Now())
	require.NoError(t, err)
	require.Len(t, blk.Txs, 1)
	require.Equal(t, ok.Hash, blk.Txs[0].Hash)
}

func TestBuildCachesDeltaForIncludedTx(t *testing.T) {
	signer := newSigner(t)
	tx := mkTx(1, 0, 500_000)
	exec := &fakeExecutor{}
	b := NewBuilder(&fakeMempool{txs: []*types.Transaction{tx}}, nil, exec, poh.NewClock([64]byte{}), signer)

	prev := &types.MicroBlock{Height: 0, Timestamp: time.Now().Add(-time.Second).UnixMicro()}
	_, err := b.Build(prev, types.Address{1}, 0, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, b.Cache.Len())

	_, hit := b.Cache.Get(tx.Hash)
	require.True(t, hit)
}
