// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/qnet/types"
)

func TestPrunerDeletesBodiesOutsideWindow(t *testing.T) {
	s := newStore(t)
	tx := &types.Transaction{Nonce: 1}
	tx.ComputeHash()

	batch := s.NewBatch()
	var addr types.Address
	b := &types.MicroBlock{Height: 1, ProducerAddr: addr, Txs: []*types.Transaction{tx}}
	s.PutMicroBlock(batch, b)
	require.NoError(t, batch.Write())

	p := NewPruner(s)
	require.NoError(t, p.Prune(PruningWindow+2, 1))

	got, err := s.GetMicroBlockByHeight(1)
	require.NoError(t, err)
	require.Empty(t, got.Txs)
}

func TestPrunerNoopBelowWindow(t *testing.T) {
	s := newStore(t)
	p := NewPruner(s)
	require.NoError(t, p.Prune(10, 10))
}
