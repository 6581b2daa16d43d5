// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package microblock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/types"
)

func TestPreExecCacheGetPutRoundTrip(t *testing.T) {
	c := NewPreExecCache()
	h := canon.Sum256([]byte("tx-1"))
	c.Put(StateDelta{TxHash: h, Applies: true})

	got, ok := c.Get(h)
	require.True(t, ok)
	require.True(t, got.Applies)
}

func TestPreExecCacheMissReturnsFalse(t *testing.T) {
	c := NewPreExecCache()
	_, ok := c.Get(canon.Sum256([]byte("missing")))
	require.False(t, ok)
}

func TestPreExecCacheInvalidatesOnIntersectingWrite(t *testing.T) {
	c := NewPreExecCache()
	var addr types.Address
	addr[0] = 7
	h := canon.Sum256([]byte("tx-1"))
	c.Put(StateDelta{TxHash: h, Reads: []types.Address{addr}, Applies: true})

	c.Invalidate(map[types.Address]struct{}{addr: {}})

	_, ok := c.Get(h)
	require.False(t, ok)
}

func TestPreExecCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewPreExecCache()
	c.capacity = 2

	h1 := canon.Sum256([]byte("a"))
	h2 := canon.Sum256([]byte("b"))
	h3 := canon.Sum256([]byte("c"))
	c.Put(StateDelta{TxHash: h1, Applies: true})
	c.Put(StateDelta{TxHash: h2, Applies: true})
	c.Put(StateDelta{TxHash: h3, Applies: true}) // evicts h1, the LRU entry

	_, ok := c.Get(h1)
	require.False(t, ok)
	_, ok = c.Get(h2)
	require.True(t, ok)
}
