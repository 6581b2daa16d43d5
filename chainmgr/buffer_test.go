// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/qnet/types"
)

func TestBufferAddAndGet(t *testing.T) {
	b := NewBuffer()
	blk := &types.MicroBlock{Height: 5}
	require.True(t, b.Add(blk, time.Now()))

	got, ok := b.Get(5)
	require.True(t, ok)
	require.Equal(t, blk, got)
	require.Equal(t, 1, b.Len())
}

func TestBufferAddIsIdempotentOnDuplicateHeight(t *testing.T) {
	b := NewBuffer()
	now := time.Now()
	require.True(t, b.Add(&types.MicroBlock{Height: 5}, now))
	require.True(t, b.Add(&types.MicroBlock{Height: 5}, now))
	require.Equal(t, 1, b.Len())
}

func TestBufferMarkRetryEvictsAfterMaxRetries(t *testing.T) {
	b := NewBuffer()
	b.Add(&types.MicroBlock{Height: 1}, time.Now())

	for i := 0; i < BufferMaxRetries; i++ {
		require.True(t, b.MarkRetry(1))
	}
	require.False(t, b.MarkRetry(1))
	_, ok := b.Get(1)
	require.False(t, ok)
}

func TestBufferCleanupEvictsOldEntries(t *testing.T) {
	b := NewBuffer()
	old := time.Now().Add(-2 * BufferCleanupAge)
	b.Add(&types.MicroBlock{Height: 1}, old)
	b.Add(&types.MicroBlock{Height: 2}, time.Now())

	evicted := b.Cleanup(time.Now())
	require.Equal(t, 1, evicted)
	require.Equal(t, 1, b.Len())
}

func TestBufferRescanReturnsWindowOnly(t *testing.T) {
	b := NewBuffer()
	now := time.Now()
	b.Add(&types.MicroBlock{Height: 11}, now)
	b.Add(&types.MicroBlock{Height: 20}, now)
	b.Add(&types.MicroBlock{Height: 21}, now) // outside the window from height 10

	got := b.Rescan(10)
	require.Len(t, got, 2)
}

func TestBufferRejectsOverflow(t *testing.T) {
	b := NewBuffer()
	now := time.Now()
	for h := uint64(0); h < BufferMaxSize; h++ {
		require.True(t, b.Add(&types.MicroBlock{Height: h}, now))
	}
	require.False(t, b.Add(&types.MicroBlock{Height: BufferMaxSize}, now))
}
