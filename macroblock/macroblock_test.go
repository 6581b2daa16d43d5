// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package macroblock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func commitReveal(validator types.Address, vote canon.Hash256, nonce uint64) (types.CommitEntry, types.RevealEntry) {
	r := types.RevealEntry{ValidatorAddr: validator, Vote: vote, Nonce: nonce, Timestamp: time.Now().UnixMicro()}
	c := types.CommitEntry{ValidatorAddr: validator, CommitHash: r.CommitHash(), Timestamp: r.Timestamp}
	return c, r
}

func TestMacroHeightAndWindowBounds(t *testing.T) {
	require.Equal(t, uint64(0), MacroHeight(1))
	require.Equal(t, uint64(0), MacroHeight(90))
	require.Equal(t, uint64(1), MacroHeight(91))

	first, last := WindowBounds(1)
	require.Equal(t, uint64(91), first)
	require.Equal(t, uint64(180), last)
}

func TestAddRevealRejectsWithoutCommit(t *testing.T) {
	w := NewWindow(0)
	_, r := commitReveal(addr(1), canon.Sum256([]byte("root")), 1)
	err := w.AddReveal(r)
	require.Error(t, err)
}

func TestAddRevealRejectsMismatchedCommit(t *testing.T) {
	w := NewWindow(0)
	c, r := commitReveal(addr(1), canon.Sum256([]byte("root")), 1)
	require.True(t, w.AddCommit(c))
	r.Nonce = 2 // tampers with the committed value
	err := w.AddReveal(r)
	require.Error(t, err)
}

func TestTryFinalizeRequiresTwoThirds(t *testing.T) {
	w := NewWindow(0)
	root := canon.Sum256([]byte("agreed-root"))

	for i := byte(1); i <= 2; i++ {
		c, r := commitReveal(addr(i), root, uint64(i))
		require.True(t, w.AddCommit(c))
		require.NoError(t, w.AddReveal(r))
	}

	// 2 of 3 eligible validators: 2/3 threshold met exactly.
	mb, ok := w.TryFinalize(3, time.Now().UnixMicro())
	require.True(t, ok)
	require.Equal(t, root, mb.StateRoot)
	require.Len(t, mb.RewardDeltas, 2)
}

func TestTryFinalizeFailsBelowThreshold(t *testing.T) {
	w := NewWindow(0)
	root := canon.Sum256([]byte("agreed-root"))
	c, r := commitReveal(addr(1), root, 1)
	require.True(t, w.AddCommit(c))
	require.NoError(t, w.AddReveal(r))

	_, ok := w.TryFinalize(10, time.Now().UnixMicro())
	require.False(t, ok)
}

func TestTryFinalizeAssignsLeaderAndParticipantRewards(t *testing.T) {
	w := NewWindow(0)
	root := canon.Sum256([]byte("agreed-root"))
	for i := byte(1); i <= 3; i++ {
		c, r := commitReveal(addr(i), root, uint64(i))
		require.True(t, w.AddCommit(c))
		require.NoError(t, w.AddReveal(r))
	}

	mb, ok := w.TryFinalize(3, time.Now().UnixMicro())
	require.True(t, ok)

	var leaders, participants int
	for _, delta := range mb.RewardDeltas {
		switch delta {
		case LeaderReward:
			leaders++
		case ParticipantReward:
			participants++
		}
	}
	require.Equal(t, 1, leaders)
	require.Equal(t, 2, participants)
}

func TestPhaseTimeoutSchedule(t *testing.T) {
	require.Equal(t, InitialTimeout, PhaseTimeout(0))
	require.Equal(t, SecondTimeout, PhaseTimeout(1))
	require.Equal(t, SteadyTimeout, PhaseTimeout(2))
}

func TestAddCommitRejectsDuplicateValidator(t *testing.T) {
	w := NewWindow(0)
	c, _ := commitReveal(addr(1), canon.Sum256([]byte("root")), 1)
	require.True(t, w.AddCommit(c))
	require.False(t, w.AddCommit(c))
}
