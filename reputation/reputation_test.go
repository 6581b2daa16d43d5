// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reputation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/qnet/types"
)

func TestRegisterAndApplyEvents(t *testing.T) {
	r := NewRegistry()
	var addr types.Address
	addr[0] = 1

	e := r.Register(addr, types.NodeTypeFull, 1000, "us-east")
	require.Equal(t, 50.0, e.ConsensusScore)

	require.NoError(t, r.Apply(addr, EventRotationComplete, 2000))
	got, ok := r.Get(addr)
	require.True(t, ok)
	require.Equal(t, 52.0, got.ConsensusScore)
}

func TestApplyUnregisteredReturnsError(t *testing.T) {
	r := NewRegistry()
	var addr types.Address
	err := r.Apply(addr, EventRotationComplete, 0)
	require.ErrorIs(t, err, types.ErrNotValidator)
}

func TestMaliciousEventJailsAndDoesNotNetworkBan(t *testing.T) {
	r := NewRegistry()
	var addr types.Address
	addr[0] = 2
	r.Register(addr, types.NodeTypeFull, 0, "")

	require.NoError(t, r.Apply(addr, EventMalicious, 1000))
	got, _ := r.Get(addr)
	require.Equal(t, 1, got.JailStrikeCount)
	require.True(t, got.Jailed(1000))
	require.Equal(t, int64(1000)+JailSchedule[0].Microseconds(), got.JailedUntil)
	require.False(t, got.NetworkBanned)
}

func TestJailEscalatesOnRepeatedMaliciousStrikes(t *testing.T) {
	r := NewRegistry()
	var addr types.Address
	addr[0] = 3
	r.Register(addr, types.NodeTypeFull, 0, "")

	require.NoError(t, r.Apply(addr, EventMalicious, 0))
	require.NoError(t, r.Apply(addr, EventMalicious, 0))
	got, _ := r.Get(addr)
	require.Equal(t, 2, got.JailStrikeCount)
	require.Equal(t, JailSchedule[1].Microseconds(), got.JailedUntil)
}

func TestLowScoreTriggersNetworkBanNotJail(t *testing.T) {
	r := NewRegistry()
	var addr types.Address
	addr[0] = 4
	e := r.Register(addr, types.NodeTypeFull, 0, "")
	e.ConsensusScore = 5

	require.NoError(t, r.Apply(addr, EventConsensusFailure, 0))
	got, _ := r.Get(addr)
	require.True(t, got.NetworkBanned)
	require.False(t, got.Jailed(0))
}

func TestKilledNodeAndTakeoverDeltas(t *testing.T) {
	r := NewRegistry()
	var killed, standby types.Address
	killed[0], standby[0] = 5, 6
	r.Register(killed, types.NodeTypeFull, 0, "")
	r.Register(standby, types.NodeTypeFull, 0, "")

	require.NoError(t, r.Apply(killed, EventNodeKilled, 0))
	require.NoError(t, r.Apply(standby, EventTakeover, 0))

	gotKilled, _ := r.Get(killed)
	gotStandby, _ := r.Get(standby)
	require.Equal(t, 30.0, gotKilled.ConsensusScore)  // 50 - 20
	require.Equal(t, 55.0, gotStandby.ConsensusScore) // 50 + 5
}

func TestPassiveRecoveryAppliesOnlyInWindow(t *testing.T) {
	r := NewRegistry()
	var addr types.Address
	addr[0] = 7
	e := r.Register(addr, types.NodeTypeFull, 0, "")
	e.ConsensusScore = 30

	r.ApplyPassiveRecovery(0) // no time elapsed, should not yet recover
	got, _ := r.Get(addr)
	require.Equal(t, 30.0, got.ConsensusScore)

	r.ApplyPassiveRecovery(PassiveRecoveryInterval.Microseconds())
	got, _ = r.Get(addr)
	require.Equal(t, 31.0, got.ConsensusScore)
}

func TestPassiveRecoverySkipsJailedAndOutOfRange(t *testing.T) {
	r := NewRegistry()
	var jailed, tooLow, tooHigh types.Address
	jailed[0], tooLow[0], tooHigh[0] = 8, 9, 10
	eJailed := r.Register(jailed, types.NodeTypeFull, 0, "")
	eJailed.ConsensusScore = 30
	eJailed.JailedUntil = 1 << 40
	eLow := r.Register(tooLow, types.NodeTypeFull, 0, "")
	eLow.ConsensusScore = 5
	eHigh := r.Register(tooHigh, types.NodeTypeFull, 0, "")
	eHigh.ConsensusScore = 80

	r.ApplyPassiveRecovery(PassiveRecoveryInterval.Microseconds())

	gJailed, _ := r.Get(jailed)
	gLow, _ := r.Get(tooLow)
	gHigh, _ := r.Get(tooHigh)
	require.Equal(t, 30.0, gJailed.ConsensusScore)
	require.Equal(t, 5.0, gLow.ConsensusScore)
	require.Equal(t, 80.0, gHigh.ConsensusScore)
}

func TestMergeWeightsLocalMoreHeavily(t *testing.T) {
	r := NewRegistry()
	var addr types.Address
	addr[0] = 11
	r.Register(addr, types.NodeTypeFull, 0, "")

	r.Merge(addr, 0, 0, 0)
	got, _ := r.Get(addr)
	require.InDelta(t, 35.0, got.ConsensusScore, 0.001) // 50*0.7 + 0*0.3
}

func TestEligibleFiltersByScoreAndJail(t *testing.T) {
	r := NewRegistry()
	var low, high types.Address
	low[0], high[0] = 12, 13
	eLow := r.Register(low, types.NodeTypeFull, 0, "")
	eLow.ConsensusScore = 10
	eHigh := r.Register(high, types.NodeTypeFull, 0, "")
	eHigh.ConsensusScore = 90

	eligible := r.Eligible(0, 70)
	require.Contains(t, eligible, high)
	require.NotContains(t, eligible, low)
}
