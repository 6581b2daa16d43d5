// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"testing"
	"time"
)

type fakeScores struct {
	scores map[addrKey]float64
}

type addrKey = [20]byte

func (f fakeScores) ConsensusScore(addr [20]byte) float64 {
	return f.scores[addr]
}

func TestSoftOffenseEscalates(t *testing.T) {
	bl := NewBlacklist(nil)
	now := time.Now()
	a := addrN(1)

	d1 := bl.RegisterSoftOffense(a, SoftSlowResponse, now)
	d2 := bl.RegisterSoftOffense(a, SoftSlowResponse, now.Add(1*time.Second))
	d3 := bl.RegisterSoftOffense(a, SoftSlowResponse, now.Add(2*time.Second))
	if d1 != 15*time.Second || d2 != 30*time.Second || d3 != 60*time.Second {
		t.Fatalf("got %v, %v, %v", d1, d2, d3)
	}
}

func TestSoftOffenseResetsAfterCleanWindow(t *testing.T) {
	bl := NewBlacklist(nil)
	now := time.Now()
	a := addrN(1)
	bl.RegisterSoftOffense(a, SoftSyncTimeout, now)
	d := bl.RegisterSoftOffense(a, SoftSyncTimeout, now.Add(CleanResetWindow+time.Second))
	if d != 30*time.Second {
		t.Fatalf("got %v, want first-rung duration after reset", d)
	}
}

func TestIsBannedReflectsSoftWindow(t *testing.T) {
	bl := NewBlacklist(nil)
	now := time.Now()
	a := addrN(1)
	bl.RegisterSoftOffense(a, SoftConnectionFailure, now)
	if !bl.IsBanned(a, now.Add(1*time.Second)) {
		t.Fatal("expected banned within window")
	}
	if bl.IsBanned(a, now.Add(11*time.Second)) {
		t.Fatal("expected ban to expire")
	}
}

func TestHardBanLiftsOnlyAboveThreshold(t *testing.T) {
	a := addrN(1)
	scores := fakeScores{scores: map[addrKey]float64{a: 50}}
	bl := NewBlacklist(scores)
	bl.RegisterHardOffense(a)
	if !bl.IsBanned(a, time.Now()) {
		t.Fatal("expected hard ban while score below threshold")
	}
	scores.scores[a] = 71
	if bl.IsBanned(a, time.Now()) {
		t.Fatal("expected hard ban lifted once score clears threshold")
	}
}
