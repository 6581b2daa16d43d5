// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"sync"
	"time"

	"github.com/luxfi/qnet/types"
)

// SoftCause identifies one of the three escalating soft-ban reasons spec
// §4.10 names, each with its own escalation ladder.
type SoftCause int

const (
	SoftSlowResponse SoftCause = iota
	SoftSyncTimeout
	SoftConnectionFailure
)

// softLadders holds, per cause, the escalating ban durations spec §4.10
// prescribes: slow response 15->30->60s; sync timeout 30->60->120s;
// connection failure 10->20->40s. A peer's Nth offense within a cause (1
// bench per offense, capped at the ladder's length) serves that duration.
var softLadders = map[SoftCause][]time.Duration{
	SoftSlowResponse:      {15 * time.Second, 30 * time.Second, 60 * time.Second},
	SoftSyncTimeout:       {30 * time.Second, 60 * time.Second, 120 * time.Second},
	SoftConnectionFailure: {10 * time.Second, 20 * time.Second, 40 * time.Second},
}

// CleanResetWindow is how long a peer must stay offense-free before its
// soft-ban escalation counter resets to the ladder's first rung.
const CleanResetWindow = 5 * time.Minute

// HardBanScoreThreshold is the consensus_score a hard-banned peer must
// regain before Blacklist lifts a hard ban (spec §4.10).
const HardBanScoreThreshold = 70.0

type softEntry struct {
	strikes  int
	bannedAt time.Time
	bannedUntil time.Time
}

// ScoreSource resolves a peer's current consensus_score, letting Blacklist
// decide whether a hard ban may be lifted without importing reputation
// directly.
type ScoreSource interface {
	ConsensusScore(addr types.Address) float64
}

// Blacklist is the node's peer-admission gate: a soft, time-bounded ladder
// for transient misbehavior and a hard, score-gated ban for Byzantine
// behavior (spec §4.10), generalized from the teacher's benchlist Manager
// (networking/benchlist/manager.go), which tracks a single escalating
// duration per node; here each of the three named soft causes gets its own
// ladder and a hard tier is added.
type Blacklist struct {
	mu     sync.Mutex
	scores ScoreSource

	soft map[softKey]*softEntry
	hard map[types.Address]struct{}
}

type softKey struct {
	addr  types.Address
	cause SoftCause
}

func NewBlacklist(scores ScoreSource) *Blacklist {
	return &Blacklist{
		scores: scores,
		soft:   make(map[softKey]*softEntry),
		hard:   make(map[types.Address]struct{}),
	}
}

// RegisterSoftOffense bans addr for the next duration on cause's ladder,
// escalating if the peer's prior offense on this cause was within
// CleanResetWindow.
func (b *Blacklist) RegisterSoftOffense(addr types.Address, cause SoftCause, now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := softKey{addr: addr, cause: cause}
	e, ok := b.soft[k]
	if !ok || now.Sub(e.bannedAt) > CleanResetWindow {
		e = &softEntry{}
		b.soft[k] = e
	}
	ladder := softLadders[cause]
	if e.strikes >= len(ladder) {
		e.strikes = len(ladder) - 1
	}
	dur := ladder[e.strikes]
	if e.strikes < len(ladder)-1 {
		e.strikes++
	}
	e.bannedAt = now
	e.bannedUntil = now.Add(dur)
	return dur
}

// RegisterHardOffense bans addr indefinitely for Byzantine behavior
// (invalid block, malicious reputation strike) until its consensus_score
// recovers to HardBanScoreThreshold.
func (b *Blacklist) RegisterHardOffense(addr types.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hard[addr] = struct{}{}
}

// IsBanned reports whether addr is currently soft- or hard-banned.
func (b *Blacklist) IsBanned(addr types.Address, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, hard := b.hard[addr]; hard {
		if b.scores != nil && b.scores.ConsensusScore(addr) >= HardBanScoreThreshold {
			delete(b.hard, addr)
		} else {
			return true
		}
	}
	for k, e := range b.soft {
		if k.addr != addr {
			continue
		}
		if now.Before(e.bannedUntil) {
			return true
		}
	}
	return false
}
