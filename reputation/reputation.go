// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reputation tracks each registered node's two-axis reputation
// (consensus_score, network_score) and enforces the progressive jail
// schedule malicious behavior triggers (spec §4.5). The registry shape —
// a concurrency-safe map keyed by node address with a narrow
// Set-like query surface — is grounded on the teacher's validators.Set
// abstraction (validators/validators.go), generalized from a
// weight/sampling view over a fixed validator set to a mutable,
// continuously-scored participant registry.
package reputation

import (
	"sync"
	"time"

	"github.com/luxfi/qnet/types"
)

// Event is a reputation-affecting occurrence, each carrying the exact
// score delta defined by spec §4.5's event table.
type Event int

const (
	EventRotationComplete   Event = iota // full rotation complete
	EventRoundParticipation              // consensus round participation
	EventInvalidBlock                    // invalid block produced
	EventConsensusFailure                // consensus failure
	EventMalicious                       // malicious behavior: immediate jail
	EventTimeoutFailure                  // network-level timeout
	EventConnectionFailure               // network-level connection failure
	EventNodeKilled                      // node went offline mid-round (scenario: takeover)
	EventTakeover                        // a standby node completed the killed node's slots
)

// consensusDelta and networkDelta give the exact per-event score change
// applied to a node's consensus_score / network_score respectively. Events
// not affecting an axis carry a zero delta on it.
var consensusDelta = map[Event]float64{
	EventRotationComplete:   +2.0,
	EventRoundParticipation: +1.0,
	EventInvalidBlock:       -20.0,
	EventConsensusFailure:   -10.0,
	EventMalicious:          -50.0,
	EventNodeKilled:         -20.0,
	EventTakeover:           +5.0,
}

var networkDelta = map[Event]float64{
	EventTimeoutFailure:    -2.0,
	EventConnectionFailure: -5.0,
}

// ScoreFloor and ScoreCeiling bound both axes.
const (
	ScoreFloor   = 0.0
	ScoreCeiling = 100.0
)

// NetworkBanFloor is the consensus_score below which a node is placed
// under a network-level ban (spec §4.5) — a separate mechanism from the
// jail schedule below, which is driven only by malicious-behavior strikes.
const NetworkBanFloor = 10.0

// PassiveRecoveryFloor/Ceiling bound the score range eligible for passive
// recovery: a node that is not jailed and sits in [10, 70) regains score
// over time even with no further activity (spec §4.5).
const (
	PassiveRecoveryFloor   = 10.0
	PassiveRecoveryCeiling = 70.0
	PassiveRecoveryDelta   = 1.0
)

// PassiveRecoveryInterval is how often passive recovery may apply to a
// given node.
const PassiveRecoveryInterval = 4 * time.Hour

// JailSchedule is the progressive ban duration applied on successive
// malicious-behavior strikes (spec §4.5). Index 0 is the first strike's
// duration; every strike past the last entry serves that last entry's 365
// days again. No strike produces a permanent ban.
var JailSchedule = []time.Duration{
	1 * time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
	90 * 24 * time.Hour,
	365 * 24 * time.Hour,
}

// Registry is the concurrency-safe store of every known node's reputation
// state.
type Registry struct {
	mu      sync.RWMutex
	entries map[types.Address]*types.RegistryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[types.Address]*types.RegistryEntry)}
}

// Register adds a new node at the registry's default scores. It is a
// no-op if the node is already present.
func (r *Registry) Register(addr types.Address, nodeType types.NodeType, nowMicros int64, region string) *types.RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[addr]; ok {
		return e
	}
	e := &types.RegistryEntry{
		NodeAddr:              addr,
		Type:                  nodeType,
		RegisteredAt:          nowMicros,
		ConsensusScore:        50.0,
		NetworkScore:          50.0,
		LastSeenAt:            nowMicros,
		LastPassiveRecoveryAt: nowMicros,
		Region:                region,
	}
	r.entries[addr] = e
	return e
}

func (r *Registry) Get(addr types.Address) (*types.RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[addr]
	return e, ok
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Eligible returns the addresses of every full or super node currently
// eligible to be selected as a block producer.
func (r *Registry) Eligible(nowMicros int64, minConsensusScore float64) []types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Address, 0, len(r.entries))
	for addr, e := range r.entries {
		if e.Eligible(nowMicros, minConsensusScore) {
			out = append(out, addr)
		}
	}
	return out
}

func clamp(v float64) float64 {
	if v < ScoreFloor {
		return ScoreFloor
	}
	if v > ScoreCeiling {
		return ScoreCeiling
	}
	return v
}

// Apply records ev against addr's scores. Jailing only follows from
// EventMalicious, which advances the node's jail strike and applies the
// next tier of JailSchedule; any other event that drops consensus_score
// below NetworkBanFloor instead sets NetworkBanned, a distinct and
// non-expiring condition. It returns ErrNotValidator if addr is
// unregistered.
func (r *Registry) Apply(addr types.Address, ev Event, nowMicros int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[addr]
	if !ok {
		return types.ErrNotValidator
	}

	e.ConsensusScore = clamp(e.ConsensusScore + consensusDelta[ev])
	e.NetworkScore = clamp(e.NetworkScore + networkDelta[ev])
	e.LastSeenAt = nowMicros

	if ev == EventMalicious {
		jail(e, nowMicros)
		return nil
	}

	if e.ConsensusScore < NetworkBanFloor {
		e.NetworkBanned = true
	}
	return nil
}

func jail(e *types.RegistryEntry, nowMicros int64) {
	idx := e.JailStrikeCount
	if idx >= len(JailSchedule) {
		idx = len(JailSchedule) - 1
	}
	e.JailedUntil = nowMicros + JailSchedule[idx].Microseconds()
	e.JailStrikeCount++
}

// ApplyPassiveRecovery grants PassiveRecoveryDelta to every node that is
// not jailed, not network-banned, sits within
// [PassiveRecoveryFloor, PassiveRecoveryCeiling), and has not already
// recovered within the last PassiveRecoveryInterval. It is meant to be
// invoked periodically by a long-running maintenance task.
func (r *Registry) ApplyPassiveRecovery(nowMicros int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Jailed(nowMicros) || e.NetworkBanned {
			continue
		}
		if e.ConsensusScore < PassiveRecoveryFloor || e.ConsensusScore >= PassiveRecoveryCeiling {
			continue
		}
		if nowMicros-e.LastPassiveRecoveryAt < PassiveRecoveryInterval.Microseconds() {
			continue
		}
		e.ConsensusScore = clamp(e.ConsensusScore + PassiveRecoveryDelta)
		e.LastPassiveRecoveryAt = nowMicros
	}
}

// Merge folds a peer's gossiped view of addr's scores into the local view
// using a 0.7 local / 0.3 remote weighted average (spec §4.5), the
// eventual-consistency rule applied on every gossip round.
func (r *Registry) Merge(addr types.Address, remoteConsensus, remoteNetwork float64, nowMicros int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[addr]
	if !ok {
		return
	}
	const localWeight, remoteWeight = 0.7, 0.3
	e.ConsensusScore = clamp(e.ConsensusScore*localWeight + remoteConsensus*remoteWeight)
	e.NetworkScore = clamp(e.NetworkScore*localWeight + remoteNetwork*remoteWeight)
	_ = nowMicros
}

// GossipFanout is the number of Kademlia-nearest peers each gossip round
// targets.
const GossipFanout = 3

// GossipInterval is the cadence of the reputation gossip protocol.
const GossipInterval = 5 * time.Minute
