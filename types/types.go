// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package types

// NodeType distinguishes the roles a participant can register under
// (spec §3): full and super nodes produce blocks and serve pinger duty,
// light nodes only submit ping commitments.
type NodeType uint8

const (
	NodeTypeFull NodeType = iota
	NodeTypeLight
	NodeTypeSuper
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeLight:
		return "light"
	case NodeTypeSuper:
		return "super"
	default:
		return "full"
	}
}

// AccountState is the balance/nonce record for one address.
type AccountState struct {
	Address Address
	Balance uint64
	Nonce   uint64
}

// RegistryEntry is a node's record in the network-wide participant
// registry, the basis for producer rotation and reputation (spec §4).
type RegistryEntry struct {
	NodeAddr             Address
	Type                 NodeType
	RegisteredAt         int64 // unix micros
	ConsensusScore       float64
	NetworkScore         float64
	JailedUntil          int64 // unix micros; zero means not jailed
	JailStrikeCount      int
	NetworkBanned        bool // consensus_score dropped below the network-ban floor
	LastPassiveRecoveryAt int64
	LastSeenAt           int64
	Region               string
}

// Jailed reports whether the entry is currently serving a reputation ban.
func (e *RegistryEntry) Jailed(nowMicros int64) bool {
	return e.JailedUntil > nowMicros
}

// Eligible reports whether the entry may currently be selected as a block
// producer: registered, not jailed, not network-banned, and above the
// consensus-score floor.
func (e *RegistryEntry) Eligible(nowMicros int64, minConsensusScore float64) bool {
	isProducerRole := e.Type == NodeTypeFull || e.Type == NodeTypeSuper
	return isProducerRole && !e.Jailed(nowMicros) && !e.NetworkBanned && e.ConsensusScore >= minConsensusScore
}
