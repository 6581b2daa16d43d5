// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainmgr implements the receive-validate-apply pipeline, the
// out-of-order block buffer, active missing-block requests, and
// deterministic fork resolution (spec §4.9). Its validation pipeline is
// grounded on the teacher's block-acceptance path (acceptor.go's
// structural/cryptographic/linkage checks), generalized from DAG
// vertex acceptance to linear microblock linking.
package chainmgr

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/qnet/reputation"
	"github.com/luxfi/qnet/types"
	"github.com/luxfi/validators"
)

// ValidatorSet adapts reputation.Registry to github.com/luxfi/validators'
// Set interface, so chainmgr's producer/fork-resolution checks run against
// the same validator-set abstraction the wider luxfi stack uses rather
// than a bespoke one. Sample-by-size, used for the entropy cross-check at
// rotation boundaries (spec §4.6), returns distinct node IDs like
// validators.Set.Sample, but takes them in registry order rather than
// drawing them at random.
type ValidatorSet struct {
	registry  *reputation.Registry
	nowMicros int64
	minScore  float64
}

// NewValidatorSet wraps registry without copying it: every query reads the
// registry's current entries and judges eligibility at nowMicros/minScore.
func NewValidatorSet(registry *reputation.Registry, nowMicros int64, minScore float64) *ValidatorSet {
	return &ValidatorSet{registry: registry, nowMicros: nowMicros, minScore: minScore}
}

func addrToNodeID(a types.Address) ids.NodeID {
	var n ids.NodeID
	copy(n[:], a[:])
	return n
}

func nodeIDToAddr(n ids.NodeID) types.Address {
	var a types.Address
	copy(a[:], n[:])
	return a
}

// Has reports whether nodeID is currently eligible.
func (s *ValidatorSet) Has(nodeID ids.NodeID) bool {
	e, ok := s.registry.Get(nodeIDToAddr(nodeID))
	return ok && e.Eligible(s.nowMicros, s.minScore)
}

// Len returns the number of eligible nodes.
func (s *ValidatorSet) Len() int {
	return len(s.registry.Eligible(s.nowMicros, s.minScore))
}

// eligibleValidator adapts one registry entry to validators.Validator.
type eligibleValidator struct {
	addr  types.Address
	light uint64
}

func (v eligibleValidator) ID() ids.NodeID { return addrToNodeID(v.addr) }
func (v eligibleValidator) Light() uint64  { return v.light }

// List returns every currently eligible validator, light-weighted by
// consensus_score so downstream weighted sampling (if any) favors
// higher-reputation nodes.
func (s *ValidatorSet) List() []validators.Validator {
	addrs := s.registry.Eligible(s.nowMicros, s.minScore)
	out := make([]validators.Validator, 0, len(addrs))
	for _, a := range addrs {
		e, ok := s.registry.Get(a)
		if !ok {
			continue
		}
		out = append(out, eligibleValidator{addr: a, light: uint64(e.ConsensusScore)})
	}
	return out
}

// Light returns the total light (summed consensus_score) of the set.
func (s *ValidatorSet) Light() uint64 {
	var total uint64
	for _, v := range s.List() {
		total += v.Light()
	}
	return total
}

// Sample returns up to size distinct eligible node IDs for spec §4.6's
// rotation-boundary entropy cross-check ("each node additionally samples a
// size-adaptive subset of peers"). It takes the first size entries of
// reputation.Registry.Eligible, whose order is Go map iteration order; the
// selection is not uniformly random and not reproducible between calls.
func (s *ValidatorSet) Sample(size int) ([]ids.NodeID, error) {
	addrs := s.registry.Eligible(s.nowMicros, s.minScore)
	if size > len(addrs) {
		size = len(addrs)
	}
	out := make([]ids.NodeID, size)
	for i := 0; i < size; i++ {
		out[i] = addrToNodeID(addrs[i])
	}
	return out, nil
}

// EntropySampleSize returns the size-adaptive peer sample spec §4.6
// specifies for the rotation-boundary Byzantine-safety cross-check.
func EntropySampleSize(eligibleCount int) int {
	switch {
	case eligibleCount <= 50:
		return 50
	case eligibleCount <= 200:
		return 20
	case eligibleCount <= 1000:
		return 50
	default:
		return 100
	}
}

var _ validators.Set = (*ValidatorSet)(nil)

// Manager is the minimal single-chain validators.Manager backed by one
// reputation.Registry; QNet runs a single chain, so chainID is ignored.
type Manager struct {
	set *ValidatorSet
}

func NewManager(set *ValidatorSet) *Manager { return &Manager{set: set} }

func (m *Manager) GetValidators(ids.ID) (validators.Set, error) { return m.set, nil }
func (m *Manager) GetLight(_ ids.ID, nodeID ids.NodeID) uint64 {
	for _, v := range m.set.List() {
		if v.ID() == nodeID {
			return v.Light()
		}
	}
	return 0
}
func (m *Manager) GetWeight(chainID ids.ID, nodeID ids.NodeID) uint64 { return m.GetLight(chainID, nodeID) }
func (m *Manager) TotalLight(ids.ID) (uint64, error)                 { return m.set.Light(), nil }
func (m *Manager) TotalWeight(chainID ids.ID) (uint64, error)        { return m.TotalLight(chainID) }

var _ validators.Manager = (*Manager)(nil)
