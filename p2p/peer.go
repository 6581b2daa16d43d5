// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"math/bits"
	"sort"

	"github.com/luxfi/qnet/types"
)

// xorDistance is the Kademlia-XOR distance between two node identifiers,
// used by ClosestPeers to rank peers by proximity.
func xorDistance(a, b types.Address) [types.AddressLen]byte {
	var out [types.AddressLen]byte
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// leadingZeros counts the shared high-order bits between two node
// identifiers' XOR distance, the usual Kademlia closeness metric.
func leadingZeros(d [types.AddressLen]byte) int {
	n := 0
	for _, b := range d {
		if b == 0 {
			n += 8
			continue
		}
		n += bits.LeadingZeros8(b)
		break
	}
	return n
}

// FanoutFor returns the adaptive gossip fan-out for a network of the given
// size (spec §4.10: "0-100 -> 8 peers/region; 100-1000 -> 50; 1000-100000
// -> 100; >100000 -> 500").
func FanoutFor(networkSize int) int {
	switch {
	case networkSize <= 100:
		return 8
	case networkSize <= 1000:
		return 50
	case networkSize <= 100_000:
		return 100
	default:
		return 500
	}
}

// ClosestPeers returns up to k entries of candidates, self excluded, ordered
// by how many high-order bits they share with self (the leading zero bits
// of their Kademlia-XOR distance), most first, ties broken by address
// ascending; it does not order by the full distance value. This is the
// peer-selection
// rule spec §4.10 uses
// both for gossip fan-out and Turbine chunk forwarding.
func ClosestPeers(self types.Address, candidates []types.Address, k int) []types.Address {
	type ranked struct {
		addr types.Address
		lz   int
	}
	pool := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		if c == self {
			continue
		}
		pool = append(pool, ranked{addr: c, lz: leadingZeros(xorDistance(self, c))})
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].lz != pool[j].lz {
			return pool[i].lz > pool[j].lz // more shared prefix bits = closer
		}
		return string(pool[i].addr[:]) < string(pool[j].addr[:])
	})
	if k > len(pool) {
		k = len(pool)
	}
	out := make([]types.Address, k)
	for i := 0; i < k; i++ {
		out[i] = pool[i].addr
	}
	return out
}
