// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package canon computes the canonical SHA3 digests used for block, tx,
// and PoH hashing (spec §4.1). Go 1.24+ ships SHA3 directly in the
// standard library; the teacher reaches for crypto/sha256 the same way in
// crypto/binding/binding.go for its own simple digests, so no third-party
// hash package is introduced for this narrow concern (see DESIGN.md).
package canon

import "crypto/sha3"

// Hash256 is a 32-byte SHA3-256 digest.
type Hash256 [32]byte

// Hash512 is a 64-byte SHA3-512 digest, used for PoH and producer-selection
// seeds.
type Hash512 [64]byte

// Sum256 returns the SHA3-256 digest of data.
func Sum256(data ...[]byte) Hash256 {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash256
	h.Sum(out[:0])
	return out
}

// Sum512 returns the SHA3-512 digest of data.
func Sum512(data ...[]byte) Hash512 {
	h := sha3.New512()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash512
	h.Sum(out[:0])
	return out
}

// IsZero reports whether h is the all-zero digest (e.g. genesis previous_hash).
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

func (h Hash256) Bytes() []byte { return h[:] }
func (h Hash512) Bytes() []byte { return h[:] }
