// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLen is the fixed length of the opaque address payload before
// base58 encoding (spec §6): a SHA3-256 digest of a node's long-term public
// key, truncated to 20 bytes, the way most account-model chains derive
// addresses from a key hash rather than carrying the raw key.
const AddressLen = 20

// Address is an opaque 20-byte account identifier, written in base58 by
// String. The base58 form has no fixed length: it depends on the value.
type Address [AddressLen]byte

// String returns the base58 encoding of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// ParseAddress decodes a base58-encoded address string.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("types: decode address: %w", err)
	}
	if len(raw) != AddressLen {
		return Address{}, fmt.Errorf("types: address %q decodes to %d bytes, want %d", s, len(raw), AddressLen)
	}
	var addr Address
	copy(addr[:], raw)
	return addr, nil
}

// AddressFromPublicKey derives an address from a node's long-term public
// key hash, already computed by the caller (crypto/canon.Sum256).
func AddressFromPublicKey(pubKeyHash [32]byte) Address {
	var addr Address
	copy(addr[:], pubKeyHash[:AddressLen])
	return addr
}

func (a Address) IsZero() bool {
	return a == Address{}
}
