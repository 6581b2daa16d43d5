// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/luxfi/qnet/crypto/canon"

// TxType distinguishes the transaction kinds defined in spec §3.
type TxType uint8

const (
	TxTransfer TxType = iota
	TxNodeActivation
	TxPingCommitment
	TxBurnProofRedemption
	TxContractCall
)

func (t TxType) String() string {
	switch t {
	case TxTransfer:
		return "transfer"
	case TxNodeActivation:
		return "node_activation"
	case TxPingCommitment:
		return "ping_commitment"
	case TxBurnProofRedemption:
		return "burn_proof_redemption"
	case TxContractCall:
		return "contract_call"
	default:
		return "unknown"
	}
}

// Transaction is a single signed state-mutating operation.
type Transaction struct {
	Hash      canon.Hash256
	From      Address
	To        Address
	Amount    uint64 // in the chain's smallest unit
	Nonce     uint64
	GasPrice  uint64
	GasLimit  uint64
	Type      TxType
	Payload   []byte // type-specific data (e.g. ping attestation, contract call args)
	Signature []byte // hybrid signature bytes, see crypto/hybrid
}

// SigningBytes returns the canonical byte sequence the transaction's
// signature is computed over: every field except Hash and Signature
// itself.
func (tx *Transaction) SigningBytes() []byte {
	buf := make([]byte, 0, 64+len(tx.Payload))
	buf = append(buf, tx.From[:]...)
	buf = append(buf, tx.To[:]...)
	buf = appendU64(buf, tx.Amount)
	buf = appendU64(buf, tx.Nonce)
	buf = appendU64(buf, tx.GasPrice)
	buf = appendU64(buf, tx.GasLimit)
	buf = append(buf, byte(tx.Type))
	buf = append(buf, tx.Payload...)
	return buf
}

// ComputeHash derives and sets tx.Hash from the transaction's signing bytes
// plus its signature, so the hash commits to the fully-signed transaction.
func (tx *Transaction) ComputeHash() canon.Hash256 {
	h := canon.Sum256(tx.SigningBytes(), tx.Signature)
	tx.Hash = h
	return h
}

func appendU64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
