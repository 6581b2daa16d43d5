// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codec implements QNet's canonical wire encoding: a
// length-prefixed, little-endian binary format for blocks and
// transactions (spec §4.2, §6). The Packer/Unpacker shape — a byte buffer
// plus a sticky error field so call chains don't need to check err after
// every field — is grounded on utils/wrappers.Packer; this package
// deliberately packs multi-byte integers little-endian rather than the
// teacher's big-endian, a documented deviation (see DESIGN.md) made to
// match the wire layout spec §6 specifies.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/crypto/hybrid"
	"github.com/luxfi/qnet/types"
)

// Packer accumulates an encoded byte stream. Once Err is set, all further
// Pack calls are no-ops, so callers can pack a whole struct and check Err
// once at the end.
type Packer struct {
	Bytes []byte
	Err   error
}

// NewPacker returns a Packer with a pre-sized backing buffer.
func NewPacker(sizeHint int) *Packer {
	return &Packer{Bytes: make([]byte, 0, sizeHint)}
}

func (p *Packer) PackByte(b byte) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, b)
}

func (p *Packer) PackU32(v uint32) {
	if p.Err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	p.Bytes = append(p.Bytes, buf[:]...)
}

func (p *Packer) PackU64(v uint64) {
	if p.Err != nil {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	p.Bytes = append(p.Bytes, buf[:]...)
}

func (p *Packer) PackI64(v int64) { p.PackU64(uint64(v)) }

func (p *Packer) PackFixedBytes(b []byte) {
	if p.Err != nil {
		return
	}
	p.Bytes = append(p.Bytes, b...)
}

// PackBytes writes a uint32 length prefix followed by the bytes.
func (p *Packer) PackBytes(b []byte) {
	if p.Err != nil {
		return
	}
	p.PackU32(uint32(len(b)))
	p.Bytes = append(p.Bytes, b...)
}

// Unpacker reads sequentially from a byte slice, tracking a sticky error
// the same way Packer does.
type Unpacker struct {
	Bytes  []byte
	Offset int
	Err    error
}

func NewUnpacker(b []byte) *Unpacker {
	return &Unpacker{Bytes: b}
}

func (u *Unpacker) fail(err error) {
	if u.Err == nil {
		u.Err = err
	}
}

func (u *Unpacker) require(n int) bool {
	if u.Err != nil {
		return false
	}
	if u.Offset+n > len(u.Bytes) {
		u.fail(fmt.Errorf("codec: unexpected end of buffer: need %d bytes at offset %d, have %d", n, u.Offset, len(u.Bytes)))
		return false
	}
	return true
}

func (u *Unpacker) UnpackByte() byte {
	if !u.require(1) {
		return 0
	}
	b := u.Bytes[u.Offset]
	u.Offset++
	return b
}

func (u *Unpacker) UnpackU32() uint32 {
	if !u.require(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(u.Bytes[u.Offset:])
	u.Offset += 4
	return v
}

func (u *Unpacker) UnpackU64() uint64 {
	if !u.require(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(u.Bytes[u.Offset:])
	u.Offset += 8
	return v
}

func (u *Unpacker) UnpackI64() int64 { return int64(u.UnpackU64()) }

func (u *Unpacker) UnpackFixedBytes(n int) []byte {
	if !u.require(n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, u.Bytes[u.Offset:u.Offset+n])
	u.Offset += n
	return b
}

func (u *Unpacker) UnpackBytes() []byte {
	n := u.UnpackU32()
	return u.UnpackFixedBytes(int(n))
}

// EncodeTransaction serializes tx to its canonical wire form.
func EncodeTransaction(tx *types.Transaction) []byte {
	p := NewPacker(96 + len(tx.Payload) + len(tx.Signature))
	p.PackFixedBytes(tx.Hash[:])
	p.PackFixedBytes(tx.From[:])
	p.PackFixedBytes(tx.To[:])
	p.PackU64(tx.Amount)
	p.PackU64(tx.Nonce)
	p.PackU64(tx.GasPrice)
	p.PackU64(tx.GasLimit)
	p.PackByte(byte(tx.Type))
	p.PackBytes(tx.Payload)
	p.PackBytes(tx.Signature)
	return p.Bytes
}

// DecodeTransaction parses a transaction from its canonical wire form and
// re-encodes it to confirm the input was already canonical (spec §6: a
// protocol error if re-encoding a received block/tx does not reproduce the
// exact bytes received).
func DecodeTransaction(raw []byte) (*types.Transaction, error) {
	u := NewUnpacker(raw)
	tx := &types.Transaction{}
	copy(tx.Hash[:], u.UnpackFixedBytes(32))
	copy(tx.From[:], u.UnpackFixedBytes(types.AddressLen))
	copy(tx.To[:], u.UnpackFixedBytes(types.AddressLen))
	tx.Amount = u.UnpackU64()
	tx.Nonce = u.UnpackU64()
	tx.GasPrice = u.UnpackU64()
	tx.GasLimit = u.UnpackU64()
	tx.Type = types.TxType(u.UnpackByte())
	tx.Payload = u.UnpackBytes()
	tx.Signature = u.UnpackBytes()
	if u.Err != nil {
		return nil, fmt.Errorf("codec: decode transaction: %w", u.Err)
	}

	reEncoded := EncodeTransaction(tx)
	if !bytesEqual(reEncoded, raw) {
		return nil, fmt.Errorf("codec: decode transaction: re-encoding mismatch, not canonical")
	}
	return tx, nil
}

// EncodeMicroBlock serializes a microblock to its canonical wire form.
func EncodeMicroBlock(b *types.MicroBlock) []byte {
	p := NewPacker(256 + 32*len(b.TxHashes))
	p.PackU64(b.Height)
	p.PackU64(b.Round)
	p.PackFixedBytes(b.PrevHash[:])
	p.PackFixedBytes(b.ProducerAddr[:])
	p.PackI64(b.Timestamp)
	p.PackFixedBytes(b.PohHash[:])
	p.PackU64(b.PohCount)
	p.PackU32(uint32(len(b.TxHashes)))
	for _, h := range b.TxHashes {
		p.PackFixedBytes(h[:])
	}
	p.PackFixedBytes(b.StateRoot[:])
	p.PackBytes(b.Signature)
	return p.Bytes
}

// DecodeMicroBlock parses a microblock and enforces the re-encoding
// round-trip invariant described in EncodeMicroBlock's sibling decoder.
func DecodeMicroBlock(raw []byte) (*types.MicroBlock, error) {
	u := NewUnpacker(raw)
	b := &types.MicroBlock{}
	b.Height = u.UnpackU64()
	b.Round = u.UnpackU64()
	var prevHash, stateRoot canon.Hash256
	copy(prevHash[:], u.UnpackFixedBytes(32))
	b.PrevHash = prevHash
	copy(b.ProducerAddr[:], u.UnpackFixedBytes(types.AddressLen))
	b.Timestamp = u.UnpackI64()
	var pohHash [64]byte
	copy(pohHash[:], u.UnpackFixedBytes(64))
	b.PohHash = pohHash
	b.PohCount = u.UnpackU64()
	n := u.UnpackU32()
	b.TxHashes = make([]canon.Hash256, n)
	for i := range b.TxHashes {
		var h canon.Hash256
		copy(h[:], u.UnpackFixedBytes(32))
		b.TxHashes[i] = h
	}
	copy(stateRoot[:], u.UnpackFixedBytes(32))
	b.StateRoot = stateRoot
	b.Signature = u.UnpackBytes()
	if u.Err != nil {
		return nil, fmt.Errorf("codec: decode microblock: %w", u.Err)
	}

	reEncoded := EncodeMicroBlock(b)
	if !bytesEqual(reEncoded, raw) {
		return nil, fmt.Errorf("codec: decode microblock: re-encoding mismatch, not canonical")
	}
	return b, nil
}

// nodeIDLen is the fixed width of github.com/luxfi/ids.NodeID.
const nodeIDLen = 20

// EncodeHybridSignature serializes a hybrid signature (spec §4.1) to its
// canonical wire form: the certificate fields, then the ephemeral
// message signature.
func EncodeHybridSignature(sig *hybrid.Signature) []byte {
	cert := &sig.Certificate
	p := NewPacker(nodeIDLen + len(cert.EphemeralPK) + len(cert.CertSig) + 16 + len(sig.MessageSignature) + 8)
	p.PackFixedBytes(cert.NodeID[:])
	p.PackBytes(cert.EphemeralPK)
	p.PackBytes(cert.CertSig)
	p.PackI64(cert.IssuedAt)
	p.PackI64(cert.ExpiresAt)
	p.PackBytes(sig.MessageSignature)
	return p.Bytes
}

// DecodeHybridSignature parses a signature produced by EncodeHybridSignature.
func DecodeHybridSignature(raw []byte) (*hybrid.Signature, error) {
	u := NewUnpacker(raw)
	var nodeID ids.NodeID
	copy(nodeID[:], u.UnpackFixedBytes(nodeIDLen))
	ephPK := u.UnpackBytes()
	certSig := u.UnpackBytes()
	issuedAt := u.UnpackI64()
	expiresAt := u.UnpackI64()
	msgSig := u.UnpackBytes()
	if u.Err != nil {
		return nil, fmt.Errorf("codec: decode hybrid signature: %w", u.Err)
	}
	return &hybrid.Signature{
		Certificate: hybrid.Certificate{
			NodeID:      nodeID,
			EphemeralPK: ephPK,
			CertSig:     certSig,
			IssuedAt:    issuedAt,
			ExpiresAt:   expiresAt,
		},
		MessageSignature: msgSig,
	}, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
