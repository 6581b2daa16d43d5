// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package p2p implements QNet's gossip transport (spec §4.10): Kademlia-XOR
// peer selection with network-size-adaptive fan-out, Turbine-style
// chunked+erasure-coded block propagation, a token-bucket-limited
// request/response surface, and a soft/hard peer blacklist. The message
// envelope and dispatch-table shape follow the teacher's p2p handler
// registration (networking/router.go's type-keyed handler map), generalized
// from the teacher's protobuf-framed messages to the fixed binary envelope
// spec §6 defines.
package p2p

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MsgType identifies the payload that follows a message envelope's header,
// exactly the ten variants spec §6's wire protocol table enumerates.
type MsgType uint8

const (
	MsgBlockChunk       MsgType = 1
	MsgTx               MsgType = 2
	MsgNodeAnnounce     MsgType = 3
	MsgHeartbeat        MsgType = 4
	MsgReputationUpdate MsgType = 5
	MsgSyncRequest      MsgType = 6
	MsgSyncResponse     MsgType = 7
	MsgPing             MsgType = 8
	MsgPingResp         MsgType = 9
	MsgBundle           MsgType = 10
)

func (t MsgType) String() string {
	switch t {
	case MsgBlockChunk:
		return "BlockChunk"
	case MsgTx:
		return "Tx"
	case MsgNodeAnnounce:
		return "NodeAnnounce"
	case MsgHeartbeat:
		return "Heartbeat"
	case MsgReputationUpdate:
		return "ReputationUpdate"
	case MsgSyncRequest:
		return "SyncRequest"
	case MsgSyncResponse:
		return "SyncResponse"
	case MsgPing:
		return "Ping"
	case MsgPingResp:
		return "PingResp"
	case MsgBundle:
		return "Bundle"
	default:
		return fmt.Sprintf("MsgType(%d)", uint8(t))
	}
}

// envelopeHeaderLen is the u32 length prefix plus the u8 msg_type byte.
const envelopeHeaderLen = 5

// MaxEnvelopeBody bounds a single framed message to the max block size
// (spec §4.10: "Max block size: 64 KB (64 chunks)"), which is also the
// largest payload any message type on the wire carries.
const MaxEnvelopeBody = 64 * 1024

var (
	ErrEnvelopeTooLarge = errors.New("p2p: envelope body exceeds MaxEnvelopeBody")
	ErrEnvelopeTooShort = errors.New("p2p: envelope shorter than header")
	ErrUnknownMsgType   = errors.New("p2p: unknown message type")
)

// Envelope is one framed wire message: u32 length | u8 msg_type | body.
type Envelope struct {
	Type MsgType
	Body []byte
}

// Encode serializes the envelope to its wire form.
func (e Envelope) Encode() ([]byte, error) {
	if len(e.Body) > MaxEnvelopeBody {
		return nil, ErrEnvelopeTooLarge
	}
	buf := make([]byte, envelopeHeaderLen+len(e.Body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(e.Body)+1))
	buf[4] = byte(e.Type)
	copy(buf[5:], e.Body)
	return buf, nil
}

// DecodeEnvelope parses one framed message from the front of buf, returning
// the envelope and the number of bytes consumed.
func DecodeEnvelope(buf []byte) (Envelope, int, error) {
	if len(buf) < 4 {
		return Envelope{}, 0, ErrEnvelopeTooShort
	}
	length := binary.LittleEndian.Uint32(buf[0:4])
	if length == 0 || length > MaxEnvelopeBody+1 {
		return Envelope{}, 0, ErrEnvelopeTooLarge
	}
	total := 4 + int(length)
	if len(buf) < total {
		return Envelope{}, 0, ErrEnvelopeTooShort
	}
	t := MsgType(buf[4])
	if t < MsgBlockChunk || t > MsgBundle {
		return Envelope{}, total, ErrUnknownMsgType
	}
	body := make([]byte, length-1)
	copy(body, buf[5:total])
	return Envelope{Type: t, Body: body}, total, nil
}
