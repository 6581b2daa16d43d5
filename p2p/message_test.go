// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import "testing"

func TestEnvelopeRoundTrip(t *testing.T) {
	e := Envelope{Type: MsgHeartbeat, Body: []byte("ping")}
	buf, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, n, err := DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if got.Type != MsgHeartbeat || string(got.Body) != "ping" {
		t.Fatalf("got %+v", got)
	}
}

func TestEncodeRejectsOversizedBody(t *testing.T) {
	e := Envelope{Type: MsgBlockChunk, Body: make([]byte, MaxEnvelopeBody+1)}
	if _, err := e.Encode(); err != ErrEnvelopeTooLarge {
		t.Fatalf("got %v, want ErrEnvelopeTooLarge", err)
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, _, err := DecodeEnvelope([]byte{1, 2}); err != ErrEnvelopeTooShort {
		t.Fatalf("got %v, want ErrEnvelopeTooShort", err)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	e := Envelope{Type: MsgBundle, Body: []byte("x")}
	buf, _ := e.Encode()
	buf[4] = 99
	if _, _, err := DecodeEnvelope(buf); err != ErrUnknownMsgType {
		t.Fatalf("got %v, want ErrUnknownMsgType", err)
	}
}

func TestMsgTypeString(t *testing.T) {
	if MsgPing.String() != "Ping" {
		t.Fatalf("got %q", MsgPing.String())
	}
	if MsgType(200).String() == "" {
		t.Fatal("expected non-empty fallback string")
	}
}
