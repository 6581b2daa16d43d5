// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"bytes"
	"testing"

	"github.com/luxfi/qnet/types"
)

func TestSplitReconstructRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte("abcd"), 1000) // 4000 bytes, several chunks
	hash := [32]byte{1}

	chunks, err := SplitBlock(hash, raw)
	if err != nil {
		t.Fatalf("SplitBlock: %v", err)
	}

	got, err := ReconstructBlock(chunks, len(raw))
	if err != nil {
		t.Fatalf("ReconstructBlock: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatal("reconstructed block does not match original")
	}
}

func TestReconstructToleratesMissingChunks(t *testing.T) {
	raw := bytes.Repeat([]byte("z"), 5000)
	hash := [32]byte{2}

	chunks, err := SplitBlock(hash, raw)
	if err != nil {
		t.Fatalf("SplitBlock: %v", err)
	}
	dataShards := chunks[0].DataShards
	parity := chunks[0].Total - dataShards
	if parity == 0 {
		t.Fatal("expected at least one parity shard")
	}

	// Drop one data chunk; reconstruction should still work using parity.
	dropped := append([]Chunk{}, chunks[1:]...)
	got, err := ReconstructBlock(dropped, len(raw))
	if err != nil {
		t.Fatalf("ReconstructBlock with dropped chunk: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatal("reconstructed block does not match original after chunk loss")
	}
}

func TestSplitBlockRejectsOversized(t *testing.T) {
	raw := make([]byte, MaxBlockSize+1)
	if _, err := SplitBlock([32]byte{}, raw); err != ErrBlockTooLarge {
		t.Fatalf("got %v, want ErrBlockTooLarge", err)
	}
}

func TestChunkRecipientsRotatesByIndex(t *testing.T) {
	self := addrN(1)
	candidates := []types.Address{addrN(2), addrN(3), addrN(4), addrN(5), addrN(6)}
	r0 := ChunkRecipients(self, candidates, 0)
	r1 := ChunkRecipients(self, candidates, 1)
	if len(r0) == 0 || len(r1) == 0 {
		t.Fatal("expected non-empty recipient sets")
	}
	if r0[0] == r1[0] {
		t.Fatal("expected chunk 0 and chunk 1 to start at different recipients")
	}
}
