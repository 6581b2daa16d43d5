// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"errors"

	"github.com/klauspost/reedsolomon"

	"github.com/luxfi/qnet/types"
)

// ChunkSize is the Turbine data-chunk size (spec §4.10: "split block into
// 1 KB data chunks").
const ChunkSize = 1024

// MaxBlockSize bounds a block eligible for chunked propagation (spec §4.10
// / §4.3: "Max block size: 64 KB (64 chunks)").
const MaxBlockSize = 64 * 1024

// ParityRatio is the Reed-Solomon redundancy factor applied on top of the
// data shards (spec §4.10: "parity chunks to 1.5x redundancy").
const ParityRatio = 0.5

// FanoutPerChunk is how many peers each chunk is independently forwarded
// to (spec §4.10: "forward each chunk independently to K=4 peers").
const FanoutPerChunk = 4

var ErrBlockTooLarge = errors.New("p2p: block exceeds MaxBlockSize")

// Chunk is one Turbine shard, data or parity, addressed by its position so
// reedsolomon can reconstruct regardless of arrival order.
type Chunk struct {
	BlockHash  [32]byte
	Index      int
	DataShards int
	Total      int
	Payload    []byte
}

// SplitBlock erasure-codes raw block bytes into data+parity chunks, no
// library in the retrieval pack performs Reed-Solomon coding, so this uses
// github.com/klauspost/reedsolomon, the ecosystem-standard Go
// implementation (documented in DESIGN.md as an out-of-pack addition).
func SplitBlock(blockHash [32]byte, raw []byte) ([]Chunk, error) {
	if len(raw) > MaxBlockSize {
		return nil, ErrBlockTooLarge
	}
	dataShards := (len(raw) + ChunkSize - 1) / ChunkSize
	if dataShards == 0 {
		dataShards = 1
	}
	parityShards := int(float64(dataShards) * ParityRatio)
	if parityShards == 0 {
		parityShards = 1
	}

	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	shards, err := enc.Split(padTo(raw, dataShards*ChunkSize))
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(shards); err != nil {
		return nil, err
	}

	total := dataShards + parityShards
	chunks := make([]Chunk, total)
	for i, s := range shards {
		chunks[i] = Chunk{BlockHash: blockHash, Index: i, DataShards: dataShards, Total: total, Payload: s}
	}
	return chunks, nil
}

// ReconstructBlock rebuilds the original block bytes once at least
// dataShards chunks (data or parity) are present (spec §4.10: "Recipients
// reconstruct the block once >= data_chunks chunks are available").
func ReconstructBlock(chunks []Chunk, origLen int) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, errors.New("p2p: no chunks to reconstruct from")
	}
	dataShards := chunks[0].DataShards
	total := chunks[0].Total

	shards := make([][]byte, total)
	for _, c := range chunks {
		shards[c.Index] = c.Payload
	}
	enc, err := reedsolomon.New(dataShards, total-dataShards)
	if err != nil {
		return nil, err
	}
	if err := enc.Reconstruct(shards); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, dataShards*ChunkSize)
	for i := 0; i < dataShards; i++ {
		buf = append(buf, shards[i]...)
	}
	if origLen > len(buf) {
		origLen = len(buf)
	}
	return buf[:origLen], nil
}

func padTo(raw []byte, size int) []byte {
	if len(raw) >= size {
		return raw
	}
	out := make([]byte, size)
	copy(out, raw)
	return out
}

// ChunkRecipients selects the FanoutPerChunk peers chunk chunkIndex should
// be forwarded to: a window over the candidates ranked by ClosestPeers that
// starts chunkIndex places down the ranking and wraps around, spreading
// distinct chunks across distinct subsets of the candidate set when there
// are more than FanoutPerChunk candidates.
func ChunkRecipients(self types.Address, candidates []types.Address, chunkIndex int) []types.Address {
	ranked := ClosestPeers(self, candidates, len(candidates))
	n := len(ranked)
	if n <= FanoutPerChunk {
		return ranked
	}
	out := make([]types.Address, FanoutPerChunk)
	shift := chunkIndex % n
	for i := range out {
		out[i] = ranked[(shift+i)%n]
	}
	return out
}
