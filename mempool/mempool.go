// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mempool implements QNet's pending-transaction pool (spec §4.4): a
// gas-price-ordered priority queue with a FIFO tiebreak, a secondary
// tx-hash lookup for duplicate/removal checks, and a private-bundle (MEV)
// channel gated by consensus_score. No priority-queue library appears
// anywhere in the retrieval pack, so the heap itself is built on the
// stdlib container/heap the same way every idiomatic Go priority queue is
// (see DESIGN.md); the sender-nonce gating and mutex-guarded index mirror
// the teacher's single-writer-many-reader shape used for registry/
// reputation (spec §5: "mempool: lock-free concurrent map for tx lookup; a
// serialized priority index updated under a mutex").
package mempool

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/luxfi/qnet/types"
)

// errDuplicateHash is returned by Add when a transaction with the same hash
// is already pending.
var errDuplicateHash = errors.New("mempool: duplicate transaction hash")

// MinGasPrice is the minimum accepted gas_price, per byte-or-op (spec §4.4).
const MinGasPrice = 100_000

// DefaultTTL is how long an unincluded transaction may sit in the pool
// before evict_expired reclaims it.
const DefaultTTL = 10 * time.Minute

// DefaultMaxBytes bounds the pool's total transaction payload size (spec
// §5: "Mempool bounded by total bytes (configurable; default 256 MB)").
const DefaultMaxBytes = 256 << 20

// NonceSource resolves a sender's next-expected nonce from committed state,
// letting mempool reject stale/duplicate transactions without importing
// storage directly.
type NonceSource interface {
	AccountNonce(addr types.Address) uint64
}

type item struct {
	tx       *types.Transaction
	seq      uint64 // insertion sequence, FIFO tiebreak at equal gas price
	expireAt time.Time
	index    int // heap index, maintained by container/heap
}

// priorityQueue orders items by gas_price descending, ties broken by
// earlier insertion (lower seq) first.
type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].tx.GasPrice != pq[j].tx.GasPrice {
		return pq[i].tx.GasPrice > pq[j].tx.GasPrice
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*pq)
	*pq = append(*pq, it)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}

// Pool is the concurrency-safe pending transaction pool.
type Pool struct {
	mu sync.Mutex

	nonces  NonceSource
	maxSize int
	maxBytes uint64
	ttl     time.Duration

	pq        priorityQueue
	byHash    map[[32]byte]*item
	bySender  map[types.Address][]*item // kept sorted by nonce ascending
	totalBytes uint64
	seq       uint64
}

// New returns an empty Pool. maxSize caps the number of pending
// transactions; maxBytes caps their combined payload size.
func New(nonces NonceSource, maxSize int, maxBytes uint64, ttl time.Duration) *Pool {
	return &Pool{
		nonces:   nonces,
		maxSize:  maxSize,
		maxBytes: maxBytes,
		ttl:      ttl,
		byHash:   make(map[[32]byte]*item),
		bySender: make(map[types.Address][]*item),
	}
}

// Add validates and inserts tx (spec §4.4 add()): rejects a stale nonce, a
// sub-floor gas price, a duplicate hash, or a full queue.
func (p *Pool) Add(tx *types.Transaction, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tx.GasPrice < MinGasPrice {
		return types.ValidationError("mempool.Add", types.ErrInvalidBlock)
	}
	if _, dup := p.byHash[tx.Hash]; dup {
		return types.ValidationError("mempool.Add", errDuplicateHash)
	}
	if tx.Nonce < p.nonces.AccountNonce(tx.From) {
		return types.ErrNonceTooLow
	}
	if len(p.byHash) >= p.maxSize {
		return types.ErrMempoolFull
	}
	if p.totalBytes+uint64(len(tx.Payload)) > p.maxBytes {
		return types.ErrMempoolFull
	}

	p.seq++
	it := &item{tx: tx, seq: p.seq, expireAt: now.Add(p.ttl)}
	heap.Push(&p.pq, it)
	p.byHash[tx.Hash] = it
	p.insertBySender(it)
	p.totalBytes += uint64(len(tx.Payload))
	return nil
}

func (p *Pool) insertBySender(it *item) {
	list := p.bySender[it.tx.From]
	i := 0
	for i < len(list) && list[i].tx.Nonce < it.tx.Nonce {
		i++
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = it
	p.bySender[it.tx.From] = list
}

// Take returns up to limit transactions in priority order, enforcing the
// sender-nonce-gap=1 rule: at most one pending transaction per sender is
// eligible per call, namely the sender's lowest-nonce pending transaction
// (spec §4.4 take()). shardHint is currently advisory and unused by the
// single-shard implementation (spec §2 Non-goals: sharded execution is a
// future extension).
func (p *Pool) Take(limit int, shardHint uint8) []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	eligible := make(map[types.Address]bool, len(p.bySender))
	out := make([]*types.Transaction, 0, limit)

	scratch := make(priorityQueue, len(p.pq))
	copy(scratch, p.pq)
	heap.Init(&scratch)

	for len(out) < limit && scratch.Len() > 0 {
		it := heap.Pop(&scratch).(*item)
		if eligible[it.tx.From] {
			continue // sender already has one pending slot taken this round
		}
		if front := p.bySender[it.tx.From]; len(front) == 0 || front[0] != it {
			continue // not this sender's lowest-nonce pending tx
		}
		eligible[it.tx.From] = true
		out = append(out, it.tx)
	}
	return out
}

// Remove deletes the given transaction hashes after inclusion in a block.
func (p *Pool) Remove(hashes ...[32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		p.removeLocked(h)
	}
}

func (p *Pool) removeLocked(hash [32]byte) {
	it, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	if it.index >= 0 && it.index < len(p.pq) {
		heap.Remove(&p.pq, it.index)
	}
	list := p.bySender[it.tx.From]
	for i, x := range list {
		if x == it {
			p.bySender[it.tx.From] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(p.bySender[it.tx.From]) == 0 {
		delete(p.bySender, it.tx.From)
	}
	p.totalBytes -= uint64(len(it.tx.Payload))
}

// EvictExpired removes every transaction whose TTL has elapsed as of now.
func (p *Pool) EvictExpired(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired [][32]byte
	for h, it := range p.byHash {
		if now.After(it.expireAt) {
			expired = append(expired, h)
		}
	}
	for _, h := range expired {
		p.removeLocked(h)
	}
	return len(expired)
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// TotalBytes returns the combined payload size of every pending
// transaction, used by the /api/v1/mempool/status endpoint.
func (p *Pool) TotalBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalBytes
}

// LowestGasPrice reports the lowest gas_price currently pending, used by
// the /api/v1/mempool/status endpoint. The second return is false if the
// pool is empty.
func (p *Pool) LowestGasPrice() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pq) == 0 {
		return 0, false
	}
	min := p.pq[0].tx.GasPrice
	for _, it := range p.pq {
		if it.tx.GasPrice < min {
			min = it.tx.GasPrice
		}
	}
	return min, true
}
