// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package p2p

import (
	"sync"
	"time"

	"github.com/luxfi/qnet/types"
)

// RateLimitPerMinute is the default per-peer-per-endpoint admission rate
// spec §4.10/§6 fixes ("token bucket 30 req/min per peer per endpoint").
const RateLimitPerMinute = 30

// RateLimitPenalty is applied to a peer's network_score each time it
// exceeds its bucket (spec §4.10: "exceeding -> network_score -= 2").
const RateLimitPenalty = -2.0

// bucket is a single token bucket refilling at a fixed rate, capped at its
// burst size. The retrieval pack's only token-bucket dependency
// (github.com/cockroachdb/tokenbucket) is pulled in transitively with no
// call site anywhere in the pack to ground its API against, so this refill
// arithmetic is the narrow stdlib fallback documented in DESIGN.md.
type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	updatedAt  time.Time
}

func newBucket(capacity float64, refillRate float64, now time.Time) *bucket {
	return &bucket{tokens: capacity, capacity: capacity, refillRate: refillRate, updatedAt: now}
}

func (b *bucket) take(now time.Time) bool {
	elapsed := now.Sub(b.updatedAt).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.updatedAt = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimiter enforces one token bucket per (peer, endpoint) pair.
type RateLimiter struct {
	mu       sync.Mutex
	perMin   float64
	buckets  map[rateKey]*bucket
}

type rateKey struct {
	addr     types.Address
	endpoint string
}

func NewRateLimiter(perMinute float64) *RateLimiter {
	return &RateLimiter{perMin: perMinute, buckets: make(map[rateKey]*bucket)}
}

// Allow admits one request from addr against endpoint's bucket, returning
// false (and the caller should apply RateLimitPenalty) if exhausted.
func (r *RateLimiter) Allow(addr types.Address, endpoint string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := rateKey{addr: addr, endpoint: endpoint}
	b, ok := r.buckets[k]
	if !ok {
		b = newBucket(r.perMin, r.perMin/60.0, now)
		r.buckets[k] = b
	}
	return b.take(now)
}
