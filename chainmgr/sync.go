// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainmgr

import (
	"sync"
	"time"

	"github.com/luxfi/qnet/types"
)

// MissingBlockCooldown is the minimum spacing between repeated requests for
// the same (peer, height) pair (spec §4.9, DDoS protection).
const MissingBlockCooldown = 10 * time.Second

// MissingBlockMaxAttempts is the maximum number of requests issued for a
// single missing height before giving up.
const MissingBlockMaxAttempts = 3

// MissingBlockMaxConcurrent bounds how many distinct heights may have an
// outstanding request in flight at once.
const MissingBlockMaxConcurrent = 10

// SyncBlocksMaxResponse is the maximum number of contiguous blocks one
// sync_blocks response may contain (spec §4.9).
const SyncBlocksMaxResponse = 100

type requestKey struct {
	peer   types.Address
	height uint64
}

type requestState struct {
	lastSentAt time.Time
	attempts   int
}

// MissingBlockThrottle enforces the cooldown/attempt/concurrency limits on
// active missing-block requests.
type MissingBlockThrottle struct {
	mu       sync.Mutex
	requests map[requestKey]*requestState
}

// NewMissingBlockThrottle returns an empty throttle.
func NewMissingBlockThrottle() *MissingBlockThrottle {
	return &MissingBlockThrottle{requests: make(map[requestKey]*requestState)}
}

// ShouldRequest reports whether a request for height from peer may be sent
// now, and if so, records it as sent. outstanding is the caller's current
// count of distinct in-flight heights (across all peers), checked against
// MissingBlockMaxConcurrent before any new height is admitted.
func (t *MissingBlockThrottle) ShouldRequest(peer types.Address, height uint64, now time.Time, outstanding int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := requestKey{peer: peer, height: height}
	st, exists := t.requests[key]
	if !exists {
		if outstanding >= MissingBlockMaxConcurrent {
			return false
		}
		t.requests[key] = &requestState{lastSentAt: now, attempts: 1}
		return true
	}
	if st.attempts >= MissingBlockMaxAttempts {
		return false
	}
	if now.Sub(st.lastSentAt) < MissingBlockCooldown {
		return false
	}
	st.lastSentAt = now
	st.attempts++
	return true
}

// Clear drops tracking state for height once it has been applied, freeing
// it to be re-requested in a future sync round if ever needed again.
func (t *MissingBlockThrottle) Clear(peer types.Address, height uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.requests, requestKey{peer: peer, height: height})
}
