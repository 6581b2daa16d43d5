// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package microblock

import (
	"errors"
	"time"

	"github.com/luxfi/qnet/types"
)

var (
	errHeartbeatIndex     = errors.New("microblock: heartbeat index out of range")
	errHeartbeatTimestamp = errors.New("microblock: heartbeat timestamp out of bound")
)

// HeartbeatWindow is the period a Full/Super node's heartbeat count resets
// over.
const HeartbeatWindow = 4 * time.Hour

// HeartbeatsPerWindow is how many heartbeats are emitted, evenly spaced,
// across each HeartbeatWindow (spec §4.7 "Heartbeat").
const HeartbeatsPerWindow = 10

// HeartbeatInterval is the even spacing between heartbeats within a window.
const HeartbeatInterval = HeartbeatWindow / HeartbeatsPerWindow

// HeartbeatTimestampBound is the tolerance applied when checking a
// heartbeat's declared timestamp against the receiver's local clock.
const HeartbeatTimestampBound = 5 * time.Minute

// Heartbeat is the unsigned liveness record Full/Super nodes emit (spec
// §4.7): authenticity derives from the node's past registry presence and
// the timestamp bound below, not from a per-message signature.
type Heartbeat struct {
	NodeAddr  types.Address
	Type      types.NodeType
	Index     uint8 // 0..9, position within the 4h window
	Timestamp int64 // unix micros
}

// ScheduleIndex returns which of the 10 per-window slots a heartbeat sent
// at elapsed (time since the window's start) belongs to.
func ScheduleIndex(elapsed time.Duration) uint8 {
	idx := elapsed / HeartbeatInterval
	if idx >= HeartbeatsPerWindow {
		idx = HeartbeatsPerWindow - 1
	}
	return uint8(idx)
}

// ValidateHeartbeat checks a received heartbeat against the registry
// presence and timestamp-bound rules of spec §4.7. It never affects
// reputation: callers persist accepted heartbeats for reward-eligibility
// accounting only.
func ValidateHeartbeat(hb Heartbeat, registered bool, now time.Time) error {
	if !registered {
		return types.ValidationError("microblock.ValidateHeartbeat", types.ErrNotValidator)
	}
	if hb.Index >= HeartbeatsPerWindow {
		return types.ValidationError("microblock.ValidateHeartbeat", errHeartbeatIndex)
	}
	ts := time.UnixMicro(hb.Timestamp)
	if ts.Before(now.Add(-HeartbeatTimestampBound)) || ts.After(now.Add(HeartbeatTimestampBound)) {
		return types.ValidationError("microblock.ValidateHeartbeat", errHeartbeatTimestamp)
	}
	return nil
}
