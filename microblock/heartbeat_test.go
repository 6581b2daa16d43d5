// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package microblock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleIndexEvenSpacing(t *testing.T) {
	require.Equal(t, uint8(0), ScheduleIndex(0))
	require.Equal(t, uint8(1), ScheduleIndex(HeartbeatInterval))
	require.Equal(t, uint8(9), ScheduleIndex(HeartbeatWindow-time.Nanosecond))
}

func TestValidateHeartbeatRejectsUnregistered(t *testing.T) {
	hb := Heartbeat{Index: 0, Timestamp: time.Now().UnixMicro()}
	err := ValidateHeartbeat(hb, false, time.Now())
	require.Error(t, err)
}

func TestValidateHeartbeatRejectsOutOfBoundTimestamp(t *testing.T) {
	now := time.Now()
	hb := Heartbeat{Index: 0, Timestamp: now.Add(-time.Hour).UnixMicro()}
	err := ValidateHeartbeat(hb, true, now)
	require.Error(t, err)
}

func TestValidateHeartbeatAcceptsWithinBound(t *testing.T) {
	now := time.Now()
	hb := Heartbeat{Index: 3, Timestamp: now.Add(-time.Minute).UnixMicro()}
	err := ValidateHeartbeat(hb, true, now)
	require.NoError(t, err)
}
