// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainmgr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	"github.com/luxfi/qnet/reputation"
	"github.com/luxfi/qnet/types"
)

func addrN(b byte) types.Address {
	var a types.Address
	a[len(a)-1] = b
	return a
}

func TestValidatorSetHasAndLen(t *testing.T) {
	reg := reputation.NewRegistry()
	reg.Register(addrN(1), types.NodeTypeFull, 0, "us")
	reg.Register(addrN(2), types.NodeTypeLight, 0, "us") // not a producer candidate

	set := NewValidatorSet(reg, 0, 50.0)
	require.Equal(t, 1, set.Len())
	require.True(t, set.Has(addrToNodeID(addrN(1))))
	require.False(t, set.Has(addrToNodeID(addrN(2))))
}

func TestValidatorSetListAndLight(t *testing.T) {
	reg := reputation.NewRegistry()
	reg.Register(addrN(1), types.NodeTypeFull, 0, "us")
	reg.Register(addrN(2), types.NodeTypeFull, 0, "eu")

	set := NewValidatorSet(reg, 0, 50.0)
	list := set.List()
	require.Len(t, list, 2)
	require.Equal(t, set.Light(), list[0].Light()+list[1].Light())
}

func TestValidatorSetSampleCapsAtSetSize(t *testing.T) {
	reg := reputation.NewRegistry()
	reg.Register(addrN(1), types.NodeTypeFull, 0, "us")

	set := NewValidatorSet(reg, 0, 50.0)
	sample, err := set.Sample(10)
	require.NoError(t, err)
	require.Len(t, sample, 1)
}

func TestManagerTotalLightMatchesSet(t *testing.T) {
	reg := reputation.NewRegistry()
	reg.Register(addrN(1), types.NodeTypeFull, 0, "us")
	set := NewValidatorSet(reg, 0, 50.0)
	mgr := NewManager(set)

	total, err := mgr.TotalLight(ids.ID{})
	require.NoError(t, err)
	require.Equal(t, set.Light(), total)
}

func TestEntropySampleSizeBrackets(t *testing.T) {
	require.Equal(t, 50, EntropySampleSize(10))
	require.Equal(t, 20, EntropySampleSize(200))
	require.Equal(t, 50, EntropySampleSize(1000))
	require.Equal(t, 100, EntropySampleSize(5000))
}
