// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package producer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/qnet/crypto/canon"
	"github.com/luxfi/qnet/types"
)

func candidates(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i].Addr[0] = byte(i + 1)
		out[i].Score = float64(50 + i)
	}
	return out
}

func TestRankCandidatesOrdersByScoreThenAddress(t *testing.T) {
	c := []Candidate{
		{Addr: types.Address{2}, Score: 10},
		{Addr: types.Address{1}, Score: 20},
		{Addr: types.Address{3}, Score: 20},
	}
	ranked := RankCandidates(c)
	require.Equal(t, types.Address{1}, ranked[0].Addr)
	require.Equal(t, types.Address{3}, ranked[1].Addr)
	require.Equal(t, types.Address{2}, ranked[2].Addr)
}

func TestRankCandidatesCapsAtMaxCandidates(t *testing.T) {
	ranked := RankCandidates(candidates(MaxCandidates + 10))
	require.Len(t, ranked, MaxCandidates)
}

func TestSeedIsDeterministic(t *testing.T) {
	c := RankCandidates(candidates(5))
	entropy := canon.Sum256([]byte("block-at-entropy-height"))

	s1 := Seed(7, entropy, c)
	s2 := Seed(7, entropy, c)
	require.Equal(t, s1, s2)
}

func TestSeedChangesWithRoundAndEntropy(t *testing.T) {
	c := RankCandidates(candidates(5))
	e1 := canon.Sum256([]byte("a"))
	e2 := canon.Sum256([]byte("b"))

	require.NotEqual(t, Seed(1, e1, c), Seed(2, e1, c))
	require.NotEqual(t, Seed(1, e1, c), Seed(1, e2, c))
}

func TestSelectProducerPicksExactlyOne(t *testing.T) {
	c := RankCandidates(candidates(10))
	seed := Seed(1, canon.Sum256([]byte("x")), c)

	addr, idx := SelectProducer(c, seed)
	require.GreaterOrEqual(t, idx, 0)
	require.Less(t, idx, len(c))
	require.Equal(t, c[idx].Addr, addr)
}

func TestSelectProducerEmptyCandidates(t *testing.T) {
	addr, idx := SelectProducer(nil, canon.Hash512{})
	require.Equal(t, types.Address{}, addr)
	require.Equal(t, -1, idx)
}

func TestEntropyHeightFloorsAtZero(t *testing.T) {
	require.Equal(t, uint64(0), EntropyHeight(3))
	require.Equal(t, uint64(0), EntropyHeight(FinalityWindow))
	require.Equal(t, uint64(5), EntropyHeight(FinalityWindow+5))
}

func TestFailoverProducerWalksRankedList(t *testing.T) {
	c := RankCandidates(candidates(4))
	seed := Seed(1, canon.Sum256([]byte("z")), c)
	_, primaryIdx := SelectProducer(c, seed)

	first := FailoverProducer(c, primaryIdx, 0)
	second := FailoverProducer(c, primaryIdx, 1)
	require.Equal(t, c[primaryIdx].Addr, first)
	require.NotEqual(t, first, second)
}

func TestBaseTimeoutSchedule(t *testing.T) {
	require.Equal(t, InitialTimeout, BaseTimeout(1))
	require.Equal(t, EarlyTimeout, BaseTimeout(5))
	require.Equal(t, EarlyTimeout, BaseTimeout(10))
	require.Equal(t, SteadyTimeout, BaseTimeout(11))
	require.Equal(t, SteadyTimeout, BaseTimeout(30))
}

func TestRetryTimeoutBacksOffExponentially(t *testing.T) {
	base := RetryTimeout(11, 0)
	require.Equal(t, SteadyTimeout, base)

	next := RetryTimeout(11, 1)
	require.Equal(t, time.Duration(float64(SteadyTimeout)*BackoffMultiplier), next)
}
