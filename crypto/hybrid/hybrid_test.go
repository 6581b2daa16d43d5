// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hybrid

import (
	cryptorand "crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/crypto/mldsa"
	"github.com/luxfi/ids"
	"github.com/luxfi/qnet/crypto/canon"
)

func newIdentity(t *testing.T) (*PrivateKey, *PublicKey) {
	t.Helper()
	pqPriv, err := mldsa.GenerateKey(cryptorand.Reader, Mode)
	require.NoError(t, err)
	nodeID := ids.GenerateTestNodeID()
	return &PrivateKey{NodeID: nodeID, PQ: pqPriv}, &PublicKey{NodeID: nodeID, PQ: pqPriv.PublicKey}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, pk := newIdentity(t)
	msg := []byte("round one microblock header")

	sig, err := Sign(sk, msg)
	require.NoError(t, err)

	v := NewVerifier()
	require.NoError(t, v.Verify(pk, msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	sk, pk := newIdentity(t)
	sig, err := Sign(sk, []byte("original"))
	require.NoError(t, err)

	v := NewVerifier()
	err = v.Verify(pk, []byte("tampered"), sig)
	require.ErrorIs(t, err, ErrMessageSignatureInvalid)
}

func TestVerifyRejectsExpiredCertificate(t *testing.T) {
	sk, pk := newIdentity(t)
	msg := []byte("stale message")
	sig, err := Sign(sk, msg)
	require.NoError(t, err)

	sig.Certificate.IssuedAt = time.Now().Add(-time.Hour).UnixMicro()
	sig.Certificate.ExpiresAt = sig.Certificate.IssuedAt + CertificateLifetime.Microseconds()

	v := NewVerifier()
	err = v.Verify(pk, msg, sig)
	require.ErrorIs(t, err, ErrCertificateExpired)
}

// TestVerifierCacheIsNotShared confirms that two independently constructed
// Verifiers do not share certificate-verification state: each call site owns
// its own cache rather than reading from hidden process-wide state.
func TestVerifierCacheIsNotShared(t *testing.T) {
	sk, pk := newIdentity(t)
	msg := []byte("cached certificate check")
	sig, err := Sign(sk, msg)
	require.NoError(t, err)

	v1 := NewVerifier()
	require.NoError(t, v1.Verify(pk, msg, sig))
	require.True(t, v1.seen(canon.Sum256(sig.Certificate.CertSig), time.Now()))

	v2 := NewVerifier()
	require.False(t, v2.seen(canon.Sum256(sig.Certificate.CertSig), time.Now()))
	require.NoError(t, v2.Verify(pk, msg, sig))
}
