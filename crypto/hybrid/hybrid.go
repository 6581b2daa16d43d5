// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hybrid implements QNet's per-message hybrid signing scheme
// (spec §4.1): a post-quantum certificate (ML-DSA-65, "Dilithium-class")
// over a short-lived classical key, which then signs the actual message.
// The certificate's 270-second expiry bounds replay and gives forward
// secrecy without paying the PQ signing cost on every message.
//
// The PQ layer is grounded on the teacher's own hybrid consensus signer
// (protocol/quasar/hybrid.go), which signs with github.com/luxfi/crypto/mldsa
// at MLDSA65 (NIST level 3). The ephemeral classical layer uses stdlib
// crypto/ed25519 at the spec-mandated 32B public key / 64B signature sizes
// (spec §9, Open Question 3). There is no classical-signer interface: the
// ed25519 calls sit only inside Sign and Verify, so an equivalent scheme can
// be substituted there without touching call sites.
package hybrid

import (
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/crypto/mldsa"
	"github.com/luxfi/ids"
	"github.com/luxfi/qnet/crypto/canon"
)

// CertificateLifetime is the maximum validity window of a certificate,
// bounding replay of any message signed under it.
const CertificateLifetime = 270 * time.Second

// ClockSkew is the tolerance applied to issued_at when verifying against the
// local clock, accommodating nodes whose clocks are not perfectly synced.
const ClockSkew = 5 * time.Second

// Mode is the ML-DSA security level used for certificate signing.
const Mode = mldsa.MLDSA65

var (
	// ErrCertificateExpired is returned when now > expires_at.
	ErrCertificateExpired = errors.New("hybrid: certificate expired")
	// ErrCertificateNotYetValid is returned when now < issued_at - skew.
	ErrCertificateNotYetValid = errors.New("hybrid: certificate not yet valid")
	// ErrCertificateInvalid is returned when the PQ certificate signature
	// does not verify.
	ErrCertificateInvalid = errors.New("hybrid: certificate signature invalid")
	// ErrMessageSignatureInvalid is returned when the ephemeral classical
	// signature over the message does not verify.
	ErrMessageSignatureInvalid = errors.New("hybrid: message signature invalid")
)

// Certificate binds a short-lived classical public key to a node's
// long-term PQ identity.
type Certificate struct {
	NodeID      ids.NodeID
	EphemeralPK ed25519.PublicKey // 32 bytes
	CertSig     []byte            // ML-DSA signature over Encapsulated()
	IssuedAt    int64             // unix micros
	ExpiresAt   int64             // unix micros
}

// Encapsulated returns the exact byte string the PQ certificate signs:
// E.pub || node_id || issued_at (spec §4.1 step 2).
func (c *Certificate) Encapsulated() []byte {
	buf := make([]byte, 0, len(c.EphemeralPK)+len(c.NodeID)+8)
	buf = append(buf, c.EphemeralPK...)
	buf = append(buf, c.NodeID[:]...)
	buf = appendInt64LE(buf, c.IssuedAt)
	return buf
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// Signature is a hybrid signature: a certificate plus the message signature
// produced under the certificate's ephemeral key.
type Signature struct {
	Certificate      Certificate
	MessageSignature []byte // 64-byte Ed25519 signature over the message
}

// PrivateKey is a node's long-term PQ identity key, used to issue fresh
// certificates. It is produced by sealedkey.LoadOrGenerate and should never
// be serialized unsealed.
type PrivateKey struct {
	NodeID ids.NodeID
	PQ     *mldsa.PrivateKey
}

// PublicKey is a node's long-term PQ identity public key, used to verify
// certificates it issued.
type PublicKey struct {
	NodeID ids.NodeID
	PQ     *mldsa.PublicKey
}

// Sign implements the 5-step hybrid signing contract of spec §4.1.
func Sign(sk *PrivateKey, message []byte) (*Signature, error) {
	ephPub, ephPriv, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return nil, fmt.Errorf("hybrid: generate ephemeral key: %w", err)
	}

	issuedAt := time.Now().UnixMicro()
	cert := Certificate{
		NodeID:      sk.NodeID,
		EphemeralPK: ephPub,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt + CertificateLifetime.Microseconds(),
	}

	certSig, err := sk.PQ.Sign(cryptorand.Reader, cert.Encapsulated(), nil)
	if err != nil {
		return nil, fmt.Errorf("hybrid: sign certificate: %w", err)
	}
	cert.CertSig = certSig

	msgSig := ed25519.Sign(ephPriv, message)

	return &Signature{Certificate: cert, MessageSignature: msgSig}, nil
}

// Verifier caches verified certificates by the hash of their PQ signature,
// for up to the certificate's own lifetime (spec §4.1: "Certificate
// verification MAY be cached ... Message verification MUST run for every
// message."). The cache is a field on an explicit, caller-owned struct
// rather than package-level state (spec §9 DESIGN NOTES: "no hidden
// process-wide state") — each call site constructs and threads through its
// own Verifier, e.g. one per peer-connection or one per validation
// pipeline, rather than sharing a single global.
type Verifier struct {
	mu      sync.Mutex
	entries map[canon.Hash256]time.Time // cert_sig hash -> expiry
}

// NewVerifier returns a Verifier with an empty certificate cache.
func NewVerifier() *Verifier {
	return &Verifier{entries: make(map[canon.Hash256]time.Time)}
}

func (v *Verifier) seen(sigHash canon.Hash256, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	expiry, ok := v.entries[sigHash]
	if ok && now.Before(expiry) {
		return true
	}
	return false
}

func (v *Verifier) remember(sigHash canon.Hash256, expiry time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[sigHash] = expiry
	// opportunistic cleanup: bound the cache without a background sweeper.
	if len(v.entries) > 100_000 {
		for k, exp := range v.entries {
			if now := time.Now(); now.After(exp) {
				delete(v.entries, k)
			}
		}
	}
}

// Verify implements the hybrid verification contract of spec §4.1. pk must
// be the long-term PQ public key of the node identified by
// sig.Certificate.NodeID.
func (v *Verifier) Verify(pk *PublicKey, message []byte, sig *Signature) error {
	now := time.Now()
	cert := &sig.Certificate

	expiresAt := time.UnixMicro(cert.ExpiresAt)
	issuedAt := time.UnixMicro(cert.IssuedAt)
	if now.After(expiresAt) {
		return ErrCertificateExpired
	}
	if now.Before(issuedAt.Add(-ClockSkew)) {
		return ErrCertificateNotYetValid
	}

	sigHash := canon.Sum256(cert.CertSig)
	if !v.seen(sigHash, now) {
		if !pk.PQ.Verify(cert.Encapsulated(), cert.CertSig, nil) {
			return ErrCertificateInvalid
		}
		v.remember(sigHash, expiresAt)
	}

	if !ed25519.Verify(cert.EphemeralPK, message, sig.MessageSignature) {
		return ErrMessageSignatureInvalid
	}
	return nil
}
