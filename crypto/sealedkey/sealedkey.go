// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sealedkey manages the on-disk encryption of a node's long-term
// post-quantum identity key (spec §6). The AES-256-GCM envelope pattern —
// random key, random nonce, authenticated ciphertext — is grounded on the
// classical keystore in the retrieval pack's wallet package
// (wallet/keystore.go), adapted here to a fixed 32-byte sealing key stored
// in its own side file rather than one derived from a user password: the
// node identifier must never double as key material (spec §6). Key
// marshaling uses encoding.BinaryMarshaler/BinaryUnmarshaler, the same
// convention the pack's own lattice-based key types implement
// (internal/ringtail/mock_ringtail.go's PrivateKey.MarshalBinary).
package sealedkey

import (
	"crypto/aes"
	"crypto/cipher"
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/luxfi/crypto/mldsa"
	"github.com/luxfi/qnet/crypto/canon"
)

const (
	// sealingKeySize is the size of the random AES-256 key stored in the
	// side file.
	sealingKeySize = 32
	// tagSize is the length of the integrity tag appended to the sealing
	// key on disk: SHA3-256(sealing key) truncated to 8 bytes.
	tagSize = 8
	// secretFileSize is the total on-disk size of .encryption_secret:
	// 32-byte key + 8-byte tag.
	secretFileSize = sealingKeySize + tagSize

	secretFileName  = ".encryption_secret"
	keypairFileName = "dilithium_keypair.bin"
	keysSubdir      = "keys"
)

// ErrKeyCorruption is returned when the sealing key's integrity tag does
// not match, or the sealed keypair fails to authenticate. Per spec §6 this
// must abort startup rather than silently regenerate a new identity.
var ErrKeyCorruption = errors.New("sealedkey: key material corrupted")

// KeyPair is a node's long-term ML-DSA identity key pair.
type KeyPair struct {
	Private *mldsa.PrivateKey
	Public  *mldsa.PublicKey
}

// Paths returns the absolute paths of the sealing-secret and sealed-keypair
// files under dataDir.
func Paths(dataDir string) (secretPath, keypairPath string) {
	dir := filepath.Join(dataDir, keysSubdir)
	return filepath.Join(dir, secretFileName), filepath.Join(dir, keypairFileName)
}

// LoadOrGenerate loads the sealed identity key pair from dataDir, generating
// and sealing a fresh one on first run. A tag or authentication mismatch on
// an existing file returns ErrKeyCorruption rather than overwriting it.
func LoadOrGenerate(dataDir string) (*KeyPair, error) {
	secretPath, keypairPath := Paths(dataDir)

	if _, err := os.Stat(secretPath); errors.Is(err, os.ErrNotExist) {
		return generate(dataDir, secretPath, keypairPath)
	}

	sealingKey, err := loadSealingKey(secretPath)
	if err != nil {
		return nil, err
	}

	sealed, err := os.ReadFile(keypairPath)
	if err != nil {
		return nil, fmt.Errorf("sealedkey: read keypair: %w", err)
	}

	plaintext, err := open(sealingKey, sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyCorruption, err)
	}

	priv := new(mldsa.PrivateKey)
	if err := priv.UnmarshalBinary(plaintext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyCorruption, err)
	}

	return &KeyPair{Private: priv, Public: priv.PublicKey}, nil
}

func generate(dataDir, secretPath, keypairPath string) (*KeyPair, error) {
	if err := os.MkdirAll(filepath.Dir(secretPath), 0o700); err != nil {
		return nil, fmt.Errorf("sealedkey: create keys dir: %w", err)
	}

	priv, err := mldsa.GenerateKey(cryptorand.Reader, mldsa.MLDSA65)
	if err != nil {
		return nil, fmt.Errorf("sealedkey: generate identity key: %w", err)
	}

	sealingKey := make([]byte, sealingKeySize)
	if _, err := io.ReadFull(cryptorand.Reader, sealingKey); err != nil {
		return nil, fmt.Errorf("sealedkey: generate sealing key: %w", err)
	}

	if err := saveSealingKey(secretPath, sealingKey); err != nil {
		return nil, err
	}

	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("sealedkey: marshal identity key: %w", err)
	}
	sealed, err := seal(sealingKey, privBytes)
	if err != nil {
		return nil, fmt.Errorf("sealedkey: seal identity key: %w", err)
	}
	if err := os.WriteFile(keypairPath, sealed, 0o600); err != nil {
		return nil, fmt.Errorf("sealedkey: write keypair: %w", err)
	}

	return &KeyPair{Private: priv, Public: priv.PublicKey}, nil
}

// loadSealingKey reads the 40-byte secret file and checks its integrity tag.
func loadSealingKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealedkey: read secret: %w", err)
	}
	if len(raw) != secretFileSize {
		return nil, fmt.Errorf("%w: secret file is %d bytes, want %d", ErrKeyCorruption, len(raw), secretFileSize)
	}
	key := raw[:sealingKeySize]
	tag := raw[sealingKeySize:]

	want := canon.Sum256(key)
	if !bytesEqual(want[:tagSize], tag) {
		return nil, fmt.Errorf("%w: sealing key tag mismatch", ErrKeyCorruption)
	}
	return key, nil
}

func saveSealingKey(path string, key []byte) error {
	tag := canon.Sum256(key)
	out := make([]byte, 0, secretFileSize)
	out = append(out, key...)
	out = append(out, tag[:tagSize]...)
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("sealedkey: write secret: %w", err)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// seal encrypts plaintext under key with AES-256-GCM, prefixing the random
// nonce to the returned ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(cryptorand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a ciphertext produced by seal.
func open(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
