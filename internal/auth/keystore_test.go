// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth manages the vault owner identity and the vault lock.
//
// This file contains tests for the keystore primitives:
// - Key derivation (PBKDF2-SHA-256)
// - AES-256-GCM encryption/decryption
// - Nonce uniqueness
// - Tamper detection
package auth

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

// =============================================================================
// KEY DERIVATION TESTS
// =============================================================================

// TestKeystore_DeriveKeyLength tests that derived keys are AES-256 sized.
func TestKeystore_DeriveKeyLength(t *testing.T) {
	key := DeriveKey([]byte("passphrase"), []byte("salt"))
	require.Equal(t, KeySize, len(key), "Derived key should be %d bytes (256 bits)", KeySize)
}

// TestKeystore_DeriveKeyEmptyPassphrase tests that an empty passphrase
// still derives a full-length key distinct from a non-empty one.
func TestKeystore_DeriveKeyEmptyPassphrase(t *testing.T) {
	salt := []byte("test_salt_value!")
	empty := DeriveKey(nil, salt)
	require.Equal(t, KeySize, len(empty))

	nonEmpty := DeriveKey([]byte("passphrase"), salt)
	require.False(t, bytes.Equal(empty, nonEmpty), "Empty passphrase must not collide with non-empty")
}

// =============================================================================
// SALT TESTS
// =============================================================================

// TestKeystore_SaltUniqueness tests that generated salts are unique and sized.
func TestKeystore_SaltUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		salt, err := NewSalt()
		require.NoError(t, err)
		require.Equal(t, SaltSize, len(salt), "Salt should be %d bytes", SaltSize)

		s := string(salt)
		require.False(t, seen[s], "Salt %d is a duplicate", i)
		seen[s] = true
	}
}

// =============================================================================
// ENCRYPTION TESTS
// =============================================================================

// TestKeystore_NonceUniqueness tests that encrypting the same plaintext
// twice never reuses a nonce and never produces the same ciphertext.
func TestKeystore_NonceUniqueness(t *testing.T) {
	key := testKey(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		enc, err := EncryptString("same plaintext every time", key)
		require.NoError(t, err)
		require.False(t, seen[enc], "Ciphertext %d is a duplicate (nonce reuse)", i)
		seen[enc] = true
	}
}

// TestKeystore_TamperDetection tests that flipping any ciphertext byte
// fails authentication.
func TestKeystore_TamperDetection(t *testing.T) {
	key := testKey(t)
	enc, err := EncryptString("gateway key material", key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(enc, EncryptedPrefix))
	require.NoError(t, err)

	for i := range raw {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		_, err := DecryptString(EncryptedPrefix+base64.StdEncoding.EncodeToString(tampered), key)
		require.ErrorIs(t, err, ErrDecryptionFailed, "Flipping byte %d should fail authentication", i)
	}
}

// TestKeystore_RejectsBadKeySize tests that non-AES-256 keys are refused.
func TestKeystore_RejectsBadKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 24, 31, 33, 64} {
		_, err := EncryptString("data", make([]byte, size))
		require.Error(t, err, "Key of %d bytes should be rejected", size)
	}
}

// TestKeystore_IsEncrypted tests marker detection.
func TestKeystore_IsEncrypted(t *testing.T) {
	require.True(t, IsEncrypted("ENC:abc123"))
	require.False(t, IsEncrypted("sk-or-v1-plaintext"))
	require.False(t, IsEncrypted(""))
	require.False(t, IsEncrypted("enc:lowercase"))
}

// TestKeystore_ZeroBytes tests that key material is actually zeroed.
func TestKeystore_ZeroBytes(t *testing.T) {
	key := testKey(t)
	ZeroBytes(key)
	require.True(t, bytes.Equal(key, make([]byte, KeySize)), "ZeroBytes must clear every byte")
}

// TestKeystore_ConcurrentEncrypt tests that the keystore primitives are
// safe under concurrent use with a shared key.
func TestKeystore_ConcurrentEncrypt(t *testing.T) {
	key := testKey(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				enc, err := EncryptString("concurrent secret", key)
				if err != nil {
					t.Errorf("EncryptString: %v", err)
					return
				}
				dec, err := DecryptString(enc, key)
				if err != nil || dec != "concurrent secret" {
					t.Errorf("DecryptString = %q, %v", dec, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
