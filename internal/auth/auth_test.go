// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth manages the vault owner identity and the vault lock.
package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// KEYSTORE TESTS
// =============================================================================

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	key := DeriveKey([]byte("correct horse battery staple"), salt)

	tests := []string{
		"sk-or-v1-abcdef123456",
		"",
		"ज्ञान ही शक्ति है", // multi-byte
		strings.Repeat("x", 4096),
	}

	for _, plaintext := range tests {
		enc, err := EncryptString(plaintext, key)
		if err != nil {
			t.Fatalf("EncryptString failed: %v", err)
		}
		if !IsEncrypted(enc) {
			t.Errorf("missing ENC: prefix: %q", enc)
		}
		if plaintext != "" && strings.Contains(enc, plaintext) {
			t.Error("plaintext visible in ciphertext")
		}

		dec, err := DecryptString(enc, key)
		if err != nil {
			t.Fatalf("DecryptString failed: %v", err)
		}
		if dec != plaintext {
			t.Errorf("round trip mismatch: got %q, want %q", dec, plaintext)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	salt, _ := NewSalt()
	key := DeriveKey([]byte("passphrase one"), salt)
	other := DeriveKey([]byte("passphrase two"), salt)

	enc, err := EncryptString("secret", key)
	if err != nil {
		t.Fatalf("EncryptString failed: %v", err)
	}

	if _, err := DecryptString(enc, other); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecrypt_MalformedInput(t *testing.T) {
	salt, _ := NewSalt()
	key := DeriveKey([]byte("pass"), salt)

	for _, bad := range []string{"plain value", "ENC:", "ENC:!!!not-base64!!!", "ENC:AAAA"} {
		if _, err := DecryptString(bad, key); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt, _ := NewSalt()
	a := DeriveKey([]byte("same"), salt)
	b := DeriveKey([]byte("same"), salt)
	if string(a) != string(b) {
		t.Error("same passphrase+salt produced different keys")
	}

	other, _ := NewSalt()
	c := DeriveKey([]byte("same"), other)
	if string(a) == string(c) {
		t.Error("different salts produced identical keys")
	}
}

// =============================================================================
// MANAGER TESTS
// =============================================================================

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), 30*time.Minute)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestManager_InitAndUnlock(t *testing.T) {
	m := newTestManager(t)

	if m.Initialized() {
		t.Fatal("fresh manager reports initialized")
	}
	if _, err := m.CurrentOwner(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	if _, err := m.Init("Swami", "gupt-shabd", false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Init leaves the vault unlocked.
	owner, err := m.CurrentOwner()
	if err != nil {
		t.Fatalf("CurrentOwner after init failed: %v", err)
	}
	if !strings.HasPrefix(owner, "usr_") {
		t.Errorf("owner id missing prefix: %q", owner)
	}

	if err := m.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if _, err := m.CurrentOwner(); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}

	if err := m.Unlock("wrong", ""); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("expected ErrBadPassphrase, got %v", err)
	}
	if err := m.Unlock("gupt-shabd", ""); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if !m.Unlocked() {
		t.Error("vault should be unlocked")
	}
}

func TestManager_InitTwiceFails(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Init("A", "pass", false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := m.Init("B", "pass", false); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestManager_GatewayKeyRoundTrip(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Init("Swami", "pass", false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := m.SetGatewayKey("sk-or-v1-secret"); err != nil {
		t.Fatalf("SetGatewayKey failed: %v", err)
	}

	got, err := m.GatewayKey()
	if err != nil {
		t.Fatalf("GatewayKey failed: %v", err)
	}
	if got != "sk-or-v1-secret" {
		t.Errorf("GatewayKey = %q", got)
	}

	// The identity on disk must never contain the plaintext key.
	raw, err := os.ReadFile(filepath.Join(m.dir, identityFile))
	if err != nil {
		t.Fatalf("read identity: %v", err)
	}
	if strings.Contains(string(raw), "sk-or-v1-secret") {
		t.Error("plaintext gateway key persisted to disk")
	}

	// Locked vault refuses the key.
	if err := m.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if _, err := m.GatewayKey(); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}

func TestManager_UnlockExpiry(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m.Init("Swami", "pass", false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := m.CurrentOwner(); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked after expiry, got %v", err)
	}
}

func TestManager_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(dir, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m1.Init("Swami", "pass", false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	owner1, err := m1.CurrentOwner()
	if err != nil {
		t.Fatalf("CurrentOwner failed: %v", err)
	}

	m2, err := NewManager(dir, 30*time.Minute)
	if err != nil {
		t.Fatalf("second NewManager failed: %v", err)
	}
	if !m2.Initialized() {
		t.Fatal("identity not visible to second instance")
	}
	owner2, err := m2.CurrentOwner()
	if err != nil {
		t.Fatalf("CurrentOwner on second instance failed: %v", err)
	}
	if owner1 != owner2 {
		t.Errorf("owner id changed across instances: %q vs %q", owner1, owner2)
	}
}

func TestManager_TOTPRequiredPath(t *testing.T) {
	m := newTestManager(t)
	otpURL, err := m.Init("Swami", "pass", true)
	if err != nil {
		t.Fatalf("Init with TOTP failed: %v", err)
	}
	if !strings.HasPrefix(otpURL, "otpauth://") {
		t.Errorf("unexpected otpauth URL: %q", otpURL)
	}

	if err := m.Lock(); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// Missing code is rejected before any TOTP validation.
	if err := m.Unlock("pass", ""); !errors.Is(err, ErrTOTPRequired) {
		t.Errorf("expected ErrTOTPRequired, got %v", err)
	}
	// A wrong code is rejected.
	if err := m.Unlock("pass", "000000"); !errors.Is(err, ErrBadTOTP) {
		t.Errorf("expected ErrBadTOTP, got %v", err)
	}
}
