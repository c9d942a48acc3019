// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth manages the vault owner identity and the vault lock.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	identityFile = "identity.json"
	unlockFile   = "unlock.json"

	// checkValue is the fixed plaintext whose successful decryption
	// proves the passphrase-derived key is correct.
	checkValue = "gyankosh-vault-v1"

	totpIssuer = "gyankosh"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotInitialized indicates no vault identity exists yet.
	ErrNotInitialized = errors.New("auth: vault not initialized, run 'gyankosh auth init'")
	// ErrAlreadyInitialized indicates an identity already exists.
	ErrAlreadyInitialized = errors.New("auth: vault already initialized")
	// ErrLocked indicates the vault is locked.
	ErrLocked = errors.New("auth: vault locked, run 'gyankosh auth unlock'")
	// ErrBadPassphrase indicates the passphrase did not verify.
	ErrBadPassphrase = errors.New("auth: incorrect passphrase")
	// ErrBadTOTP indicates the TOTP code did not verify.
	ErrBadTOTP = errors.New("auth: incorrect TOTP code")
	// ErrTOTPRequired indicates a TOTP code is required to unlock.
	ErrTOTPRequired = errors.New("auth: TOTP code required")
)

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is the persisted vault owner record. Sensitive fields are
// encrypted with the passphrase-derived key before they are written.
type Identity struct {
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	Salt        string    `json:"salt"` // base64
	Check       string    `json:"check"`
	GatewayKey  string    `json:"gateway_key,omitempty"`  // ENC:
	TOTPSecret  string    `json:"totp_secret,omitempty"`  // ENC:
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TOTPEnabled reports whether a TOTP secret is enrolled.
func (id *Identity) TOTPEnabled() bool {
	return id.TOTPSecret != ""
}

// unlockState is the short-lived unlock record. It holds the derived key
// so sibling command invocations can reuse the unlock until expiry.
// SECURITY: written 0600; removed by `auth lock` and on expiry.
type unlockState struct {
	Key       string    `json:"key"` // base64
	ExpiresAt time.Time `json:"expires_at"`
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager loads the identity, verifies unlock attempts, and hands out the
// owner id and decrypted gateway key while the vault is unlocked.
type Manager struct {
	mu       sync.Mutex
	dir      string
	identity *Identity

	// unlock duration, set from config at construction
	unlockFor time.Duration
}

// NewManager creates a manager rooted at dir (the config directory).
// A missing identity file is not an error; Initialized reports it.
func NewManager(dir string, unlockFor time.Duration) (*Manager, error) {
	m := &Manager{dir: dir, unlockFor: unlockFor}

	data, err := os.ReadFile(filepath.Join(dir, identityFile))
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("auth: read identity: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("auth: parse identity: %w", err)
	}
	m.identity = &id
	return m, nil
}

// Initialized reports whether a vault identity exists.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity != nil
}

// Identity returns the loaded identity, or nil before Init.
func (m *Manager) Identity() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Init creates the vault identity and unlocks it. When enrollTOTP is set,
// the returned otpauth URL must be presented to the user for their
// authenticator app.
func (m *Manager) Init(displayName, passphrase string, enrollTOTP bool) (otpURL string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity != nil {
		return "", ErrAlreadyInitialized
	}
	if passphrase == "" {
		return "", errors.New("auth: passphrase must not be empty")
	}

	salt, err := NewSalt()
	if err != nil {
		return "", err
	}
	key := DeriveKey([]byte(passphrase), salt)
	defer ZeroBytes(key)

	check, err := EncryptString(checkValue, key)
	if err != nil {
		return "", err
	}

	id := &Identity{
		OwnerID:     model.NewOwnerID(),
		DisplayName: displayName,
		Salt:        base64.StdEncoding.EncodeToString(salt),
		Check:       check,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if enrollTOTP {
		totpKey, err := totp.Generate(totp.GenerateOpts{
			Issuer:      totpIssuer,
			AccountName: displayName,
		})
		if err != nil {
			return "", fmt.Errorf("auth: generate TOTP: %w", err)
		}
		encSecret, err := EncryptString(totpKey.Secret(), key)
		if err != nil {
			return "", err
		}
		id.TOTPSecret = encSecret
		otpURL = totpKey.URL()
	}

	if err := m.saveIdentityLocked(id); err != nil {
		return "", err
	}
	m.identity = id

	if err := m.writeUnlockLocked(key); err != nil {
		return "", err
	}
	return otpURL, nil
}

// Unlock verifies the passphrase (and TOTP code when enrolled) and writes
// the unlock file.
func (m *Manager) Unlock(passphrase, totpCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity == nil {
		return ErrNotInitialized
	}

	key, err := m.deriveVerifiedKeyLocked(passphrase)
	if err != nil {
		return err
	}
	defer ZeroBytes(key)

	if m.identity.TOTPEnabled() {
		if totpCode == "" {
			return ErrTOTPRequired
		}
		secret, err := DecryptString(m.identity.TOTPSecret, key)
		if err != nil {
			return err
		}
		if !totp.Validate(totpCode, secret) {
			return ErrBadTOTP
		}
	}

	return m.writeUnlockLocked(key)
}

// Lock removes the unlock file. Safe to call when already locked.
func (m *Manager) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(filepath.Join(m.dir, unlockFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("auth: lock: %w", err)
	}
	return nil
}

// Unlocked reports whether a valid unlock is in effect.
func (m *Manager) Unlocked() bool {
	_, err := m.unlockKey()
	return err == nil
}

// CurrentOwner returns the owner id when the vault is initialized and
// unlocked. This is the credential gate for store and gateway calls.
func (m *Manager) CurrentOwner() (string, error) {
	m.mu.Lock()
	id := m.identity
	m.mu.Unlock()

	if id == nil {
		return "", ErrNotInitialized
	}
	if _, err := m.unlockKey(); err != nil {
		return "", err
	}
	return id.OwnerID, nil
}

// GatewayKey returns the decrypted gateway API key, or empty when none is
// stored. Requires an unlocked vault.
func (m *Manager) GatewayKey() (string, error) {
	m.mu.Lock()
	id := m.identity
	m.mu.Unlock()

	if id == nil {
		return "", ErrNotInitialized
	}
	if id.GatewayKey == "" {
		return "", nil
	}

	key, err := m.unlockKey()
	if err != nil {
		return "", err
	}
	defer ZeroBytes(key)

	return DecryptString(id.GatewayKey, key)
}

// SetGatewayKey encrypts and stores the gateway API key in the identity.
// Requires an unlocked vault.
func (m *Manager) SetGatewayKey(apiKey string) error {
	key, err := m.unlockKey()
	if err != nil {
		return err
	}
	defer ZeroBytes(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity == nil {
		return ErrNotInitialized
	}

	enc, err := EncryptString(apiKey, key)
	if err != nil {
		return err
	}
	m.identity.GatewayKey = enc
	m.identity.UpdatedAt = time.Now()
	return m.saveIdentityLocked(m.identity)
}

// EnableTOTP enrolls a TOTP secret on an existing identity. The passphrase
// is required so the secret can be sealed under the derived key.
func (m *Manager) EnableTOTP(passphrase string) (otpURL string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity == nil {
		return "", ErrNotInitialized
	}

	key, err := m.deriveVerifiedKeyLocked(passphrase)
	if err != nil {
		return "", err
	}
	defer ZeroBytes(key)

	totpKey, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: m.identity.DisplayName,
	})
	if err != nil {
		return "", fmt.Errorf("auth: generate TOTP: %w", err)
	}

	enc, err := EncryptString(totpKey.Secret(), key)
	if err != nil {
		return "", err
	}
	m.identity.TOTPSecret = enc
	m.identity.UpdatedAt = time.Now()
	if err := m.saveIdentityLocked(m.identity); err != nil {
		return "", err
	}
	return totpKey.URL(), nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// deriveVerifiedKeyLocked derives the key from the passphrase and proves
// it against the check value. Callers must hold m.mu and zero the key.
func (m *Manager) deriveVerifiedKeyLocked(passphrase string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(m.identity.Salt)
	if err != nil {
		return nil, fmt.Errorf("auth: corrupt salt: %w", err)
	}

	key := DeriveKey([]byte(passphrase), salt)
	plain, err := DecryptString(m.identity.Check, key)
	if err != nil || plain != checkValue {
		ZeroBytes(key)
		return nil, ErrBadPassphrase
	}
	return key, nil
}

func (m *Manager) saveIdentityLocked(id *Identity) error {
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: encode identity: %w", err)
	}
	path := filepath.Join(m.dir, identityFile)
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("auth: write identity: %w", err)
	}
	return nil
}

func (m *Manager) writeUnlockLocked(key []byte) error {
	state := unlockState{
		Key:       base64.StdEncoding.EncodeToString(key),
		ExpiresAt: time.Now().Add(m.unlockFor),
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("auth: encode unlock: %w", err)
	}
	path := filepath.Join(m.dir, unlockFile)
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("auth: write unlock: %w", err)
	}
	return nil
}

// unlockKey reads the unlock file and returns the derived key, or ErrLocked
// when missing or expired. Expired files are removed on sight.
func (m *Manager) unlockKey() ([]byte, error) {
	path := filepath.Join(m.dir, unlockFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrLocked
	}

	var state unlockState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, ErrLocked
	}
	if time.Now().After(state.ExpiresAt) {
		os.Remove(path)
		return nil, ErrLocked
	}

	key, err := base64.StdEncoding.DecodeString(state.Key)
	if err != nil || len(key) != KeySize {
		return nil, ErrLocked
	}
	return key, nil
}
