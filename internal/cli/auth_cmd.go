// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Vault identity and lock management.
//
// The vault owner is a passphrase-derived identity stored next to the
// database. Unlocking caches a session key for the configured window;
// everything that writes to the vault or uses the sealed gateway key
// needs that unlock first.

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/gyankosh/internal/auth"
)

// HandleAuth handles the auth command and its subcommands.
func HandleAuth(args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	mgr, err := NewAuthManager(cfg)
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	switch p.Subcommand() {
	case "", "status":
		return authStatus(mgr, args)
	case "init":
		return authInit(mgr, cfg.Auth.TOTPRequired)
	case "unlock":
		return authUnlock(mgr, p.Flag("totp"))
	case "lock":
		return authLock(mgr)
	case "totp":
		return authEnableTOTP(mgr)
	case "set-key":
		return authSetKey(mgr)
	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(),
			"expected init, unlock, lock, status, totp, or set-key",
			"gyankosh auth unlock")
	}
}

func authStatus(mgr *auth.Manager, args Args) error {
	type authStatusData struct {
		Initialized bool   `json:"initialized"`
		Unlocked    bool   `json:"unlocked"`
		Owner       string `json:"owner,omitempty"`
		DisplayName string `json:"display_name,omitempty"`
		TOTPSet     bool   `json:"totp_enrolled"`
		KeyStored   bool   `json:"gateway_key_stored"`
	}

	data := authStatusData{
		Initialized: mgr.Initialized(),
		Unlocked:    mgr.Unlocked(),
	}
	if id := mgr.Identity(); id != nil {
		data.Owner = id.OwnerID
		data.DisplayName = id.DisplayName
		data.TOTPSet = id.TOTPEnabled()
		data.KeyStored = id.GatewayKey != ""
	}

	if args.JSON {
		return NewJSONResponse("auth", data).Print()
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Vault Identity"))
	fmt.Println(RenderSeparator(30))

	if !data.Initialized {
		fmt.Println(DimStyle.Render("Not initialized. Run `gyankosh auth init` to create the vault identity."))
		fmt.Println()
		return nil
	}

	fmt.Println(labelValue("Owner", data.DisplayName))
	fmt.Println(labelValue("Owner ID", data.Owner))
	if data.Unlocked {
		fmt.Println(labelValue("Lock", SuccessStyle.Render("unlocked")))
	} else {
		fmt.Println(labelValue("Lock", WarningStyle.Render("locked")))
	}
	fmt.Println(labelValue("TOTP", yesNo(data.TOTPSet)))
	fmt.Println(labelValue("Gateway key", storedOrNot(data.KeyStored)))
	fmt.Println()
	return nil
}

func authInit(mgr *auth.Manager, totpRequired bool) error {
	if err := RequiresTTY("initialize the vault"); err != nil {
		return err
	}
	if mgr.Initialized() {
		return auth.ErrAlreadyInitialized
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Create your vault identity"))
	fmt.Println(DimStyle.Render("The passphrase encrypts your gateway key and gates every vault write. It cannot be recovered."))
	fmt.Println()

	name, err := ReadLine("Display name: ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		name = "Vault owner"
	}

	pass, err := ReadSecret("Passphrase: ")
	if err != nil {
		return err
	}
	if len(pass) < 8 {
		return NewValidationError("passphrase", "", "must be at least 8 characters")
	}
	again, err := ReadSecret("Repeat passphrase: ")
	if err != nil {
		return err
	}
	if pass != again {
		return NewValidationError("passphrase", "", "passphrases do not match")
	}

	enrollTOTP := totpRequired
	if !enrollTOTP {
		answer, aerr := ReadLine("Enroll a TOTP second factor? [y/N] ")
		if aerr == nil && strings.EqualFold(answer, "y") {
			enrollTOTP = true
		}
	}

	otpURL, err := mgr.Init(strings.TrimSpace(name), pass, enrollTOTP)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("%s Vault identity created and unlocked.\n", SuccessStyle.Render("[OK]"))
	if otpURL != "" {
		fmt.Println()
		fmt.Println(WarningStyle.Render("Add this TOTP secret to your authenticator now; it is not shown again:"))
		fmt.Println("  " + otpURL)
	}
	fmt.Println()
	fmt.Println(DimStyle.Render("Next: store your gateway key with `gyankosh auth set-key`."))
	return nil
}

func authUnlock(mgr *auth.Manager, totpCode string) error {
	if err := RequiresTTY("unlock the vault"); err != nil {
		return err
	}
	if !mgr.Initialized() {
		return auth.ErrNotInitialized
	}
	if mgr.Unlocked() {
		fmt.Println(SuccessStyle.Render("[OK]") + " Vault is already unlocked.")
		return nil
	}

	pass, err := ReadSecret("Passphrase: ")
	if err != nil {
		return err
	}

	if totpCode == "" {
		if id := mgr.Identity(); id != nil && id.TOTPEnabled() {
			totpCode, err = ReadLine("TOTP code: ")
			if err != nil {
				return err
			}
		}
	}

	if err := mgr.Unlock(pass, totpCode); err != nil {
		if errors.Is(err, auth.ErrBadPassphrase) || errors.Is(err, auth.ErrBadTOTP) {
			return err
		}
		return fmt.Errorf("unlock vault: %w", err)
	}

	fmt.Printf("%s Vault unlocked.\n", SuccessStyle.Render("[OK]"))
	return nil
}

func authLock(mgr *auth.Manager) error {
	if !mgr.Initialized() {
		return auth.ErrNotInitialized
	}
	if err := mgr.Lock(); err != nil {
		return err
	}
	fmt.Printf("%s Vault locked.\n", SuccessStyle.Render("[OK]"))
	return nil
}

func authEnableTOTP(mgr *auth.Manager) error {
	if err := RequiresTTY("enroll TOTP"); err != nil {
		return err
	}
	if !mgr.Initialized() {
		return auth.ErrNotInitialized
	}
	if id := mgr.Identity(); id != nil && id.TOTPEnabled() {
		fmt.Println(DimStyle.Render("TOTP is already enrolled."))
		return nil
	}

	pass, err := ReadSecret("Passphrase: ")
	if err != nil {
		return err
	}

	otpURL, err := mgr.EnableTOTP(pass)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("%s TOTP enrolled. Future unlocks need a code.\n", SuccessStyle.Render("[OK]"))
	fmt.Println(WarningStyle.Render("Add this secret to your authenticator now; it is not shown again:"))
	fmt.Println("  " + otpURL)
	return nil
}

func authSetKey(mgr *auth.Manager) error {
	if err := RequiresTTY("store the gateway key"); err != nil {
		return err
	}
	if !mgr.Initialized() {
		return auth.ErrNotInitialized
	}
	if !mgr.Unlocked() {
		return auth.ErrLocked
	}

	key, err := ReadSecret("Gateway API key: ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return NewValidationError("api key", "", "key must not be empty")
	}

	if err := mgr.SetGatewayKey(strings.TrimSpace(key)); err != nil {
		return err
	}

	fmt.Printf("%s Gateway key stored encrypted in the vault identity.\n", SuccessStyle.Render("[OK]"))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "enrolled"
	}
	return "not enrolled"
}

func storedOrNot(b bool) string {
	if b {
		return "stored (encrypted)"
	}
	return "not stored"
}
