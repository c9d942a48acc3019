// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration management: show, get, set, path.

package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/gyankosh/internal/config"
)

// HandleConfig handles the config command and its subcommands.
func HandleConfig(args Args) error {
	p := NewArgParser(args.Raw)
	switch p.Subcommand() {
	case "", "show":
		return configShow(args)
	case "get":
		return configGet(args, p.Positional(1))
	case "set":
		return configSet(p.Positional(1), strings.Join(p.PositionalFrom(2), " "))
	case "path":
		return configPath(args)
	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Println(k)
		}
		return nil
	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(),
			"expected show, get, set, path, or keys",
			"gyankosh config set stream.checkpoint_seconds 5")
	}
}

func configShow(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path, _ := config.ConfigPathTOML()

	if args.JSON {
		// Clone with the key redacted; raw keys never leave the process.
		safe := cfg.Clone()
		if safe.Gateway.APIKey != "" {
			safe.Gateway.APIKey = "[REDACTED]"
		}
		return NewJSONResponse("config", map[string]interface{}{
			"config": safe,
			"path":   path,
		}).Print()
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("Configuration"))
	fmt.Println(DimStyle.Render(path))
	fmt.Println(RenderSeparator(50))

	fmt.Println()
	fmt.Println(LabelStyle.Render("  [vault]"))
	fmt.Println(labelValue("data_dir", orDefault(cfg.Vault.DataDir, "~/.gyankosh")))
	fmt.Println(labelValue("database", cfg.Vault.DatabaseFile))
	if cfg.UsesPostgres() {
		fmt.Println(labelValue("postgres", maskDSN(cfg.Vault.PostgresDSN)))
	}

	fmt.Println()
	fmt.Println(LabelStyle.Render("  [gateway]"))
	fmt.Println(labelValue("base_url", cfg.Gateway.BaseURL))
	fmt.Println(labelValue("model", cfg.Gateway.Model))
	fmt.Println(labelValue("api_key", maskKey(cfg.Gateway.APIKey)))
	fmt.Println(labelValue("retries", fmt.Sprintf("%d", cfg.Gateway.MaxRetries)))
	fmt.Println(labelValue("rpm", fmt.Sprintf("%d", cfg.Gateway.RequestsPerMinute)))

	fmt.Println()
	fmt.Println(LabelStyle.Render("  [stream]"))
	fmt.Println(labelValue("checkpoint", fmt.Sprintf("%ds", cfg.Stream.CheckpointSeconds)))
	fmt.Println(labelValue("seed_runes", fmt.Sprintf("%d (min %d)", cfg.Stream.SeedRunes, cfg.Stream.MinSeedRunes)))

	fmt.Println()
	fmt.Println(LabelStyle.Render("  [auth]"))
	fmt.Println(labelValue("totp", fmt.Sprintf("%v", cfg.Auth.TOTPRequired)))
	fmt.Println(labelValue("unlock_mins", fmt.Sprintf("%d", cfg.Auth.UnlockMinutes)))

	fmt.Println()
	fmt.Println(LabelStyle.Render("  [ui]"))
	fmt.Println(labelValue("md_width", fmt.Sprintf("%d", cfg.UI.MarkdownWidth)))
	fmt.Println(labelValue("show_stats", fmt.Sprintf("%v", cfg.UI.ShowStats)))
	fmt.Println()
	return nil
}

func configGet(args Args, key string) error {
	if key == "" {
		return NewValidationErrorWithExample("key", "", "get needs a key",
			"gyankosh config get gateway.model")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	value, err := cfg.Get(key)
	if err != nil {
		return NewNotFoundError("config key", key)
	}

	// Never print the raw key.
	if key == "gateway.api_key" {
		value = maskKey(fmt.Sprintf("%v", value))
	}

	if args.JSON {
		return NewJSONResponse("config", map[string]interface{}{key: value}).Print()
	}
	fmt.Printf("%v\n", value)
	return nil
}

func configSet(key, value string) error {
	if key == "" || value == "" {
		return NewValidationErrorWithExample("arguments", "",
			"set needs a key and a value",
			"gyankosh config set gateway.model openrouter/auto")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return NewValidationError("key", key, err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("rejected: %w", err)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	shown := value
	if key == "gateway.api_key" {
		shown = maskKey(value)
	}
	fmt.Printf("%s %s = %s\n", SuccessStyle.Render("[OK]"), key, shown)
	return nil
}

func configPath(args Args) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("config", map[string]string{"path": path}).Print()
	}
	fmt.Println(path)
	return nil
}

// maskKey shows enough of a key to recognize it and nothing more.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskDSN hides the password portion of a postgres DSN.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
