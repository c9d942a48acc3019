// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Unified argument parsing for all CLI commands.
//
// Each command shares one parser so flags behave identically everywhere:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (no value needed)
//   - Positional arguments: everything else, in order

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits raw command arguments into flags, boolean flags, and
// positional arguments. The first positional argument doubles as the
// subcommand for commands that have one (e.g. "sessions rename").
type ArgParser struct {
	subcommand string
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

// NewArgParser parses raw arguments.
//
// Example:
//
//	p := NewArgParser([]string{"rename", "4c2f", "--title=Vedanta notes", "--json"})
//	p.Subcommand()     // "rename"
//	p.Positional(1)    // "4c2f"
//	p.Flag("title")    // "Vedanta notes"
//	p.BoolFlag("json") // true
func NewArgParser(raw []string) *ArgParser {
	p := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0),
		raw:        raw,
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]

		if strings.HasPrefix(arg, "-") && arg != "-" {
			// --flag=value form
			if strings.Contains(arg, "=") {
				parts := strings.SplitN(arg, "=", 2)
				name := strings.TrimLeft(parts[0], "-")
				value := parts[1]
				// Booleans can be explicit: --json=true
				if value == "true" || value == "false" {
					p.boolFlags[name] = value == "true"
				} else {
					p.flags[name] = value
				}
				i++
				continue
			}

			name := strings.TrimLeft(arg, "-")

			// A following non-flag token is this flag's value.
			if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") && !isBoolFlagName(name) {
				p.flags[name] = raw[i+1]
				i += 2
			} else {
				p.boolFlags[name] = true
				i++
			}
		} else {
			p.positional = append(p.positional, arg)
			i++
		}
	}

	if len(p.positional) > 0 {
		p.subcommand = p.positional[0]
	}

	return p
}

// isBoolFlagName recognizes flags that never take a value, so a
// positional argument after them is not swallowed as the flag's value
// ("sessions list --json" must keep "--json" boolean).
func isBoolFlagName(name string) bool {
	switch name {
	case "json", "quiet", "q", "no-color", "plain", "yes", "y", "totp", "version", "v", "help", "h":
		return true
	}
	return false
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of a string flag, or "".
func (p *ArgParser) Flag(name string) string {
	name = strings.TrimLeft(name, "-")
	return p.flags[name]
}

// FlagOrDefault returns the flag value or a default when unset.
func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return def
}

// FlagInt returns the flag value as an integer.
func (p *ArgParser) FlagInt(name string) (int, error) {
	v := p.Flag(name)
	if v == "" {
		return 0, fmt.Errorf("flag %s not set", name)
	}
	return strconv.Atoi(v)
}

// FlagIntOrDefault returns the flag value as an integer, or def when
// the flag is unset or malformed.
func (p *ArgParser) FlagIntOrDefault(name string, def int) int {
	v, err := p.FlagInt(name)
	if err != nil {
		return def
	}
	return v
}

// BoolFlag reports whether a boolean flag is set.
func (p *ArgParser) BoolFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	return p.boolFlags[name]
}

// Positional returns the positional argument at index, or "".
// Index 0 is the subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments starting at index.
// Useful for joining the remainder into a question.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// HasFlag reports whether the flag was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, hasString := p.flags[name]
	_, hasBool := p.boolFlags[name]
	return hasString || hasBool
}

// Raw returns the original arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}
