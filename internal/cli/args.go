// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Per-command argument parsing.
//
// ParseArgs strips the global flags; whatever is left reaches a handler as
// Args.Raw and is split here into a subcommand, positionals and flags.

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgParser holds one command's arguments.
//
// "--name value", "--name=value" and "-n value" set a value flag. A flag
// followed by another flag, or by nothing, is a switch. Everything after a
// bare "--" is positional, so file names may start with a dash.
type ArgParser struct {
	positional []string
	values     map[string]string
	switches   map[string]bool
}

// NewArgParser parses raw. Names listed in switches never take a value:
// with "yes" listed, "delete --yes 12" keeps 12 as a positional.
func NewArgParser(raw []string, switches ...string) *ArgParser {
	p := &ArgParser{
		values:   make(map[string]string),
		switches: make(map[string]bool),
	}
	isSwitch := make(map[string]bool, len(switches))
	for _, s := range switches {
		isSwitch[flagName(s)] = true
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		// "-" alone names stdin and is positional.
		if len(arg) < 2 || arg[0] != '-' {
			p.positional = append(p.positional, arg)
			continue
		}

		name, value, inline := strings.Cut(flagName(arg), "=")
		switch {
		case inline && (value == "true" || value == "false"):
			p.switches[name] = value == "true"
		case inline:
			p.values[name] = value
		case !isSwitch[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-"):
			i++
			p.values[name] = raw[i]
		default:
			p.switches[name] = true
		}
	}
	return p
}

func flagName(s string) string {
	return strings.TrimLeft(s, "-")
}

// Subcommand is the first positional ("upload" in "docs upload a.md").
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Flag returns a value flag, or "" when it was not given.
func (p *ArgParser) Flag(name string) string {
	return p.values[flagName(name)]
}

func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return def
}

// FlagIntOrDefault returns def when the flag is missing or not a number.
func (p *ArgParser) FlagIntOrDefault(name string, def int) int {
	n, err := strconv.Atoi(p.Flag(name))
	if err != nil {
		return def
	}
	return n
}

// BoolFlag reports whether a switch was given (and not set to false).
func (p *ArgParser) BoolFlag(name string) bool {
	return p.switches[flagName(name)]
}

// HasFlag reports whether name was given in any form, even with an empty value.
func (p *ArgParser) HasFlag(name string) bool {
	name = flagName(name)
	_, isValue := p.values[name]
	_, isSwitch := p.switches[name]
	return isValue || isSwitch
}

// Positional returns the i-th positional, counting the subcommand as 0.
func (p *ArgParser) Positional(i int) string {
	if i < 0 || i >= len(p.positional) {
		return ""
	}
	return p.positional[i]
}

// PositionalFrom returns the positionals from index i on.
func (p *ArgParser) PositionalFrom(i int) []string {
	if i < 0 || i >= len(p.positional) {
		return nil
	}
	return p.positional[i:]
}

func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// JoinPositionalArgs rejoins the positionals from start, for multi-word
// names and questions.
func JoinPositionalArgs(p *ArgParser, start int) string {
	return strings.Join(p.PositionalFrom(start), " ")
}

// ParseIntWithValidation parses a required positive id.
func ParseIntWithValidation(s, field string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", field, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", field, n)
	}
	return n, nil
}
