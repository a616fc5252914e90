// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"testing"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"list", "--project", "3"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("project") != "3" {
					t.Errorf("Flag(project) = %q, want %q", p.Flag("project"), "3")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"install", "--provider=ollama", "llama3"},
			wantSub: "install",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("provider") != "ollama" {
					t.Errorf("Flag(provider) = %q, want %q", p.Flag("provider"), "ollama")
				}
				if p.Positional(1) != "llama3" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "llama3")
				}
			},
		},
		{
			name:    "known boolean flag does not swallow a positional",
			args:    []string{"delete", "--yes", "12"},
			bools:   []string{"yes"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("yes") {
					t.Error("BoolFlag(yes) should be true")
				}
				if p.Positional(1) != "12" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "12")
				}
			},
		},
		{
			name:    "unknown trailing flag is boolean",
			args:    []string{"delete", "12", "--yes"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("yes") {
					t.Error("BoolFlag(yes) should be true")
				}
			},
		},
		{
			name:    "multiple files",
			args:    []string{"upload", "a.pdf", "b.md", "c.txt"},
			wantSub: "upload",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 4 {
					t.Errorf("PositionalCount() = %d, want 4", p.PositionalCount())
				}
				joined := strings.Join(p.PositionalFrom(1), " ")
				if joined != "a.pdf b.md c.txt" {
					t.Errorf("PositionalFrom(1) joined = %q", joined)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args, tt.bools...)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		defaultVal int
		want       int
	}{
		{"flag present", []string{"history", "--limit", "10"}, 20, 10},
		{"flag missing uses default", []string{"history"}, 20, 20},
		{"invalid int uses default", []string{"history", "--limit", "abc"}, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewArgParser(tt.args).FlagIntOrDefault("limit", tt.defaultVal)
			if got != tt.want {
				t.Errorf("FlagIntOrDefault(limit, %d) = %d, want %d", tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	parser := NewArgParser(nil)
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if parser.Positional(3) != "" {
		t.Error("Positional out of range should be empty")
	}
	if len(parser.PositionalFrom(1)) != 0 {
		t.Error("PositionalFrom out of range should be empty")
	}
}

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"3", 3, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-4", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIntWithValidation(tt.input, "project id")
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIntWithValidation(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIntWithValidation(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestArgParser_SeparatorAndInlineSwitches(t *testing.T) {
	p := NewArgParser([]string{"upload", "--project=3", "--json=false", "-", "--", "--draft.md", "-x"})

	if got := p.Flag("project"); got != "3" {
		t.Errorf("Flag(project) = %q, want 3", got)
	}
	if p.BoolFlag("json") {
		t.Error("BoolFlag(json) should be false for --json=false")
	}
	if !p.HasFlag("json") {
		t.Error("HasFlag(json) should be true even when set to false")
	}
	if got := strings.Join(p.PositionalFrom(1), " "); got != "- --draft.md -x" {
		t.Errorf("PositionalFrom(1) = %q, want %q", got, "- --draft.md -x")
	}
	if p.HasFlag("x") {
		t.Error("-x after -- must stay positional")
	}
}

// =============================================================================
// COMMAND LINE TESTS (cli.go, suggest.go)
// =============================================================================

func TestParseArgs_GlobalFlagsAnywhere(t *testing.T) {
	args := ParseArgs([]string{"--json", "docs", "upload", "a.pdf", "--no-tui", "--config=/tmp/w.toml", "--metrics-addr", ":9100", "-v"})

	if args.Command != CmdDocs {
		t.Fatalf("Command = %v, want docs", args.Command)
	}
	if !args.JSON || !args.NoTUI || !args.Verbose {
		t.Errorf("global flags not parsed: %+v", args)
	}
	if args.ConfigPath != "/tmp/w.toml" || args.MetricsAddr != ":9100" {
		t.Errorf("ConfigPath = %q, MetricsAddr = %q", args.ConfigPath, args.MetricsAddr)
	}
	if strings.Join(args.Raw, " ") != "upload a.pdf" {
		t.Errorf("Raw = %v", args.Raw)
	}
}

func TestParseArgs_SeparatorEndsGlobalFlags(t *testing.T) {
	args := ParseArgs([]string{"docs", "upload", "--json", "--", "--json"})

	if !args.JSON {
		t.Error("--json before the separator is global")
	}
	if got := strings.Join(args.Raw, " "); got != "upload -- --json" {
		t.Errorf("Raw = %q, want %q", got, "upload -- --json")
	}
	if got := NewArgParser(args.Raw).PositionalFrom(1); len(got) != 1 || got[0] != "--json" {
		t.Errorf("file after -- = %v", got)
	}
}

func TestParseArgs_Commands(t *testing.T) {
	tests := map[string]Command{
		"login":     CmdLogin,
		"documents": CmdDocs,
		"model":     CmdModels,
		"s":         CmdStatus,
		"--help":    CmdHelp,
		"frobnic":   CmdUnknown,
	}
	for word, want := range tests {
		if got := ParseArgs([]string{word}).Command; got != want {
			t.Errorf("ParseArgs(%q).Command = %v, want %v", word, got, want)
		}
	}
	if got := ParseArgs(nil).Command; got != CmdHelp {
		t.Errorf("no args should show help, got %v", got)
	}
}

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"modles", "models"},
		{"prjects", "projects"},
		{"lgin", "login"},
		{"docs", ""},
		{"x", ""},
		{"kubernetes", ""},
	}
	for _, tt := range tests {
		if got := SuggestCommand(tt.input); got != tt.want {
			t.Errorf("SuggestCommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
