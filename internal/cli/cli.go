// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies a top-level weaver command.
type Command int

const (
	CmdHelp Command = iota
	CmdLogin
	CmdRegister
	CmdLogout
	CmdStatus
	CmdConfig
	CmdProjects
	CmdDocs
	CmdModels
	CmdTeams
	CmdAgents
	CmdChat
	CmdAsk
	CmdTasks
	CmdVersion
	CmdUnknown
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdLogin:
		return "login"
	case CmdRegister:
		return "register"
	case CmdLogout:
		return "logout"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdProjects:
		return "projects"
	case CmdDocs:
		return "docs"
	case CmdModels:
		return "models"
	case CmdTeams:
		return "teams"
	case CmdAgents:
		return "agents"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdTasks:
		return "tasks"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed command-line arguments.
type Args struct {
	Command Command

	// Name is the command word as typed (kept for error messages)
	Name string

	// Raw holds everything after the command word, global flags removed
	Raw []string

	// Global flags
	JSON        bool
	NoTUI       bool
	Verbose     bool
	ConfigPath  string
	MetricsAddr string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `weaver - terminal client for LocalAgentWeaver

Usage:
  weaver <command> [arguments] [flags]

Account:
  register --email E --username U     Create an account
  login [--email E] [--password P]    Log in and store the token in config
  logout                              Forget the stored token
  status                              Backend reachability, user and token expiry

Configuration:
  config show                         Show the effective configuration
  config get KEY                      Print one value (e.g. server.url)
  config set KEY VALUE                Change one value and save

Projects and documents:
  projects list|show ID|create NAME [--description D]|delete ID
  projects update ID [--name N] [--description D]
  projects use ID                     Make ID the default project
  docs list|status [--project ID]
  docs upload FILE... [--project ID]  Upload and follow processing
  docs watch [--project ID]           Follow documents still being processed
  docs watch-dir DIR [--project ID]   Upload every file dropped into DIR

Models:
  models list|popular [--provider P]
  models install NAME... [--provider P]
  models cancel TASK_ID

Teams and agents:
  teams list|presets [--project ID]
  teams create NAME [--project ID] [--description D]
  teams create --preset NAME [--project ID]
  teams delete ID
  agents list|create NAME --role R [--prompt TEXT]|delete ID

Chat:
  chat [--project ID] [--model M]     Interactive session
  ask QUESTION [--project ID]         Single question

Other:
  tasks history [--group G] [--limit N]
  version
  help

Global flags:
  --json               Machine-readable output
  --no-tui             Plain line output for installs and uploads
  -v, --verbose        Debug logging
  --config PATH        Use a specific config file
  --metrics-addr ADDR  Serve Prometheus metrics while the command runs

Environment:
  WEAVER_URL, WEAVER_TOKEN, WEAVER_PROVIDER, WEAVER_MODEL, WEAVER_LOG_LEVEL
`

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// VersionData is the JSON shape of "weaver version".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "weaver %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  go:     %s\n", runtime.Version())
}

// =============================================================================
// PARSING
// =============================================================================

// ParseArgs parses os.Args[1:]. Global flags may appear anywhere.
func ParseArgs(args []string) Args {
	remaining, parsed := parseGlobalFlags(args)
	if len(remaining) == 0 {
		parsed.Command = CmdHelp
		return parsed
	}

	parsed.Name = remaining[0]
	parsed.Raw = remaining[1:]

	switch strings.ToLower(remaining[0]) {
	case "login":
		parsed.Command = CmdLogin
	case "register", "signup":
		parsed.Command = CmdRegister
	case "logout":
		parsed.Command = CmdLogout
	case "status", "s":
		parsed.Command = CmdStatus
	case "config", "cfg":
		parsed.Command = CmdConfig
	case "projects", "project":
		parsed.Command = CmdProjects
	case "docs", "documents", "doc":
		parsed.Command = CmdDocs
	case "models", "model":
		parsed.Command = CmdModels
	case "teams", "team":
		parsed.Command = CmdTeams
	case "agents", "agent":
		parsed.Command = CmdAgents
	case "chat":
		parsed.Command = CmdChat
	case "ask":
		parsed.Command = CmdAsk
	case "tasks", "task":
		parsed.Command = CmdTasks
	case "version", "--version":
		parsed.Command = CmdVersion
	case "help", "-h", "--help":
		parsed.Command = CmdHelp
	default:
		parsed.Command = CmdUnknown
	}
	return parsed
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--":
			// The command's own parser handles the separator.
			return append(remaining, args[i:]...), parsed
		case "--json":
			parsed.JSON = true
		case "--no-tui":
			parsed.NoTUI = true
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsed.ConfigPath = args[i]
			}
		case "--metrics-addr":
			if i+1 < len(args) {
				i++
				parsed.MetricsAddr = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--metrics-addr="):
				parsed.MetricsAddr = strings.TrimPrefix(arg, "--metrics-addr=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsed
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes the parsed command. The returned error carries enough type
// information for GetExitCode.
func Run(ctx context.Context, args Args) error {
	switch args.Command {
	case CmdHelp:
		PrintUsage(os.Stdout)
		return nil
	case CmdVersion:
		return HandleVersion(os.Stdout, args)
	case CmdUnknown:
		msg := fmt.Sprintf("unknown command %q (see 'weaver help')", args.Name)
		if hint := SuggestCommand(args.Name); hint != "" {
			msg = fmt.Sprintf("unknown command %q; did you mean %q?", args.Name, hint)
		}
		return &UsageError{Message: msg}
	}

	env, err := NewEnv(args)
	if err != nil {
		return err
	}
	defer env.Close()

	stopMetrics := env.serveMetrics(ctx)
	defer stopMetrics()

	switch args.Command {
	case CmdLogin:
		return HandleLogin(ctx, env)
	case CmdRegister:
		return HandleRegister(ctx, env)
	case CmdLogout:
		return HandleLogout(ctx, env)
	case CmdStatus:
		return HandleStatus(ctx, env)
	case CmdConfig:
		return HandleConfig(ctx, env)
	case CmdProjects:
		return HandleProjects(ctx, env)
	case CmdDocs:
		return HandleDocs(ctx, env)
	case CmdModels:
		return HandleModels(ctx, env)
	case CmdTeams:
		return HandleTeams(ctx, env)
	case CmdAgents:
		return HandleAgents(ctx, env)
	case CmdChat:
		return HandleChat(ctx, env)
	case CmdAsk:
		return HandleAsk(ctx, env)
	case CmdTasks:
		return HandleTasks(ctx, env)
	}
	return &UsageError{Message: "no command given"}
}

// HandleVersion handles the "version" command.
func HandleVersion(w io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(w)
	}
	PrintVersion(w)
	return nil
}
