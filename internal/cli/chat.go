// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat against a project's documents.
//
// Command: chat [--project ID] [--model M] [--provider P]
//
// Slash commands inside the session:
//   /help             Show commands
//   /model [name]     Show or switch the model
//   /provider [name]  Show or switch the provider
//   /history [n]      Show the last n messages stored by the backend
//   /docs             Processing status of the project's documents
//   /quit             Leave the session (Ctrl+D works too)

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/config"
	"github.com/localagentweaver/weaver/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// ChatSession holds the state of one interactive chat.
type ChatSession struct {
	env       *Env
	ProjectID int
	Provider  string
	Model     string

	Messages int
	Started  time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewChatSession creates a session from flags and config.
func NewChatSession(env *Env, p *ArgParser, project int) *ChatSession {
	return &ChatSession{
		env:       env,
		ProjectID: project,
		Provider:  p.FlagOrDefault("provider", env.Config.Chat.Provider),
		Model:     p.FlagOrDefault("model", env.Config.Chat.Model),
		Started:   time.Now(),
	}
}

// Send asks one question and returns the reply. Interrupt cancels only the
// request in flight.
func (s *ChatSession) Send(ctx context.Context, message string) (*api.ChatResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	resp, err := s.env.Client.SendChat(ctx, api.ChatRequest{
		Message:   message,
		ProjectID: s.ProjectID,
		Provider:  s.Provider,
		Model:     s.Model,
	})
	if err != nil {
		return nil, err
	}
	s.Messages++
	if resp.Model != "" {
		s.Model = resp.Model
	}
	return resp, nil
}

// interrupt cancels the request in flight. It reports whether there was one.
func (s *ChatSession) interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// =============================================================================
// REPL
// =============================================================================

// HandleChat handles "weaver chat".
func HandleChat(ctx context.Context, env *Env) error {
	if env.Args.JSON {
		return &UsageError{Message: "chat is interactive; use 'weaver ask --json' for scripted questions"}
	}
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	p := NewArgParser(env.Args.Raw)
	project, err := env.projectID(p)
	if err != nil {
		return err
	}
	if _, err := env.Client.GetProject(ctx, project); err != nil {
		return wrap("chat", "open project", err)
	}

	// Interrupt cancels the request in flight, not the session.
	ctx = context.WithoutCancel(ctx)

	session := NewChatSession(env, p, project)
	input := NewChatCLI()
	defer input.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			if session.interrupt() {
				fmt.Fprintln(env.Err, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}()

	printWelcome(env.Out, session)

	for {
		line, err := input.ReadInput(promptStyle.Render("weaver> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D and closed stdin all end the session.
			fmt.Fprintln(env.Out)
			printExitSummary(env.Out, session)
			return nil
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			printExitSummary(env.Out, session)
			return nil
		case strings.HasPrefix(line, "/"):
			keepGoing, err := handleSlashCommand(ctx, env.Out, session, line)
			if err != nil {
				fmt.Fprintf(env.Err, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				printExitSummary(env.Out, session)
				return nil
			}
			continue
		}

		fmt.Fprintln(env.Out, DimStyle.Render("thinking..."))
		start := time.Now()
		resp, err := session.Send(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			fmt.Fprintf(env.Err, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			continue
		}
		displayResponse(env.Out, resp.Message)
		fmt.Fprintln(env.Out, DimStyle.Render(fmt.Sprintf("%s/%s · %s", resp.Provider, resp.Model, util.FormatDuration(time.Since(start)))))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (keepGoing, error) where keepGoing=false means exit.
func handleSlashCommand(ctx context.Context, w io.Writer, s *ChatSession, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}
	args := parts[1:]

	switch strings.ToLower(parts[0]) {
	case "/help", "/h", "/?", "/":
		printChatHelp(w)
	case "/model", "/m":
		if len(args) == 0 {
			fmt.Fprintf(w, "Model: %s\n", orDefault(s.Model, "backend default"))
			return true, nil
		}
		s.Model = args[0]
		fmt.Fprintf(w, "Switched to model %s\n", s.Model)
	case "/provider":
		if len(args) == 0 {
			fmt.Fprintf(w, "Provider: %s\n", orDefault(s.Provider, "backend default"))
			return true, nil
		}
		s.Provider = args[0]
		fmt.Fprintf(w, "Switched to provider %s\n", s.Provider)
	case "/history":
		n := 10
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return true, fmt.Errorf("usage: /history [count]")
			}
			n = v
		}
		hist, err := s.env.Client.ChatHistory(ctx, s.ProjectID)
		if err != nil {
			return true, err
		}
		printChatHistory(w, hist.Messages, n)
	case "/docs":
		statuses, err := s.env.Client.DocumentStatus(ctx, s.ProjectID)
		if err != nil {
			return true, err
		}
		printDocumentStatus(w, statuses)
	case "/quit", "/q", "/exit":
		return false, nil
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", parts[0])
	}
	return true, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

var promptStyle = SuccessStyle

func printWelcome(w io.Writer, s *ChatSession) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("weaver chat · project %d", s.ProjectID)))
	fmt.Fprintln(w, DimStyle.Render("Type /help for commands, Ctrl+D to leave."))
}

func printChatHelp(w io.Writer) {
	fmt.Fprintln(w, "  /model [name]     show or switch the model")
	fmt.Fprintln(w, "  /provider [name]  show or switch the provider")
	fmt.Fprintln(w, "  /history [n]      last n messages of this project")
	fmt.Fprintln(w, "  /docs             document processing status")
	fmt.Fprintln(w, "  /quit             leave")
}

func printChatHistory(w io.Writer, msgs []api.ChatMessage, n int) {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	if len(msgs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No messages yet."))
		return
	}
	for _, m := range msgs {
		who := DimStyle.Render(m.Role)
		if m.Role == "user" {
			who = promptStyle.Render("you")
		}
		fmt.Fprintf(w, "%s %s\n", who, util.TruncateWidth(util.FirstLine(m.Content), GetTerminalWidth()-10))
	}
}

func printExitSummary(w io.Writer, s *ChatSession) {
	fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("%d message(s) in %s", s.Messages, util.FormatDuration(time.Since(s.Started)))))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
