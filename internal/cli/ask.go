// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question against a project.
//
// Command: ask <question> [--project ID] [--model M] [--provider P] [--file F]
//
// The question may also be piped on stdin ("-" or no positional words).
// --file attaches the content of a local file as extra context.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/localagentweaver/weaver/internal/api"
)

// maxContextFile bounds --file so a stray binary is not posted whole.
const maxContextFile = 256 * 1024

// HandleAsk handles "weaver ask".
func HandleAsk(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw)

	question := JoinPositionalArgs(p, 0)
	if question == "" || question == "-" {
		if IsTTY() {
			return &UsageError{Message: "no question given", Example: `weaver ask "What does the contract say about renewal?"`}
		}
		data, err := io.ReadAll(io.LimitReader(os.Stdin, maxContextFile))
		if err != nil {
			return wrap("ask", "read stdin", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return &UsageError{Message: "empty question"}
	}

	project, err := env.projectID(p)
	if err != nil {
		return err
	}

	req := api.ChatRequest{
		Message:   question,
		ProjectID: project,
		Provider:  p.FlagOrDefault("provider", env.Config.Chat.Provider),
		Model:     p.FlagOrDefault("model", env.Config.Chat.Model),
	}
	if path := p.Flag("file"); path != "" {
		extra, err := readContextFile(path)
		if err != nil {
			return wrap("ask", "read context", err)
		}
		req.Context = extra
	}

	resp, err := env.Client.SendChat(ctx, req)
	if err != nil {
		return wrap("ask", "send", err)
	}
	return env.emit("ask", resp, func(w io.Writer) {
		displayResponse(w, resp.Message)
	})
}

func readContextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxContextFile+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxContextFile {
		return "", fmt.Errorf("%s is larger than %d KB", path, maxContextFile/1024)
	}
	return string(data), nil
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders markdown for the terminal, wrapped to its width.
// The original text is returned if rendering fails.
func renderMarkdown(content string) string {
	width := GetTerminalWidth() - 4
	if width > 100 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a reply, rendering markdown only when stdout is a
// terminal so piped output stays clean.
func displayResponse(w io.Writer, response string) {
	if w == io.Writer(os.Stdout) && IsStdoutTTY() && ColorsEnabled() {
		fmt.Fprint(w, renderMarkdown(response))
		return
	}
	fmt.Fprintln(w, strings.TrimRight(response, "\n"))
}
