// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation and input prompts.
//
// Deletions ask before acting unless --yes is given. Without a terminal
// (or with --json) there is nobody to ask, so --yes becomes mandatory.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdinReader is shared so consecutive prompts do not lose buffered input.
var stdinReader = bufio.NewReader(os.Stdin)

// RequireConfirmation asks the user to confirm action.
//
// Example:
//
//	ok, err := RequireConfirmation(p.BoolFlag("yes"), "delete project 3", env.Args.JSON)
//	if err != nil || !ok {
//	    return err
//	}
func RequireConfirmation(yesFlag bool, action string, jsonMode bool) (bool, error) {
	if yesFlag {
		return true, nil
	}
	if jsonMode {
		return false, &UsageError{Message: "confirmation required: pass --yes in JSON mode"}
	}
	if !IsTTY() {
		return false, &UsageError{Message: "confirmation required but stdin is not a terminal; pass --yes"}
	}

	fmt.Printf("Are you sure you want to %s? [y/N]: ", action)
	input, err := stdinReader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}

// ShowCancellationMessage prints the standard "nothing happened" line.
func ShowCancellationMessage(w io.Writer) {
	fmt.Fprintln(w, DimStyle.Render("Cancelled."))
}

// promptInput prompts for a line of input on stdout.
func promptInput(prompt string) (string, error) {
	fmt.Print(prompt)
	input, err := stdinReader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// promptPassword reads a password without echo.
func promptPassword(prompt string) (string, error) {
	if err := RequiresTTY("read a password"); err != nil {
		return "", err
	}
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
