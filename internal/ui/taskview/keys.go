// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package taskview

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the task dialog's key bindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Cancel  key.Binding
	Refresh key.Binding
	Dismiss key.Binding
	Close   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "select"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "select"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel task"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "dismiss"),
		),
		Close: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/esc", "close"),
		),
	}
}

// HelpLine renders the short help shown under the task list.
func (k KeyMap) HelpLine() string {
	bindings := []key.Binding{k.Cancel, k.Refresh, k.Dismiss, k.Close}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  •  ")
}
