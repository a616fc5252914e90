// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - "Did you mean" hints for mistyped commands.
package cli

import (
	"strings"
)

// knownCommands lists the top-level commands offered as suggestions.
// Aliases are left out so hints always name the canonical command.
var knownCommands = []string{
	"login",
	"register",
	"logout",
	"status",
	"config",
	"projects",
	"docs",
	"models",
	"teams",
	"agents",
	"chat",
	"ask",
	"tasks",
	"version",
	"help",
}

// SuggestCommand returns the known command closest to input, or "" if
// nothing is close enough. The allowed edit distance grows with length.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	best, bestDistance := "", maxDistance+1
	for _, cmd := range knownCommands {
		d := levenshteinDistance(input, cmd)
		if d == 0 {
			return ""
		}
		if d < bestDistance {
			best, bestDistance = cmd, d
		}
	}
	return best
}

// levenshteinDistance is the number of single-byte edits turning s1 into s2.
func levenshteinDistance(s1, s2 string) int {
	if s1 == "" {
		return len(s2)
	}
	if s2 == "" {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
