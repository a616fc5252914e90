// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localagentweaver/weaver/internal/config"
)

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWriter(&buf, "json", zerolog.InfoLevel), "TaskMonitor")

	log.Debug().Msg("hidden")
	log.Info().Str("task_id", "t-1").Msg("task finished")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "TaskMonitor", entry["component"])
	assert.Equal(t, "t-1", entry["task_id"])
	assert.Equal(t, "task finished", entry["message"])
}

func TestNewWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "console", zerolog.DebugLevel)
	log.Debug().Str("group", "install").Msg("poll loop started")

	out := buf.String()
	assert.Contains(t, out, "poll loop started")
	assert.Contains(t, out, "group=install")
}

func TestNewToFileWithVerbose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weaver.log")

	l, err := New(config.LogConfig{Level: "warn", Format: "json", File: path}, true)
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	l.Debug().Msg("to file")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	l, err := New(config.LogConfig{Level: "shouting", Format: "json"}, false)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "***", Redact("short"))
	assert.Equal(t, "eyJh...XY", Redact("eyJhbGciOiJIUzI1NiJ9XY"))
}
