// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for weaver.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Change one value and save
//   reset               Reset to default configuration
//   path                Show configuration file path
//
// Examples:
//   weaver config set server.url http://10.0.0.5:8000
//   weaver config set chat.project_id 3
//   weaver config set tasks.install_poll_ms 1000
//   weaver config get server.url --json

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/localagentweaver/weaver/internal/config"
	"github.com/localagentweaver/weaver/internal/logging"
)

// HandleConfig handles "weaver config".
func HandleConfig(_ context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw, "yes", "y")

	switch p.Subcommand() {
	case "", "show":
		return handleConfigShow(env)
	case "get":
		return handleConfigGet(env, p.Positional(1))
	case "set":
		if p.PositionalCount() < 3 {
			return &UsageError{Message: "config set needs a key and a value", Example: "weaver config set server.url http://127.0.0.1:8000"}
		}
		return handleConfigSet(env, p.Positional(1), JoinPositionalArgs(p, 2))
	case "reset":
		ok, err := RequireConfirmation(p.BoolFlag("yes") || p.BoolFlag("y"), "reset the configuration", env.Args.JSON)
		if err != nil {
			return err
		}
		if !ok {
			ShowCancellationMessage(env.Out)
			return nil
		}
		env.Config = config.Default()
		if err := env.saveConfig(); err != nil {
			return err
		}
		return env.emit("config reset", map[string]bool{"reset": true}, func(w io.Writer) {
			fmt.Fprintln(w, "Configuration reset to defaults.")
		})
	case "path":
		path := env.Args.ConfigPath
		if path == "" {
			var err error
			if path, err = config.ConfigPathTOML(); err != nil {
				return &ConfigError{Err: err}
			}
		}
		return env.emit("config path", map[string]string{"path": path}, func(w io.Writer) {
			fmt.Fprintln(w, path)
		})
	default:
		return usagef("unknown config subcommand %q (show, get, set, reset, path)", p.Subcommand())
	}
}

func handleConfigShow(env *Env) error {
	keys := config.GetAllKeys()
	values := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		v, err := env.Config.Get(k)
		if err != nil {
			continue
		}
		values[k] = displayValue(k, v)
	}

	return env.emit("config show", values, func(w io.Writer) {
		fmt.Fprintln(w, TitleStyle.Render("weaver configuration"))
		for _, k := range keys {
			fmt.Fprintf(w, "%s %v\n", LabelStyle.Copy().Width(26).Render(k), values[k])
		}
	})
}

func handleConfigGet(env *Env, key string) error {
	if key == "" {
		return &UsageError{Message: "config get needs a key", Example: "weaver config get server.url"}
	}
	v, err := env.Config.Get(key)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}
	v = displayValue(key, v)
	return env.emit("config get", ConfigGetData{Key: key, Value: v}, func(w io.Writer) {
		fmt.Fprintln(w, v)
	})
}

func handleConfigSet(env *Env, key, value string) error {
	updated := env.Config.Clone()
	if err := updated.Set(key, value); err != nil {
		return &UsageError{Message: err.Error()}
	}
	if err := updated.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	env.Config = updated
	if err := env.saveConfig(); err != nil {
		return err
	}
	env.Log.Debug().Str("key", key).Msg("config updated")

	shown := displayValue(key, value)
	return env.emit("config set", ConfigGetData{Key: key, Value: shown}, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s = %v\n", SuccessStyle.Render("✓"), key, shown)
	})
}

// displayValue hides credentials.
func displayValue(key string, v interface{}) interface{} {
	if !config.IsSecretKey(key) {
		return v
	}
	s, _ := v.(string)
	if s == "" {
		return ""
	}
	return logging.Redact(s)
}
