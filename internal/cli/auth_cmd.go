// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/util"
)

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// HandleLogin handles "weaver login [--email E] [--password P]".
// Missing values are prompted for; the password can also come from
// WEAVER_PASSWORD for scripted use.
func HandleLogin(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw)

	email := p.Flag("email")
	if email == "" {
		email = p.Positional(0)
	}
	if email == "" {
		if env.Args.JSON || !IsTTY() {
			return &UsageError{Message: "--email is required", Example: "weaver login --email me@example.com"}
		}
		var err error
		if email, err = promptInput("Email: "); err != nil {
			return wrap("login", "read email", err)
		}
	}

	password := p.Flag("password")
	if password == "" {
		password = os.Getenv("WEAVER_PASSWORD")
	}
	if password == "" {
		var err error
		if password, err = promptPassword("Password: "); err != nil {
			return wrap("login", "read password", err)
		}
	}

	tok, err := env.Client.Login(ctx, email, password)
	if err != nil {
		return wrap("login", "authenticate", err)
	}

	env.Config.Server.Token = tok.AccessToken
	if err := env.saveConfig(); err != nil {
		return err
	}
	env.Log.Info().Str("email", email).Msg("logged in")

	data := map[string]interface{}{"email": email}
	if info, err := api.InspectToken(tok.AccessToken); err == nil && !info.ExpiresAt.IsZero() {
		data["token_expires_at"] = info.ExpiresAt
	}
	return env.emit("login", data, func(w io.Writer) {
		fmt.Fprintf(w, "%s Logged in as %s\n", SuccessStyle.Render("✓"), email)
	})
}

// HandleRegister handles "weaver register --email E --username U [--password P]".
// The account is created but not logged in.
func HandleRegister(ctx context.Context, env *Env) error {
	p := NewArgParser(env.Args.Raw)

	email, username := p.Flag("email"), p.Flag("username")
	if email == "" || username == "" {
		return &UsageError{Message: "--email and --username are required", Example: "weaver register --email me@example.com --username me"}
	}
	password := p.Flag("password")
	if password == "" {
		password = os.Getenv("WEAVER_PASSWORD")
	}
	if password == "" {
		if env.Args.JSON || !IsTTY() {
			return &UsageError{Message: "--password (or WEAVER_PASSWORD) is required without a terminal"}
		}
		var err error
		if password, err = promptPassword("Password: "); err != nil {
			return wrap("register", "read password", err)
		}
		again, err := promptPassword("Repeat password: ")
		if err != nil {
			return wrap("register", "read password", err)
		}
		if again != password {
			return &UsageError{Message: "passwords do not match"}
		}
	}

	user, err := env.Client.Register(ctx, api.RegisterRequest{Email: email, Username: username, Password: password})
	if err != nil {
		return wrap("register", "create account", err)
	}
	env.Log.Info().Int("user_id", user.ID).Msg("account created")
	return env.emit("register", user, func(w io.Writer) {
		fmt.Fprintf(w, "%s Created account %s (%s). Run 'weaver login' next.\n", SuccessStyle.Render("✓"), user.Username, user.Email)
	})
}

// HandleLogout handles "weaver logout". The backend keeps no session, so
// forgetting the token is all there is to it.
func HandleLogout(_ context.Context, env *Env) error {
	had := env.Config.Server.Token != ""
	env.Config.Server.Token = ""
	env.Client.SetToken("")
	if err := env.saveConfig(); err != nil {
		return err
	}
	return env.emit("logout", map[string]bool{"removed": had}, func(w io.Writer) {
		if had {
			fmt.Fprintln(w, "Logged out.")
		} else {
			fmt.Fprintln(w, DimStyle.Render("Not logged in."))
		}
	})
}

// =============================================================================
// STATUS
// =============================================================================

// HandleStatus handles "weaver status".
func HandleStatus(ctx context.Context, env *Env) error {
	data := collectStatus(ctx, env, time.Now())
	return env.emit("status", data, func(w io.Writer) {
		printStatus(w, data)
	})
}

func collectStatus(ctx context.Context, env *Env, now time.Time) StatusData {
	data := StatusData{URL: env.Client.BaseURL()}

	if err := env.Client.Ping(ctx); err != nil {
		data.Error = err.Error()
		env.Log.Debug().Err(err).Msg("backend ping failed")
		return data
	}
	data.Reachable = true

	token := env.Client.Token()
	if token == "" {
		return data
	}
	if info, err := api.InspectToken(token); err == nil && !info.ExpiresAt.IsZero() {
		exp := info.ExpiresAt
		data.ExpiresAt = &exp
		data.Expired = info.Expired(now)
	}

	user, err := env.Client.Me(ctx)
	if err != nil {
		if !api.IsUnauthorized(err) {
			data.Error = err.Error()
		}
		return data
	}
	data.LoggedIn = true
	data.User = user
	return data
}

func printStatus(w io.Writer, d StatusData) {
	fmt.Fprintln(w, TitleStyle.Render("weaver status"))

	backend := SuccessStyle.Render("reachable")
	if !d.Reachable {
		backend = ErrorStyle.Render("unreachable")
	}
	fmt.Fprintf(w, "%s%s %s\n", RenderLabel("Backend"), d.URL, backend)

	switch {
	case d.LoggedIn && d.User != nil:
		fmt.Fprintf(w, "%s%s (%s)\n", RenderLabel("User"), d.User.Username, d.User.Email)
	case d.Reachable:
		fmt.Fprintf(w, "%s%s\n", RenderLabel("User"), DimStyle.Render("not logged in"))
	}

	if d.ExpiresAt != nil {
		when := util.FormatAgo(*d.ExpiresAt)
		if d.Expired {
			when = ErrorStyle.Render("expired " + when)
		}
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Token expires"), when)
	}

	if d.Error != "" {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Error"), ErrorStyle.Render(d.Error))
	}
}
