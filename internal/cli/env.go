// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/localagentweaver/weaver/internal/api"
	"github.com/localagentweaver/weaver/internal/config"
	"github.com/localagentweaver/weaver/internal/logging"
	"github.com/localagentweaver/weaver/internal/metrics"
	"github.com/localagentweaver/weaver/internal/storage"
	"github.com/localagentweaver/weaver/internal/util"
)

// =============================================================================
// COMMAND ENVIRONMENT
// =============================================================================

// Env bundles what every command needs: parsed args, effective config,
// backend client, logger and output streams.
type Env struct {
	Args   Args
	Config *config.Config
	Client *api.Client
	Log    zerolog.Logger

	// Out receives command output, Err receives diagnostics
	Out io.Writer
	Err io.Writer

	logger *logging.Logger
}

// NewEnv loads configuration and builds the client for one invocation.
// A config file that fails to parse is reported and defaults are used.
func NewEnv(args Args) (*Env, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, &ConfigError{Err: err}
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, &ConfigError{Err: err}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("[WARN]"), err)
		}
	}
	config.SetGlobal(cfg)

	logger, err := logging.New(cfg.Log, args.Verbose)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	env := newEnv(args, cfg, logger.Logger)
	env.logger = logger
	return env, nil
}

// newEnv assembles an Env from parts; tests use it with an httptest URL.
func newEnv(args Args, cfg *config.Config, log zerolog.Logger) *Env {
	client := api.NewClient(&api.Config{
		BaseURL:           cfg.Server.URL,
		Token:             cfg.Server.Token,
		Timeout:           cfg.Server.Timeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSec,
		UserAgent:         "weaver/" + Version,
	})
	return &Env{
		Args:   args,
		Config: cfg,
		Client: client,
		Log:    log,
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
}

// Close releases the log file, if any.
func (e *Env) Close() {
	if e.logger != nil {
		_ = e.logger.Close()
	}
}

// serveMetrics starts the metrics endpoint when --metrics-addr (or
// metrics.listen_addr) is set. The returned func stops it.
func (e *Env) serveMetrics(ctx context.Context) func() {
	addr := e.Args.MetricsAddr
	if addr == "" {
		addr = e.Config.Metrics.ListenAddr
	}
	if addr == "" {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := metrics.Serve(ctx, addr); err != nil {
			e.Log.Warn().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
		}
	}()
	e.Log.Debug().Str("addr", addr).Msg("serving metrics")
	return func() {
		cancel()
		<-done
	}
}

// saveConfig persists the config to the file it came from.
func (e *Env) saveConfig() error {
	var err error
	switch {
	case e.Args.ConfigPath == "":
		err = config.Save(e.Config)
	case strings.HasSuffix(e.Args.ConfigPath, ".json"):
		err = config.SaveJSON(e.Config, e.Args.ConfigPath)
	default:
		err = config.SaveTOML(e.Config, e.Args.ConfigPath)
	}
	if err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// openHistory opens the task history store. A nil store is returned when
// history is disabled (tasks.history_limit = 0).
func (e *Env) openHistory() (*storage.History, error) {
	if e.Config.Tasks.HistoryLimit == 0 {
		return nil, nil
	}
	path, err := e.Config.HistoryPath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return storage.OpenHistory(path)
}

// closeHistory prunes to the configured limit and closes the store.
func (e *Env) closeHistory(h *storage.History) {
	if h == nil {
		return
	}
	if n, err := h.Prune(context.Background(), e.Config.Tasks.HistoryLimit); err != nil {
		e.Log.Warn().Err(err).Msg("prune task history")
	} else if n > 0 {
		e.Log.Debug().Int64("removed", n).Msg("pruned task history")
	}
	if err := h.Close(); err != nil {
		e.Log.Warn().Err(err).Msg("close task history")
	}
}

// projectID returns --project, falling back to chat.project_id.
func (e *Env) projectID(p *ArgParser) (int, error) {
	if raw := p.Flag("project"); raw != "" {
		return ParseIntWithValidation(raw, "--project")
	}
	if raw := p.Flag("p"); raw != "" {
		return ParseIntWithValidation(raw, "-p")
	}
	if e.Config.Chat.ProjectID > 0 {
		return e.Config.Chat.ProjectID, nil
	}
	return 0, &UsageError{
		Message: "no project selected",
		Example: "weaver docs list --project 3  (or: weaver config set chat.project_id 3)",
	}
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// emit prints data as a JSONResponse in --json mode, otherwise calls human.
func (e *Env) emit(command string, data interface{}, human func(w io.Writer)) error {
	if e.Args.JSON {
		return NewJSONResponse(command, data).Write(e.Out)
	}
	human(e.Out)
	return nil
}

// notef writes a diagnostic line. It goes to Err in --json mode so stdout
// stays parseable.
func (e *Env) notef(format string, a ...interface{}) {
	w := e.Out
	if e.Args.JSON {
		w = e.Err
	}
	fmt.Fprintf(w, format+"\n", a...)
}

// table writes aligned rows. Cells are truncated to the column width by
// display width, so wide runes do not break the layout.
type table struct {
	widths []int
	rows   [][]string
}

func newTable(widths ...int) *table {
	return &table{widths: widths}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(w io.Writer, header ...string) {
	if len(header) > 0 {
		fmt.Fprintln(w, HeaderStyle.Render(t.line(header)))
	}
	for _, r := range t.rows {
		fmt.Fprintln(w, t.line(r))
	}
}

func (t *table) line(cells []string) string {
	var b strings.Builder
	for i, c := range cells {
		c = util.FirstLine(c)
		if i < len(t.widths) && i < len(cells)-1 {
			b.WriteString(util.PadRight(util.TruncateWidth(c, t.widths[i]), t.widths[i]))
			b.WriteString("  ")
			continue
		}
		b.WriteString(c)
	}
	return b.String()
}
