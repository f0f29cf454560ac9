// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"

	"github.com/matmarket/market-cli/internal/api"
	"github.com/matmarket/market-cli/internal/auth"
	"github.com/matmarket/market-cli/internal/config"
	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/observability"
	"github.com/matmarket/market-cli/internal/output"
)

// DebugEnv raises verbosity like -v. Accepts "1", "2", or "true".
const DebugEnv = "MARKET_DEBUG"

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Auth   *auth.Manager
	Client *api.Client
	Market *market.Service
	Output *output.Writer
	Logger *slog.Logger

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks

	// Flags holds the global flag values
	Flags GlobalFlags

	logLevel *slog.LevelVar
	stdout   io.Writer
	stderr   io.Writer
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	Format  string
	JSON    bool
	YAML    bool
	Quiet   bool
	MD      bool // Literal Markdown syntax output
	Styled  bool // Force ANSI styled output (even when piped)
	IDsOnly bool
	Count   bool
	JQ      string

	// Context flags
	BaseURL  string
	Language string
	PageSize int

	// Behavior flags
	Verbose  int // 0=off, 1=operations, 2=operations+requests (stacks with -v -v or -vv)
	Stats    bool
	NoStats  bool
	CacheDir string
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) *App {
	store := auth.NewStore(config.GlobalConfigDir())
	authMgr := auth.NewManager(cfg, store)

	// Warnings and errors only until ApplyFlags knows the verbosity.
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Collector always runs to gather stats; hooks control log verbosity.
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(0, collector, logger)

	client := api.NewClient(cfg, authMgr, api.WithHooks(hooks))

	format, _ := output.ParseFormat(cfg.Format)

	return &App{
		Config:    cfg,
		Auth:      authMgr,
		Client:    client,
		Market:    market.NewService(client),
		Logger:    logger,
		Collector: collector,
		Hooks:     hooks,
		Output: output.New(output.Options{
			Format: format,
			Writer: os.Stdout,
		}),
		logLevel: level,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

// SetStreams redirects the app's stdout and stderr.
func (a *App) SetStreams(stdout, stderr io.Writer) {
	a.stdout = stdout
	a.stderr = stderr
	a.Output = output.New(output.Options{Format: a.OutputFormat(), Writer: stdout, JQ: a.Flags.JQ})
}

// Stderr returns the writer for diagnostics.
func (a *App) Stderr() io.Writer {
	if a.stderr == nil {
		return os.Stderr
	}
	return a.stderr
}

// OutputFormat resolves the output format from flags, falling back to config.
// Specific modes win over general ones.
func (a *App) OutputFormat() output.Format {
	switch {
	case a.Flags.IDsOnly:
		return output.FormatIDs
	case a.Flags.Count:
		return output.FormatCount
	case a.Flags.Quiet:
		return output.FormatQuiet
	case a.Flags.JSON:
		return output.FormatJSON
	case a.Flags.YAML:
		return output.FormatYAML
	case a.Flags.Styled:
		return output.FormatStyled
	case a.Flags.MD:
		return output.FormatMarkdown
	}
	if f, ok := output.ParseFormat(a.Flags.Format); ok && a.Flags.Format != "" {
		return f
	}
	if a.Config != nil {
		if f, ok := output.ParseFormat(a.Config.Format); ok {
			return f
		}
	}
	return output.FormatAuto
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() error {
	if a.Flags.Format != "" {
		if _, ok := output.ParseFormat(a.Flags.Format); !ok {
			return output.ErrUsageHint("Unknown format: "+a.Flags.Format,
				"Use one of: auto, json, yaml, markdown, styled, quiet, ids, count")
		}
	}
	if a.Flags.JQ != "" {
		if _, err := output.CompileJQ(a.Flags.JQ); err != nil {
			return err
		}
	}

	stdout := a.stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	a.Output = output.New(output.Options{
		Format: a.OutputFormat(),
		Writer: stdout,
		JQ:     a.Flags.JQ,
	})

	verboseLevel := VerboseLevel(a.Flags.Verbose, os.Getenv(DebugEnv))
	if a.Hooks != nil {
		a.Hooks.SetLevel(verboseLevel)
	}
	if a.logLevel != nil {
		switch {
		case verboseLevel >= 1:
			a.logLevel.Set(slog.LevelDebug)
		default:
			a.logLevel.Set(slog.LevelWarn)
		}
	}
	return nil
}

// VerboseLevel combines the -v count with the MARKET_DEBUG value.
// "true" means full request tracing.
func VerboseLevel(flag int, env string) int {
	level := flag
	if env == "" {
		return level
	}
	if n, err := strconv.Atoi(env); err == nil {
		if n > level {
			level = n
		}
	} else if strings.EqualFold(env, "true") {
		level = 2
	}
	return level
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		stats := a.Collector.Summary()
		if a.isMachineOutput() || a.Output.Format() == output.FormatJSON || a.Output.Format() == output.FormatYAML {
			opts = append(opts, output.WithMeta("stats", stats))
		} else {
			defer a.printStatsToStderr(&stats)
		}
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	// Stats stay off stderr in modes meant for programmatic consumption.
	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		stats := a.Collector.Summary()
		a.printStatsToStderr(&stats)
	}
	return nil
}

// Notice attaches a warning to the response. Data-only formats drop the
// envelope, so there the warning goes to stderr instead.
func (a *App) Notice(msg string) output.ResponseOption {
	if a.isMachineOutput() {
		fmt.Fprintf(a.Stderr(), "warning: %s\n", msg)
	}
	return output.WithNotice(msg)
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	if a.Config != nil && a.Config.Format == "quiet" {
		return true
	}
	return false
}

// printStatsToStderr outputs a compact stats line to stderr.
func (a *App) printStatsToStderr(stats *observability.SessionMetrics) {
	if stats == nil {
		return
	}

	var parts []string

	duration := stats.EndTime.Sub(stats.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}

	if stats.TotalRequests == 1 {
		parts = append(parts, "1 request")
	} else if stats.TotalRequests > 1 {
		parts = append(parts, fmt.Sprintf("%d requests", stats.TotalRequests))
	}

	if stats.CacheHits > 0 {
		rate := float64(stats.CacheHits) / float64(max(stats.TotalRequests, 1)) * 100
		parts = append(parts, fmt.Sprintf("%d cached (%.0f%%)", stats.CacheHits, rate))
	}

	if stats.PagesFetched > 0 {
		parts = append(parts, fmt.Sprintf("%d pages", stats.PagesFetched))
	}

	if stats.TotalRetries == 1 {
		parts = append(parts, "1 retry")
	} else if stats.TotalRetries > 1 {
		parts = append(parts, fmt.Sprintf("%d retries", stats.TotalRetries))
	}

	if stats.FailedOps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.FailedOps))
	}

	fmt.Fprintf(a.Stderr(), "\nStats: %s\n", strings.Join(parts, " | "))
}

// IsInteractive returns true if the terminal supports interactive TUI.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.YAML || a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return false
	}
	f, ok := a.stdout.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(f.Fd())
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
