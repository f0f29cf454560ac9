// Package cli assembles the root command and maps errors to exit codes.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matmarket/market-cli/internal/appctx"
	"github.com/matmarket/market-cli/internal/commands"
	"github.com/matmarket/market-cli/internal/config"
	"github.com/matmarket/market-cli/internal/output"
	"github.com/matmarket/market-cli/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:   "market",
		Short: "Command-line client for the materials marketplace",
		Long: `market browses and manages the materials marketplace: categories,
materials, listings for sale or auction, companies, countries and users.

Run "market browse" for the interactive browser.`,
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(config.FlagOverrides{
				BaseURL:  flags.BaseURL,
				Language: flags.Language,
				PageSize: flags.PageSize,
				CacheDir: flags.CacheDir,
				Format:   flags.Format,
			})
			if err != nil {
				return output.ErrUsage(err.Error())
			}
			resolvePreferences(cmd, cfg, &flags)

			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.SetStreams(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err := app.ApplyFlags(); err != nil {
				return err
			}

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.Format, "format", "", "Output format (auto, json, yaml, markdown, styled, quiet, ids, count)")
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	pf.BoolVar(&flags.YAML, "yaml", false, "Output as YAML")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	pf.BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	pf.BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	pf.BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	pf.BoolVar(&flags.Count, "count", false, "Output only count")
	pf.StringVar(&flags.JQ, "jq", "", "Filter JSON output through a jq expression")

	// Context flags
	pf.StringVar(&flags.BaseURL, "base-url", "", "Marketplace API base URL")
	pf.StringVarP(&flags.Language, "lang", "l", "", "Content language (en, ar)")
	pf.IntVar(&flags.PageSize, "page-size", 0, "Items per page")

	// Behavior flags
	pf.CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for operations, -vv for requests)")
	pf.BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	pf.BoolVar(&flags.NoStats, "no-stats", false, "Hide session statistics")
	pf.StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")

	_ = cmd.RegisterFlagCompletionFunc("lang", cobra.FixedCompletions(config.Languages, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		[]string{"auto", "json", "yaml", "markdown", "styled", "quiet", "ids", "count"},
		cobra.ShellCompDirectiveNoFileComp,
	))

	cmd.AddCommand(
		commands.NewListingsCmd(),
		commands.NewMaterialsCmd(),
		commands.NewCategoriesCmd(),
		commands.NewCompaniesCmd(),
		commands.NewCountriesCmd(),
		commands.NewUsersCmd(),
		commands.NewBrowseCmd(),
		commands.NewAuthCmd(),
		commands.NewConfigCmd(),
		commands.NewVersionCmd(),
	)

	return cmd
}

// resolvePreferences fills stats and verbosity from config unless the
// matching flag was given explicitly.
func resolvePreferences(cmd *cobra.Command, cfg *config.Config, flags *appctx.GlobalFlags) {
	pf := cmd.Flags()

	statsSet := pf.Changed("stats")
	noStatsSet := pf.Changed("no-stats") && flags.NoStats
	switch {
	case noStatsSet:
		flags.Stats = false
	case statsSet:
	case cfg.Stats != nil:
		flags.Stats = *cfg.Stats
	}

	if !pf.Changed("verbose") && cfg.Verbose != nil {
		flags.Verbose = *cfg.Verbose
	}
}

// Execute runs the root command and exits with the mapped exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteContextC(ctx)
	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	// app.Err carries --stats and the configured format.
	if executedCmd != nil {
		if app := appctx.FromContext(executedCmd.Context()); app != nil {
			_ = app.Err(err)
			return apiErr.ExitCode()
		}
	}

	// Setup failed before an app existed: honor the format flags directly.
	writer := output.New(output.Options{
		Format: fallbackFormat(cmd),
		Writer: stdout,
	})
	_ = writer.Err(err)
	return apiErr.ExitCode()
}

// fallbackFormat reads the output flags without an app.
func fallbackFormat(cmd *cobra.Command) output.Format {
	pf := cmd.PersistentFlags()
	switch {
	case boolFlag(pf, "quiet"):
		return output.FormatQuiet
	case boolFlag(pf, "ids-only"):
		return output.FormatIDs
	case boolFlag(pf, "count"):
		return output.FormatCount
	case boolFlag(pf, "json"):
		return output.FormatJSON
	case boolFlag(pf, "yaml"):
		return output.FormatYAML
	case boolFlag(pf, "styled"):
		return output.FormatStyled
	case boolFlag(pf, "md"):
		return output.FormatMarkdown
	}
	format, _ := pf.GetString("format")
	if f, ok := output.ParseFormat(format); ok {
		return f
	}
	return output.FormatAuto
}

func boolFlag(fs *pflag.FlagSet, name string) bool {
	v, _ := fs.GetBool(name)
	return v
}

var (
	shorthandFlagRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)
	requiredFlagRe  = regexp.MustCompile(`required flag\(s\) "([\w-]+)" not set`)
)

// transformCobraError turns cobra's parse errors into usage errors so they
// exit with the usage code and read consistently.
func transformCobraError(err error) error {
	var oe *output.Error
	if errors.As(err, &oe) {
		return err
	}
	msg := err.Error()

	// "flag needs an argument: --FLAG" → "--FLAG requires a value"
	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}

	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}

	if matches := shorthandFlagRe.FindStringSubmatch(msg); len(matches) > 1 {
		return output.ErrUsage("Unknown option: " + matches[1])
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: market --help")
	}

	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}

	if strings.Contains(msg, "arg(s), received") || strings.Contains(msg, "requires at least") {
		return output.ErrUsage(msg)
	}

	if matches := requiredFlagRe.FindStringSubmatch(msg); len(matches) > 1 {
		return output.ErrUsage("--" + matches[1] + " required")
	}

	return err
}
