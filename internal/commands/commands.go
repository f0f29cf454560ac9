// Package commands implements the CLI commands.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matmarket/market-cli/internal/appctx"
	"github.com/matmarket/market-cli/internal/data"
	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/output"
	"github.com/matmarket/market-cli/internal/presenter"
	"github.com/matmarket/market-cli/internal/tui"
)

// appFrom returns the app stored by the root command's pre-run hook.
func appFrom(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// humanOutput reports whether the response will be read by a person, in
// which case commands format values for the locale instead of emitting
// raw entities.
func humanOutput(app *appctx.App) bool {
	switch app.Output.Format() {
	case output.FormatStyled, output.FormatMarkdown:
		return true
	case output.FormatAuto:
		return app.IsInteractive()
	}
	return false
}

func localeFor(app *appctx.App) presenter.Locale {
	return presenter.DetectLocale(app.Config.Language)
}

// pageFlags are the paging flags shared by list commands.
type pageFlags struct {
	page     int
	limit    int
	all      bool
	maxPages int
}

func (p *pageFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&p.limit, "limit", 0, "Items per page (default: page_size from config)")
	cmd.Flags().BoolVar(&p.all, "all", false, "Fetch every page")
	cmd.Flags().IntVar(&p.maxPages, "max-pages", 0, "With --all, stop after this many pages (0 = no limit)")
}

func (p *pageFlags) validate() error {
	if p.page < 1 {
		return output.ErrUsage("--page must be 1 or more")
	}
	if p.limit < 0 {
		return output.ErrUsage("--limit must not be negative")
	}
	if p.maxPages < 0 {
		return output.ErrUsage("--max-pages must not be negative")
	}
	return nil
}

// listResource fetches one page, or every page with --all. Full fetches go
// through a synchronizer so pages are deduplicated exactly like the browser
// does it, and show a spinner on a terminal.
func listResource[T market.Entity, In any](ctx context.Context, app *appctx.App, res *market.Resource[T, In], filters data.Filters, p pageFlags) ([]T, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	limit := p.limit
	if limit == 0 {
		limit = app.Config.PageSize
	}

	if !p.all {
		items, err := res.List(ctx, p.page, limit, filters)
		if err == nil {
			app.Collector.RecordPage(res.Name(), p.page, len(items), nil)
		}
		return items, err
	}

	sync := res.Synchronizer(
		data.WithPageSize(limit),
		data.WithObserver(app.Collector.RecordPage),
	)

	var items []T
	drain := func(ctx context.Context) error {
		var err error
		items, err = sync.Drain(ctx, filters, p.maxPages)
		return err
	}

	var err error
	if app.IsInteractive() {
		err = tui.NewSpinner("Loading "+res.Name()+"…", tui.NewStyles()).Run(ctx, drain)
	} else {
		err = drain(ctx)
	}
	app.Logger.Debug("drained collection", "resource", res.Name(), "items", len(items), "state", sync.State())
	return items, err
}

// countSummary is the summary line for list output.
func countSummary(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// localizedFlag builds localized text from per-language flag values. Nil
// means neither was given.
func localizedFlag(en, ar string) *market.LocalizedText {
	en, ar = strings.TrimSpace(en), strings.TrimSpace(ar)
	if en == "" && ar == "" {
		return nil
	}
	t := market.Localized(en, ar)
	return &t
}

// stringFlag returns a pointer to v when the flag was set.
func stringFlag(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func requireID(args []string, what, plural string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", output.ErrUsageHint(what+" ID required", fmt.Sprintf("Run: market %s list", plural))
	}
	return strings.TrimSpace(args[0]), nil
}

// confirmDelete asks before deleting unless --yes was given. Without a
// terminal there is nobody to ask, so --yes becomes mandatory.
func confirmDelete(app *appctx.App, what string, yes bool) error {
	if yes {
		return nil
	}
	if !app.IsInteractive() {
		return output.ErrUsageHint("Refusing to delete without confirmation", "Pass --yes to delete "+what)
	}
	ok, err := tui.Confirm("Delete "+what+"?", false)
	if err != nil {
		return err
	}
	if !ok {
		return output.ErrUsage("Canceled")
	}
	return nil
}
