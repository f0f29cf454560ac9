package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/output"
	"github.com/matmarket/market-cli/internal/tui/browse"
)

// NewBrowseCmd creates the interactive browse command.
func NewBrowseCmd() *cobra.Command {
	var search, status, material string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the marketplace interactively",
		Long: `Browse categories, materials, and listings in a full-screen view.

Start at the category list, or jump straight to the listings of one
material with --material. Type / to search; results refresh as you type.

  market browse
  market browse --material 12 --status active`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if !app.IsInteractive() {
				return output.ErrUsageHint("browse requires an interactive terminal",
					"Use: market listings list --all")
			}
			if status != "" {
				if err := validateStatus(status); err != nil {
					return err
				}
			}

			opts := browse.Options{
				Search:   strings.TrimSpace(search),
				Status:   status,
				Language: app.Config.Language,
				PageSize: app.Config.PageSize,
				Debounce: app.Config.SearchDebounce(),
				Observer: app.Collector.RecordPage,
			}

			if id := strings.TrimSpace(material); id != "" {
				m, err := app.Market.Materials.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				label := m.Name.Resolve(localeFor(app).Tag())
				if label == "" {
					label = id
				}
				opts.View = market.ListingsView(id, label, string(m.CategoryID), "")
			}

			app.Logger.Debug("browse start", "material", material, "search", opts.Search)
			return browse.Run(cmd.Context(), app.Market, opts)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Initial search query")
	cmd.Flags().StringVar(&status, "status", "", "Listing status filter")
	cmd.Flags().StringVar(&material, "material", "", "Open the listings of this material ID")
	_ = cmd.RegisterFlagCompletionFunc("status", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return statusNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}
