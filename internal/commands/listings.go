package commands

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matmarket/market-cli/internal/appctx"
	"github.com/matmarket/market-cli/internal/data"
	"github.com/matmarket/market-cli/internal/dateparse"
	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/output"
	"github.com/matmarket/market-cli/internal/presenter"
	"github.com/matmarket/market-cli/internal/richtext"
	"github.com/matmarket/market-cli/internal/tui"
	"github.com/matmarket/market-cli/internal/tui/listingform"
)

// NewListingsCmd creates the listings command group.
func NewListingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "listings",
		Aliases: []string{"listing", "ls"},
		Short:   "Browse and manage listings",
		Long:    "List, show, create, update, or delete materials offered for sale or auction.",
	}

	cmd.AddCommand(
		newListingsListCmd(),
		newListingsShowCmd(),
		newListingsCreateCmd(),
		newListingsUpdateCmd(),
		newListingsDeleteCmd(),
	)

	return cmd
}

func newListingsListCmd() *cobra.Command {
	var material, status, search, typ string
	var pages pageFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings",
		Long: `List listings, newest first.

Filter with --material, --status (pending, active, sold, expired, rejected),
--type (sale, auction) and --search. Use --all to fetch every page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := validateStatus(status); err != nil {
				return err
			}
			if err := validateType(typ); err != nil {
				return err
			}

			filters := data.Filters{}.
				With("materialId", material).
				With("status", status).
				With("type", typ).
				With("search", strings.TrimSpace(search))

			listings, err := listResource(cmd.Context(), app, app.Market.Listings, filters, pages)
			if err != nil {
				return err
			}

			summary := countSummary(len(listings), "listing", "listings")
			if humanOutput(app) {
				return app.OK(listingRows(listings, localeFor(app), time.Now()), output.WithSummary(summary))
			}
			return app.OK(listings, output.WithSummary(summary))
		},
	}

	cmd.Flags().StringVar(&material, "material", "", "Filter by material ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&typ, "type", "", "Filter by type (sale, auction)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Search titles and descriptions")
	pages.bind(cmd)

	_ = cmd.RegisterFlagCompletionFunc("status", cobra.FixedCompletions(statusNames(), cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("type", cobra.FixedCompletions(
		[]string{string(market.ListingSale), string(market.ListingAuction)},
		cobra.ShellCompDirectiveNoFileComp,
	))

	return cmd
}

func newListingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <listing-id>",
		Short: "Show listing details",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, "Listing", "listings")
			if err != nil {
				return err
			}

			listing, err := app.Market.Listings.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			if humanOutput(app) {
				loc := localeFor(app)
				return app.OK(listingDetail(listing, loc, time.Now()),
					output.WithSummary(listing.Title.Resolve(loc.Tag())))
			}
			return app.OK(listing)
		},
	}
}

// listingFlags are the editable listing fields as flags.
type listingFlags struct {
	values listingform.Values
	endsAt string
	status string
}

func (f *listingFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.values.TitleEN, "title", "", "Title in English")
	fl.StringVar(&f.values.TitleAR, "title-ar", "", "Title in Arabic")
	fl.StringVar(&f.values.DescriptionEN, "description", "", "Description in English (Markdown)")
	fl.StringVar(&f.values.DescriptionAR, "description-ar", "", "Description in Arabic (Markdown)")
	fl.StringVar(&f.values.Price, "price", "", "Price per unit")
	fl.StringVar(&f.values.Currency, "currency", "", "Currency code, e.g. SAR")
	fl.StringVar(&f.values.Quantity, "quantity", "", "Quantity offered")
	fl.StringVar(&f.values.Unit, "unit", "", "Unit, e.g. ton")
	fl.StringVar(&f.values.Type, "type", "", "Listing type (sale, auction)")
	fl.StringVar(&f.values.MaterialID, "material", "", "Material ID")
	fl.StringVar(&f.endsAt, "ends", "", "Auction end, e.g. \"2026-06-01 18:00\", friday, +3d")
}

// input parses the flag values into a payload.
func (f *listingFlags) input() (market.ListingInput, error) {
	if err := validateType(f.values.Type); err != nil {
		return market.ListingInput{}, err
	}
	if err := validateStatus(f.status); err != nil {
		return market.ListingInput{}, err
	}

	values := f.values
	values.AuctionEndsAt = ""
	in, err := values.Input()
	if err != nil {
		return in, output.ErrUsage(err.Error())
	}

	if f.endsAt != "" {
		end, err := parseAuctionEnd(f.endsAt)
		if err != nil {
			return in, err
		}
		in.AuctionEndsAt = &end
	}
	if f.status != "" {
		status := market.ListingStatus(f.status)
		in.Status = &status
	}
	return in, nil
}

func (f *listingFlags) empty() bool {
	return f.values == (listingform.Values{}) && f.endsAt == "" && f.status == ""
}

func parseAuctionEnd(s string) (time.Time, error) {
	t, err := dateparse.ParseEnd(s)
	if err != nil {
		return time.Time{}, output.ErrUsageHint("Invalid --ends value: "+s,
			"Use "+dateparse.Layout+", RFC 3339, a day like friday, or an offset like +3d")
	}
	return t, nil
}

func newListingsCreateCmd() *cobra.Command {
	var f listingFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a listing",
		Long: `Create a listing from flags, or fill in a form when run in a terminal
without --title.

  market listings create --title "Rebar 12mm" --material 7 --price 2450 \
    --currency SAR --quantity 30 --unit ton`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var in market.ListingInput
			if f.values.TitleEN == "" && f.values.TitleAR == "" && app.IsInteractive() {
				in, err = runListingForm(ctx, app, "New listing", f.values)
			} else {
				in, err = f.input()
			}
			if err != nil {
				return err
			}
			if in.Type == nil {
				sale := market.ListingSale
				in.Type = &sale
			}
			if err := in.Validate(); err != nil {
				return output.ErrUsage(err.Error())
			}

			result := app.Market.Listings.CreateResult(ctx, in)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(result.Entity, output.WithSummary("Listing created"))
		},
	}

	f.bind(cmd)
	return cmd
}

// runListingForm shows the listing form with the material picker filled
// from the first page of materials.
func runListingForm(ctx context.Context, app *appctx.App, title string, values listingform.Values) (market.ListingInput, error) {
	if values.Type == "" {
		values.Type = string(market.ListingSale)
	}

	var options []tui.SelectOption
	materials, err := app.Market.Materials.List(ctx, 1, 100, nil)
	if err != nil {
		app.Logger.Warn("material picker unavailable", "error", err)
	}
	tag := localeFor(app).Tag()
	for _, m := range materials {
		options = append(options, tui.SelectOption{Value: string(m.ID), Label: m.Name.Resolve(tag)})
	}

	in, err := listingform.Run(title, &values, options)
	if err != nil {
		return in, output.ErrUsage(err.Error())
	}
	return in, nil
}

func newListingsUpdateCmd() *cobra.Command {
	var f listingFlags

	cmd := &cobra.Command{
		Use:   "update <listing-id>",
		Short: "Update a listing",
		Long: `Update the given fields of a listing. Only flags you pass are sent.
In a terminal with no field flags, the edit form opens prefilled.

  market listings update 42 --price 2300
  market listings update 42 --status active`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, "Listing", "listings")
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var in market.ListingInput
			switch {
			case !f.empty():
				in, err = f.input()
			case app.IsInteractive():
				var current market.Listing
				current, err = app.Market.Listings.GetForEdit(ctx, id)
				if err == nil {
					in, err = runListingForm(ctx, app, "Edit listing", listingform.From(current))
				}
			default:
				err = output.ErrUsageHint("Nothing to update", "Pass at least one field flag, e.g. --price or --status")
			}
			if err != nil {
				return err
			}

			result := app.Market.Listings.UpdateResult(ctx, id, in)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(result.Entity, output.WithSummary("Listing updated"))
		},
	}

	f.bind(cmd)
	cmd.Flags().StringVar(&f.status, "status", "", "Set status (pending, active, sold, expired, rejected)")
	_ = cmd.RegisterFlagCompletionFunc("status", cobra.FixedCompletions(statusNames(), cobra.ShellCompDirectiveNoFileComp))
	return cmd
}

func newListingsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <listing-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a listing",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, "Listing", "listings")
			if err != nil {
				return err
			}
			if err := confirmDelete(app, "listing "+id, yes); err != nil {
				return err
			}

			result := app.Market.Listings.DeleteResult(cmd.Context(), id)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(map[string]any{"id": result.ID, "deleted": true},
				output.WithSummary("Listing deleted"))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

func statusNames() []string {
	names := make([]string, len(market.ListingStatuses))
	for i, s := range market.ListingStatuses {
		names[i] = string(s)
	}
	return names
}

func validateStatus(status string) error {
	if status == "" || slices.Contains(market.ListingStatuses, market.ListingStatus(status)) {
		return nil
	}
	return output.ErrUsageHint("Unknown status: "+status, "Use one of: "+strings.Join(statusNames(), ", "))
}

func validateType(typ string) error {
	switch market.ListingType(typ) {
	case "", market.ListingSale, market.ListingAuction:
		return nil
	}
	return output.ErrUsageHint("Unknown listing type: "+typ, "Use sale or auction")
}

// listingRows formats listings for a table.
func listingRows(listings []market.Listing, loc presenter.Locale, now time.Time) []map[string]any {
	tag := loc.Tag()
	rows := make([]map[string]any, 0, len(listings))
	for _, l := range listings {
		row := map[string]any{
			"id":       string(l.ID),
			"title":    l.Title.Resolve(tag),
			"price":    loc.FormatPrice(l.Price, l.Currency),
			"quantity": loc.FormatQuantity(l.Quantity, l.Unit),
			"type":     loc.Label(string(l.Type)),
			"status":   loc.Label(string(l.Status)),
		}
		if l.Type == market.ListingAuction && l.AuctionEndsAt != nil {
			row["ends"] = loc.FormatTimeLeft(*l.AuctionEndsAt, now)
		}
		rows = append(rows, row)
	}
	return rows
}

// listingDetail formats one listing for a key/value view.
func listingDetail(l market.Listing, loc presenter.Locale, now time.Time) map[string]any {
	tag := loc.Tag()
	detail := map[string]any{
		"id":       string(l.ID),
		"title":    l.Title.Resolve(tag),
		"price":    loc.FormatPrice(l.Price, l.Currency),
		"quantity": loc.FormatQuantity(l.Quantity, l.Unit),
		"type":     loc.Label(string(l.Type)),
		"status":   loc.Label(string(l.Status)),
	}
	if l.Material != nil {
		detail["material"] = l.Material.Name.Resolve(tag)
	} else if l.MaterialID != "" {
		detail["material"] = string(l.MaterialID)
	}
	if l.Seller != nil && l.Seller.Name != "" {
		detail["seller"] = l.Seller.Name
	}
	if l.AuctionEndsAt != nil {
		detail["ends"] = loc.FormatDate(*l.AuctionEndsAt) + " (" + loc.FormatTimeLeft(*l.AuctionEndsAt, now) + ")"
	}
	if !l.CreatedAt.IsZero() {
		detail["listed"] = loc.FormatRelative(l.CreatedAt, now)
	}
	if desc := l.Description.Resolve(tag); desc != "" {
		detail["description"] = richtext.ToMarkdown(desc)
	}
	return detail
}
