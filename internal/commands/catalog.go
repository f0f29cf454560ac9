package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/matmarket/market-cli/internal/data"
	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/output"
)

// catalog describes one read-mostly resource for the shared list, show
// and delete commands.
type catalog[T market.Entity, In any] struct {
	singular string
	plural   string
	resource func(*market.Service) *market.Resource[T, In]
	// filters maps a list flag name to the query key it sets.
	filters map[string]string
	row     func(T, language.Tag) map[string]any
}

// NewMaterialsCmd creates the materials command group.
func NewMaterialsCmd() *cobra.Command {
	c := catalog[market.Material, market.MaterialInput]{
		singular: "material",
		plural:   "materials",
		resource: func(s *market.Service) *market.Resource[market.Material, market.MaterialInput] { return s.Materials },
		filters:  map[string]string{"category": "categoryId"},
		row: func(m market.Material, tag language.Tag) map[string]any {
			row := map[string]any{"id": string(m.ID), "name": m.Name.Resolve(tag), "unit": m.Unit}
			if m.Category != nil {
				row["category"] = m.Category.Name.Resolve(tag)
			}
			return row
		},
	}

	cmd := &cobra.Command{
		Use:     "materials",
		Aliases: []string{"material", "mat"},
		Short:   "Browse and manage materials",
		Long:    "List, show, create, update, or delete tradable materials.",
	}
	cmd.AddCommand(
		c.listCmd(),
		c.showCmd(),
		newMaterialsCreateCmd(),
		newMaterialsUpdateCmd(),
		c.deleteCmd(),
	)
	return cmd
}

// NewCategoriesCmd creates the categories command group.
func NewCategoriesCmd() *cobra.Command {
	c := catalog[market.Category, market.NamedInput]{
		singular: "category",
		plural:   "categories",
		resource: func(s *market.Service) *market.Resource[market.Category, market.NamedInput] { return s.Categories },
		row: func(c market.Category, tag language.Tag) map[string]any {
			return map[string]any{"id": string(c.ID), "name": c.Name.Resolve(tag)}
		},
	}

	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "Browse and manage material categories",
	}
	cmd.AddCommand(
		c.listCmd(),
		c.showCmd(),
		newNamedCreateCmd(c, false),
		newNamedUpdateCmd(c, false),
		c.deleteCmd(),
	)
	return cmd
}

// NewCompaniesCmd creates the companies command group.
func NewCompaniesCmd() *cobra.Command {
	c := catalog[market.Company, market.NamedInput]{
		singular: "company",
		plural:   "companies",
		resource: func(s *market.Service) *market.Resource[market.Company, market.NamedInput] { return s.Companies },
		filters:  map[string]string{"country": "countryId"},
		row: func(c market.Company, tag language.Tag) map[string]any {
			return map[string]any{
				"id":    string(c.ID),
				"name":  c.Name.Resolve(tag),
				"phone": c.Phone,
				"email": c.Email,
			}
		},
	}

	cmd := &cobra.Command{
		Use:     "companies",
		Aliases: []string{"company"},
		Short:   "Browse and manage companies",
	}
	cmd.AddCommand(
		c.listCmd(),
		c.showCmd(),
		newNamedCreateCmd(c, true),
		newNamedUpdateCmd(c, true),
		c.deleteCmd(),
	)
	return cmd
}

// NewCountriesCmd creates the countries command group.
func NewCountriesCmd() *cobra.Command {
	c := catalog[market.Country, market.NamedInput]{
		singular: "country",
		plural:   "countries",
		resource: func(s *market.Service) *market.Resource[market.Country, market.NamedInput] { return s.Countries },
		row: func(c market.Country, tag language.Tag) map[string]any {
			return map[string]any{
				"id":       string(c.ID),
				"name":     c.Name.Resolve(tag),
				"code":     c.Code,
				"currency": c.Currency,
			}
		},
	}

	cmd := &cobra.Command{
		Use:     "countries",
		Aliases: []string{"country"},
		Short:   "Browse and manage countries",
	}
	cmd.AddCommand(
		c.listCmd(),
		c.showCmd(),
		newNamedCreateCmd(c, false),
		newNamedUpdateCmd(c, false),
		c.deleteCmd(),
	)
	return cmd
}

func (c catalog[T, In]) listCmd() *cobra.Command {
	var search string
	var pages pageFlags
	filterValues := make(map[string]*string, len(c.filters))

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + c.plural,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			filters := data.Filters{}.With("search", strings.TrimSpace(search))
			for flag, key := range c.filters {
				filters = filters.With(key, *filterValues[flag])
			}

			items, err := listResource(cmd.Context(), app, c.resource(app.Market), filters, pages)
			if err != nil {
				return err
			}

			summary := countSummary(len(items), c.singular, c.plural)
			if humanOutput(app) {
				tag := localeFor(app).Tag()
				rows := make([]map[string]any, len(items))
				for i, item := range items {
					rows[i] = c.row(item, tag)
				}
				return app.OK(rows, output.WithSummary(summary))
			}
			return app.OK(items, output.WithSummary(summary))
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Search by name")
	for flag := range c.filters {
		filterValues[flag] = new(string)
		cmd.Flags().StringVar(filterValues[flag], flag, "", "Filter by "+flag+" ID")
	}
	pages.bind(cmd)
	return cmd
}

func (c catalog[T, In]) showCmd() *cobra.Command {
	what := strings.ToUpper(c.singular[:1]) + c.singular[1:]
	return &cobra.Command{
		Use:   "show <" + c.singular + "-id>",
		Short: "Show " + c.singular + " details",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, what, c.plural)
			if err != nil {
				return err
			}

			item, err := c.resource(app.Market).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if humanOutput(app) {
				return app.OK(c.row(item, localeFor(app).Tag()))
			}
			return app.OK(item)
		},
	}
}

func (c catalog[T, In]) deleteCmd() *cobra.Command {
	var yes bool
	what := strings.ToUpper(c.singular[:1]) + c.singular[1:]

	cmd := &cobra.Command{
		Use:     "delete <" + c.singular + "-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a " + c.singular,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, what, c.plural)
			if err != nil {
				return err
			}
			if err := confirmDelete(app, c.singular+" "+id, yes); err != nil {
				return err
			}

			result := c.resource(app.Market).DeleteResult(cmd.Context(), id)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(map[string]any{"id": result.ID, "deleted": true},
				output.WithSummary(what+" deleted"))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

// materialFlags are the editable material fields.
type materialFlags struct {
	nameEN, nameAR, unit, category string
}

func (f *materialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.nameEN, "name", "", "Name in English")
	cmd.Flags().StringVar(&f.nameAR, "name-ar", "", "Name in Arabic")
	cmd.Flags().StringVar(&f.unit, "unit", "", "Default unit, e.g. ton")
	cmd.Flags().StringVar(&f.category, "category", "", "Category ID")
}

func (f *materialFlags) input(cmd *cobra.Command) market.MaterialInput {
	return market.MaterialInput{
		Name:       localizedFlag(f.nameEN, f.nameAR),
		Unit:       stringFlag(cmd, "unit", f.unit),
		CategoryID: stringFlag(cmd, "category", f.category),
	}
}

func newMaterialsCreateCmd() *cobra.Command {
	var f materialFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a material",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			in := f.input(cmd)
			if in.Name == nil {
				return output.ErrUsage("--name or --name-ar required")
			}
			if in.CategoryID == nil || *in.CategoryID == "" {
				return output.ErrUsage("--category required")
			}

			result := app.Market.Materials.CreateResult(cmd.Context(), in)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(result.Entity, output.WithSummary("Material created"))
		},
	}
	f.bind(cmd)
	return cmd
}

func newMaterialsUpdateCmd() *cobra.Command {
	var f materialFlags
	cmd := &cobra.Command{
		Use:   "update <material-id>",
		Short: "Update a material",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, "Material", "materials")
			if err != nil {
				return err
			}
			in := f.input(cmd)
			if in == (market.MaterialInput{}) {
				return output.ErrUsageHint("Nothing to update", "Use --name, --name-ar, --unit or --category")
			}

			result := app.Market.Materials.UpdateResult(cmd.Context(), id, in)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(result.Entity, output.WithSummary("Material updated"))
		},
	}
	f.bind(cmd)
	return cmd
}

// namedFlags are the editable fields of categories, countries and companies.
type namedFlags struct {
	nameEN, nameAR, code, country string
}

func (f *namedFlags) bind(cmd *cobra.Command, withCountry bool) {
	cmd.Flags().StringVar(&f.nameEN, "name", "", "Name in English")
	cmd.Flags().StringVar(&f.nameAR, "name-ar", "", "Name in Arabic")
	cmd.Flags().StringVar(&f.code, "code", "", "Short code")
	if withCountry {
		cmd.Flags().StringVar(&f.country, "country", "", "Country ID")
	}
}

func (f *namedFlags) input(cmd *cobra.Command) market.NamedInput {
	in := market.NamedInput{
		Name: localizedFlag(f.nameEN, f.nameAR),
		Code: stringFlag(cmd, "code", f.code),
	}
	if cmd.Flags().Lookup("country") != nil {
		in.CountryID = stringFlag(cmd, "country", f.country)
	}
	return in
}

func newNamedCreateCmd[T market.Entity](c catalog[T, market.NamedInput], withCountry bool) *cobra.Command {
	var f namedFlags
	what := strings.ToUpper(c.singular[:1]) + c.singular[1:]

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a " + c.singular,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			in := f.input(cmd)
			if in.Name == nil {
				return output.ErrUsage("--name or --name-ar required")
			}

			result := c.resource(app.Market).CreateResult(cmd.Context(), in)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(result.Entity, output.WithSummary(what+" created"))
		},
	}
	f.bind(cmd, withCountry)
	return cmd
}

func newNamedUpdateCmd[T market.Entity](c catalog[T, market.NamedInput], withCountry bool) *cobra.Command {
	var f namedFlags
	what := strings.ToUpper(c.singular[:1]) + c.singular[1:]

	cmd := &cobra.Command{
		Use:   "update <" + c.singular + "-id>",
		Short: "Update a " + c.singular,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, what, c.plural)
			if err != nil {
				return err
			}
			in := f.input(cmd)
			if in == (market.NamedInput{}) {
				return output.ErrUsage("Nothing to update")
			}

			result := c.resource(app.Market).UpdateResult(cmd.Context(), id, in)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(result.Entity, output.WithSummary(what+" updated"))
		},
	}
	f.bind(cmd, withCountry)
	return cmd
}
