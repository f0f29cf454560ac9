package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/matmarket/market-cli/internal/market"
	"github.com/matmarket/market-cli/internal/output"
)

// NewUsersCmd creates the users command group.
func NewUsersCmd() *cobra.Command {
	c := catalog[market.User, market.UserInput]{
		singular: "user",
		plural:   "users",
		resource: func(s *market.Service) *market.Resource[market.User, market.UserInput] { return s.Users.Resource },
		filters:  map[string]string{"role": "role", "company": "companyId"},
		row: func(u market.User, _ language.Tag) map[string]any {
			return map[string]any{
				"id":        string(u.ID),
				"name":      u.Name,
				"email":     u.Email,
				"phone":     u.Phone,
				"role":      u.Role,
				"favorites": len(u.Favorites),
			}
		},
	}

	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage marketplace users",
		Long:    "List, show, create, update, or delete users and their favorite materials.",
	}
	cmd.AddCommand(
		c.listCmd(),
		c.showCmd(),
		newUsersCreateCmd(),
		newUsersUpdateCmd(),
		c.deleteCmd(),
		newUsersFavoritesCmd(),
	)
	return cmd
}

// userFlags are the editable user fields.
type userFlags struct {
	name, email, phone, role, company string
}

func (f *userFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Full name")
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&f.role, "role", "", "Role, e.g. buyer, seller, admin")
	cmd.Flags().StringVar(&f.company, "company", "", "Company ID")
}

func (f *userFlags) input(cmd *cobra.Command) market.UserInput {
	return market.UserInput{
		Name:      stringFlag(cmd, "name", strings.TrimSpace(f.name)),
		Email:     stringFlag(cmd, "email", strings.TrimSpace(f.email)),
		Phone:     stringFlag(cmd, "phone", strings.TrimSpace(f.phone)),
		Role:      stringFlag(cmd, "role", f.role),
		CompanyID: stringFlag(cmd, "company", f.company),
	}
}

func newUsersCreateCmd() *cobra.Command {
	var f userFlags
	var favorites []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Long: `Create a user, optionally following materials right away.

Favorites are attached after the user is created. If some of them fail,
the user still exists and a warning names the favorites that failed.

  market users create --name "Sara Ali" --phone +966500000000 \
    --favorite-material 7 --favorite-material 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			in := f.input(cmd)
			if in.Name == nil || *in.Name == "" {
				return output.ErrUsage("--name required")
			}
			if (in.Email == nil || *in.Email == "") && (in.Phone == nil || *in.Phone == "") {
				return output.ErrUsage("--email or --phone required")
			}

			result := app.Market.Users.CreateWithFavorites(cmd.Context(), in, favorites)
			if result.Err != nil {
				return result.Err
			}

			opts := []output.ResponseOption{output.WithSummary("User created")}
			if result.Partial() {
				failed := strings.ReplaceAll(result.SecondaryErr.Error(), "\n", "; ")
				notice := "User created, but " + failed
				opts = append(opts, app.Notice(notice))
			}
			return app.OK(result.Entity, opts...)
		},
	}

	f.bind(cmd)
	cmd.Flags().StringArrayVar(&favorites, "favorite-material", nil, "Material ID to follow (repeatable)")
	return cmd
}

func newUsersUpdateCmd() *cobra.Command {
	var f userFlags

	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Update a user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, "User", "users")
			if err != nil {
				return err
			}
			in := f.input(cmd)
			if in == (market.UserInput{}) {
				return output.ErrUsageHint("Nothing to update", "Use --name, --email, --phone, --role or --company")
			}

			result := app.Market.Users.UpdateResult(cmd.Context(), id, in)
			if result.Err != nil {
				return result.Err
			}
			return app.OK(result.Entity, output.WithSummary("User updated"))
		},
	}

	f.bind(cmd)
	return cmd
}

func newUsersFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites <user-id>",
		Aliases: []string{"favs"},
		Short:   "List a user's favorite materials",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			id, err := requireID(args, "User", "users")
			if err != nil {
				return err
			}

			favs, err := app.Market.Users.Favorites(cmd.Context(), id)
			if err != nil {
				return err
			}

			summary := countSummary(len(favs), "favorite", "favorites")
			if humanOutput(app) {
				tag := localeFor(app).Tag()
				rows := make([]map[string]any, len(favs))
				for i, fav := range favs {
					row := map[string]any{"id": string(fav.MaterialID)}
					if fav.Material != nil {
						row["name"] = fav.Material.Name.Resolve(tag)
						row["unit"] = fav.Material.Unit
					}
					rows[i] = row
				}
				return app.OK(rows, output.WithSummary(summary))
			}
			return app.OK(favs, output.WithSummary(summary))
		},
	}

	cmd.AddCommand(
		newUsersFavoriteChangeCmd("add", "Follow a material", func(cmd *cobra.Command, users *market.Users, userID, materialID string) error {
			return users.AddFavorite(cmd.Context(), userID, materialID)
		}),
		newUsersFavoriteChangeCmd("remove", "Stop following a material", func(cmd *cobra.Command, users *market.Users, userID, materialID string) error {
			return users.RemoveFavorite(cmd.Context(), userID, materialID)
		}),
	)
	return cmd
}

func newUsersFavoriteChangeCmd(use, short string, change func(*cobra.Command, *market.Users, string, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id> <material-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			userID, materialID := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if userID == "" || materialID == "" {
				return output.ErrUsage("User ID and material ID required")
			}
			if err := change(cmd, app.Market.Users, userID, materialID); err != nil {
				return err
			}

			summary := "Favorite added"
			if use == "remove" {
				summary = "Favorite removed"
			}
			return app.OK(map[string]any{"id": userID, "materialId": materialID}, output.WithSummary(summary))
		},
	}
}
