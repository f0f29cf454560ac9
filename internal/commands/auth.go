package commands

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matmarket/market-cli/internal/api"
	"github.com/matmarket/market-cli/internal/auth"
	"github.com/matmarket/market-cli/internal/output"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long: `Manage the API token used for the configured base URL.

Tokens are stored in the system keyring, or in a credentials file in the
config directory when no keyring is available. ` + auth.TokenEnv + ` overrides
the stored token.`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var token string
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Long: `Store an API token for the configured base URL.

  market auth login --token <token>
  pass show market/token | market auth login --stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			if fromStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return output.ErrUsage("No token on stdin")
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return output.ErrUsageHint("Token required", "Use --token <token> or --stdin")
			}

			if err := app.Auth.Login(token); err != nil {
				return err
			}

			status := app.Auth.Status()
			return app.OK(status, output.WithSummary("Logged in to "+status.Origin))
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the token from stdin")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long:  "Remove stored authentication credentials for the current base URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			if err := app.Auth.Logout(); err != nil {
				return err
			}
			// Cached bodies were fetched with the old token.
			if app.Config.CacheEnabled {
				if err := api.NewCache(app.Config.CacheDir).Clear(); err != nil {
					app.Logger.Warn("clear response cache", "error", err)
				}
			}

			summary := "Successfully logged out"
			if os.Getenv(auth.TokenEnv) != "" {
				summary += "; " + auth.TokenEnv + " is still set"
			}
			return app.OK(map[string]string{
				"status": "logged_out",
			}, output.WithSummary(summary))
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			status := app.Auth.Status()
			summary := "Not authenticated"
			if status.Authenticated {
				summary = "Authenticated with " + status.Origin
			}
			return app.OK(status, output.WithSummary(summary))
		},
	}
}
