package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matmarket/market-cli/internal/config"
	"github.com/matmarket/market-cli/internal/output"
)

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage market configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > local > repo > global > system > defaults

Config locations:
  - System: /etc/market/config.json
  - Global: ~/.config/market/config.json
  - Repo:   <git-root>/.market/config.json
  - Local:  .market/config.json

base_url is only honored from system, global, env, and flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}

	configData := make(map[string]any, len(config.Keys))
	for _, key := range config.Keys {
		value, _ := app.Config.Value(key)
		source := app.Config.Sources[key]
		if value == "" && source == "" {
			continue
		}
		if source == "" {
			source = string(config.SourceDefault)
		}
		configData[key] = map[string]string{
			"value":  value,
			"source": source,
		}
	}

	return app.OK(configData, output.WithSummary("Effective configuration"))
}

// configPath picks the file config set and unset write to.
func configPath(local bool) (string, string) {
	if local {
		return "local", filepath.Join(".market", "config.json")
	}
	return "global", config.GlobalConfigPath()
}

func newConfigSetCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: fmt.Sprintf(`Set a configuration value in the global (default) or local config file.

Valid keys: %s`, keyList()),
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.Keys, cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			key, value := args[0], args[1]

			if local && key == "base_url" {
				return output.ErrUsageHint("base_url cannot be set in local config",
					"Run: market config set base_url <url> (without --local)")
			}

			scope, path := configPath(local)
			if err := config.SetValue(path, key, value); err != nil {
				return output.ErrUsage(err.Error())
			}

			return app.OK(map[string]any{
				"key":   key,
				"value": value,
				"scope": scope,
				"path":  path,
			}, output.WithSummary(fmt.Sprintf("Set %s = %s (%s)", key, value, scope)))
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Write to .market/config.json in the current directory")
	return cmd
}

func newConfigUnsetCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			key := args[0]

			scope, path := configPath(local)
			if err := config.UnsetValue(path, key); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":   key,
				"scope": scope,
				"path":  path,
			}, output.WithSummary(fmt.Sprintf("Unset %s (%s)", key, scope)))
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Edit .market/config.json in the current directory")
	return cmd
}

func keyList() string {
	return strings.Join(config.Keys, ", ")
}
