package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/accomplishment-tracker/internal/model"
)

func newConfigCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(newConfigInitCmd(a))
	return cmd
}

func newConfigInitCmd(a *App) *cobra.Command {
	var driver, url, anonKey, sqlitePath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		Example: strings.TrimSpace(`
  # Hosted backend
  accomplish config init --url https://abcd.supabase.co --anon-key ...

  # Offline, single-user database
  accomplish config init --driver sqlite
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.ConfigPath
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite it", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", path, err)
			}

			cfg := model.DefaultAppConfig()
			cfg.Backend.Driver = driver
			cfg.Backend.URL = strings.TrimRight(url, "/")
			cfg.Backend.AnonKey = anonKey
			if sqlitePath != "" {
				cfg.Backend.SQLitePath = sqlitePath
			}
			// Hosted credentials may come from the environment later.
			if driver != model.DriverSupabase {
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			if err := model.SaveConfig(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", model.DriverSupabase, "Backend driver: supabase or sqlite")
	cmd.Flags().StringVar(&url, "url", "", "Project URL for the supabase driver")
	cmd.Flags().StringVar(&anonKey, "anon-key", "", "Public API key for the supabase driver")
	cmd.Flags().StringVar(&sqlitePath, "sqlite-path", "", "Database file for the sqlite driver")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
