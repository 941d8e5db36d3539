package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"billtracker/internal/backend"
	"billtracker/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply every pending migration to the configured database. The driver
and data source default to DB_DRIVER and SQLITE_DB_PATH or DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := backend.FromAppConfig(a.cfg)
			if err != nil {
				return err
			}
			if driver != "" {
				bc.Driver = backend.DriverType(driver)
			}
			if dsn != "" {
				bc.DataSource = dsn
			}
			if err := bc.Validate(); err != nil {
				return err
			}

			store, err := storage.Open(cmd.Context(), bc.Driver.String(), bc.DataSource)
			if err != nil {
				return err
			}
			defer store.Close()

			a.logger.Info("Migrations applied", "driver", bc.Driver)
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", bc.Driver)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "Database driver ("+strings.Join(backend.GetDriverTypeStrings(), ", ")+")")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Data source: sqlite file path or postgres URL")
	return cmd
}
