package main

import (
	"os"

	"github.com/spf13/cobra"

	"billtracker/internal/cli"
	"billtracker/internal/config"
	"billtracker/internal/log"
)

// app carries what the subcommands share once the root has loaded the
// configuration.
type app struct {
	configFile string
	cfg        *config.Config
	logger     *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "billctl",
		Short: "Administrative tasks for the bill tracker",
		Long: `billctl runs maintenance tasks against the bill tracker database:
applying migrations, generating monthly bill instances for a chosen period,
and issuing development tokens.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.LoadEnvFile()
			if a.configFile != "" {
				if err := os.Setenv("CONFIG_FILE", a.configFile); err != nil {
					return err
				}
			}
			cfg, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cli.SetupLogger(cfg, log.ComponentApp)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML configuration file (overrides CONFIG_FILE)")

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newTokenCmd(a))
	return root
}
