package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"billtracker/internal/cli"
	"billtracker/internal/core"
	"billtracker/internal/metrics"
	"billtracker/internal/services"
)

func newGenerateCmd(a *app) *cobra.Command {
	var period, dueMonth string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create monthly bill instances",
		Long: `Run the monthly generator once. Without --period it behaves like the
scheduled run: the billing period is last month and instances fall due this
month. With --period it backfills that month, due in the following month
unless --due-month says otherwise. Bills that already have an instance for
the period are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			be, err := cli.NewBackend(ctx, a.logger, a.cfg, false)
			if err != nil {
				return err
			}
			defer be.Cleanup()

			p := services.NewRecurringProcessor(be.Store, be.Publisher(), metrics.New(), a.cfg.GeneratorConcurrency)

			var res services.GenerationResult
			if period == "" {
				if dueMonth != "" {
					return fmt.Errorf("--due-month requires --period")
				}
				res, err = p.ProcessMonth(ctx, time.Now())
			} else {
				target, perr := core.ParsePeriod(period)
				if perr != nil {
					return fmt.Errorf("--period: %w", perr)
				}
				due := target.Next()
				if dueMonth != "" {
					if due, perr = core.ParsePeriod(dueMonth); perr != nil {
						return fmt.Errorf("--due-month: %w", perr)
					}
				}
				res, err = p.Generate(ctx, target, due)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "period %s: %d bills, %d created, %d skipped, %d failed\n",
				res.Period, res.Checked, res.Created, res.Skipped, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d bills failed", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "Billing period to generate (YYYY-MM or \"Month YYYY\")")
	cmd.Flags().StringVar(&dueMonth, "due-month", "", "Month the instances fall due in (default: the month after --period)")
	return cmd
}
