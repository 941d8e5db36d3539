package main

import (
	"context"
	"os"
	"time"

	"billtracker/internal/cli"
	"billtracker/internal/log"
	"billtracker/internal/metrics"
	"billtracker/internal/schedule"
	"billtracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentGenerator)

	logger.Info("Starting recurring-worker")

	be := cli.OpenBackend(context.Background(), logger, cfg, false)
	if be.Events == nil {
		logger.Info("AMQP disabled, generated instances will not reach the ledger")
	}

	processor := services.NewRecurringProcessor(be.Store, be.Publisher(), metrics.New(), cfg.GeneratorConcurrency)
	monthly := schedule.Monthly{Day: cfg.ScheduleDay, Hour: cfg.ScheduleHour, Minute: cfg.ScheduleMinute}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	gen := &generator{processor: processor, logger: logger, runOnStart: cfg.GeneratorRunOnStart}
	gen.startup(ctx, time.Now())

	logger.Info("Recurring generator scheduled",
		"day", monthly.Day,
		"hour", monthly.Hour,
		"minute", monthly.Minute,
		"concurrency", cfg.GeneratorConcurrency,
		"run_on_start", cfg.GeneratorRunOnStart)
	if err := schedule.Run(ctx, monthly, schedule.RealClock, gen.scheduled); err != nil {
		logger.Error("Scheduler stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
