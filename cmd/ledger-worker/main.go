package main

import (
	"context"
	"os"

	"billtracker/internal/cli"
	"billtracker/internal/log"
	"billtracker/internal/metrics"
	"billtracker/internal/services"
	"billtracker/internal/sheets"
	gsheet "billtracker/internal/sheets/google"
	"billtracker/internal/sheets/memory"
	"billtracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting ledger-worker")

	be := cli.OpenBackend(context.Background(), logger, cfg, true)

	var ledger sheets.LedgerWriter
	if cfg.GoogleSpreadsheetID != "" {
		if err := cfg.ValidateSheets(); err != nil {
			logger.Error("Sheets configuration invalid", "error", err)
			os.Exit(1)
		}
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			Sheet:           cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets ledger initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		ledger = memory.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to an in-memory ledger")
	}

	sync := services.NewLedgerSync(be.Store, ledger, metrics.New())
	w := worker.NewSyncWorker(be.Events, sync, be.Store, ledger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Performing startup sync check")
	if failed, err := w.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
	} else if failed > 0 {
		logger.Warn("Startup sync check incomplete", "failed", failed)
	}

	if err := w.Run(ctx); err != nil {
		logger.Error("Event consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Ledger-worker shutdown complete")
}
