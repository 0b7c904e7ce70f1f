package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/services"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := cli.LoadEnvFile(); err != nil {
		applog.New(applog.DefaultConfig()).Warn("Ignoring .env file", "error", err)
	}

	logger := cli.SetupLogger(applog.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != config.BackendSQLite {
		logger.Error("The worker needs the sqlite backend", "backend", cfg.DataBackend)
		return 1
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required")
		return 1
	}
	if err := cfg.RequireSheets(); err != nil {
		logger.Error("Google Sheets is not configured", "error", err)
		return 1
	}

	// The ledger service is only used to import budgets; entries are read
	// straight from the SQLite sync columns.
	ledger, res, err := cli.InitLedger(context.Background(), logger, cfg, nil)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		return 1
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error("Failed closing ledger", "error", err)
		}
	}()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		EntriesSheet:    cfg.GoogleSheetName,
		BudgetSheet:     cfg.GoogleBudgetSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		OAuth: gsheet.OAuthCredentials{
			ClientJSON: cfg.GoogleOAuthClientJSON,
			ClientFile: cfg.GoogleOAuthClientFile,
			TokenJSON:  cfg.GoogleOAuthTokenJSON,
			TokenFile:  cfg.GoogleOAuthTokenFile,
		},
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		return 1
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		return 1
	}
	defer consumer.Close()

	syncWorker := worker.NewSyncWorker(res.SQLite, sheetsClient, sheetsClient, ledger, cfg.SyncBatchSize)
	processor := services.NewSyncProcessor(syncWorker, syncWorker, services.SyncProcessorConfig{
		PollInterval:          cfg.SyncInterval,
		BudgetRefreshInterval: cfg.BudgetRefreshInterval,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeEntrySync(gctx, syncWorker.HandleSyncMessage)
	})
	g.Go(func() error {
		if err := processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return processor.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		return 1
	}
	<-done
	logger.Info("Worker shutdown complete")
	return 0
}
