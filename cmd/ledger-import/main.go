// Command ledger-import loads the legacy income_log.json and expense_log.json
// files into the configured store. With -budgets it also loads budget
// records from a "key|item|amount" seed file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ledger/internal/cli"
	"ledger/internal/core"
	applog "ledger/internal/log"
	sheetmem "ledger/internal/sheets/memory"
	"ledger/internal/store/jsonfile"
)

func main() {
	var (
		dir     string
		account string
		budgets string
		dryRun  bool
	)
	flag.StringVar(&dir, "dir", ".", "Directory holding income_log.json and expense_log.json")
	flag.StringVar(&account, "account", core.AccountMain, `Account legacy records post into ("Main" or "Building Fund"); empty uses each record's department`)
	flag.StringVar(&budgets, "budgets", "", "Optional budget seed file (key|item|amount per line)")
	flag.BoolVar(&dryRun, "dry-run", false, "Parse and report without writing")
	flag.Parse()

	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring .env file: %v\n", err)
	}
	logger := cli.SetupLogger(applog.ComponentImport, os.Getenv("LOG_LEVEL"))

	if account != "" && !core.IsManagedAccount(account) {
		logger.Error("Legacy account must be Main or Building Fund", "account", account)
		os.Exit(1)
	}
	batch, err := jsonfile.ReadLegacy(dir, account)
	if err != nil {
		logger.Error("Failed reading legacy files", "error", err, "dir", dir)
		os.Exit(1)
	}
	for _, skipped := range batch.Skipped {
		logger.Warn("Skipping legacy record", "error", skipped)
	}
	logger.Info("Legacy files read", "dir", dir, "account", account, "entries", len(batch.Entries), "skipped", len(batch.Skipped))

	var budgetTree core.BudgetTree
	if budgets != "" {
		seed, err := sheetmem.NewFromSeedFile(budgets)
		if err != nil {
			logger.Error("Failed reading budget seed file", "error", err, "path", budgets)
			os.Exit(1)
		}
		if budgetTree, err = seed.ReadBudgets(context.Background()); err != nil {
			logger.Error("Failed loading budgets", "error", err)
			os.Exit(1)
		}
		logger.Info("Budget seed read", "records", len(budgetTree))
	}
	if dryRun {
		return
	}

	cfg := cli.LoadAndValidateConfig(logger)
	ctx := context.Background()
	ledger, _, err := cli.InitLedger(ctx, logger, cfg, nil)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer ledger.Close()

	res, err := ledger.ImportEntries(ctx, batch.Entries)
	for _, rejected := range res.Rejected {
		logger.Warn("Entry rejected", "error", rejected)
	}
	if err != nil {
		logger.Error("Import aborted", "error", err, "imported", res.Imported)
		ledger.Close()
		os.Exit(1)
	}
	if len(budgetTree) > 0 {
		n, err := ledger.ImportBudgets(ctx, budgetTree)
		if err != nil {
			logger.Error("Budget import failed", "error", err, "imported", n)
			ledger.Close()
			os.Exit(1)
		}
		logger.Info("Budgets imported", applog.FieldOperation, applog.OpBudget, "records", n)
	}
	logger.Info("Import complete",
		applog.FieldOperation, applog.OpImport,
		"imported", res.Imported,
		"rejected", len(res.Rejected))
}
