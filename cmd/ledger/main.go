package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledger/internal/auth"
	"ledger/internal/cache"
	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	applog "ledger/internal/log"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		applog.New(applog.DefaultConfig()).Warn("Ignoring .env file", "error", err)
	}

	logger := cli.SetupLogger(applog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.RequireAuth(); err != nil {
		logger.Error("Authentication is not configured", "error", err)
		os.Exit(1)
	}

	manager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	ledger, res, err := cli.InitLedger(context.Background(), logger, cfg, manager)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	manager.StartCleanup(cfg.CacheTTL)

	tokens := auth.NewTokenService(cfg.AuthSecret, cfg.AuthIssuer)
	srv := apphttp.NewServer(":"+cfg.Port, ledger, tokens, logger, apphttp.ServerConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:    cfg.TrustedProxies,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		RuntimeMetrics:    true,
	})
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		manager.Stop()
		if err := ledger.Close(); err != nil {
			logger.Error("Failed closing ledger", "error", err)
		}
	})

	logger.Info("Starting ledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
