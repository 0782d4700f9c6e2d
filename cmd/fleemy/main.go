package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fleemy/internal/backend"
	"fleemy/internal/cache"
	"fleemy/internal/cli"
	apphttp "fleemy/internal/http"
	"fleemy/internal/log"
	"fleemy/internal/middleware/ratelimit"
	"fleemy/internal/planning"
	"fleemy/internal/services"
	gsheet "fleemy/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	policy, err := cfg.Policy()
	if err != nil {
		logger.Error("Invalid planning policy", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	sessions := planning.NewSessions(res.Options(policy), cfg.MaxSessions, cfg.SessionIdle)
	sessions.RegisterWith(caches)
	if res.Memo != nil {
		res.Memo.RegisterWith(caches)
	}
	caches.StartCleanup(5 * time.Minute)

	checks := make(map[string]apphttp.HealthCheck, len(res.Checks))
	for name, check := range res.Checks {
		checks[name] = apphttp.HealthCheck(check)
	}

	var exporter apphttp.WeekExporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		var exportLog services.ExportLog
		if res.Store != nil {
			exportLog = res.Store
		}
		exporter = services.NewWeeklyExporter(res.Backend, res.Snapshots, sheetsClient, exportLog, policy.HourlyRate, logger).
			WithLocation(policy.Location)
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:      ":" + cfg.Port,
		Sessions:  sessions,
		Exporter:  exporter,
		Checks:    checks,
		Caches:    caches,
		Logger:    logger,
		RateLimit: ratelimit.DefaultConfig(),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting fleemy server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"snapshots", cfg.SnapshotBackend,
		"timezone", policy.Location.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
