package main

import (
	"context"
	"errors"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"fleemy/internal/backend"
	"fleemy/internal/cli"
	"fleemy/internal/log"
	"fleemy/internal/services"
	gsheet "fleemy/internal/sheets/google"
	"fleemy/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting fleemy-worker")

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
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	g, gctx := errgroup.WithContext(ctx)

	// Outbox replay
	syncCfg := services.DefaultSyncProcessorConfig()
	syncCfg.PollInterval = cfg.SyncInterval
	syncCfg.BatchSize = cfg.SyncBatchSize
	if cfg.SnapshotTTL > 0 {
		syncCfg.CleanupAge = cfg.SnapshotTTL
	}
	processor := services.NewSyncProcessor(res.Backend, res.Outbox, logger, syncCfg)
	if res.Store != nil {
		processor.WithPruner(res.Store)
	}
	if err := processor.Start(gctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	users := func(ctx context.Context) ([]string, error) {
		uids := slices.Clone(cfg.ExportUsers)
		pending, err := res.Outbox.Users(ctx)
		if err != nil {
			return nil, err
		}
		for _, uid := range pending {
			if !slices.Contains(uids, uid) {
				uids = append(uids, uid)
			}
		}
		return uids, nil
	}

	// Snapshot refresh from change events, with a periodic backstop
	refresher := worker.NewSnapshotRefresher(res.Backend, res.Snapshots, logger)
	if res.AMQP != nil {
		g.Go(func() error {
			err := res.AMQP.ConsumeChanges(gctx, refresher.HandleChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP change consumption - no broker configured")
	}
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval * 10)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				uids, err := users(gctx)
				if err != nil {
					logger.Error("Listing users for snapshot refresh failed", log.FieldError, err)
					continue
				}
				if err := refresher.RefreshUsers(gctx, uids); err != nil {
					logger.Warn("Periodic snapshot refresh incomplete", log.FieldError, err)
				}
			}
		}
	})

	// Weekly spreadsheet export
	var scheduler *worker.ExportScheduler
	if cfg.GoogleSpreadsheetID != "" && cfg.ExportSchedule != "" {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		var exportLog services.ExportLog
		if res.Store != nil {
			exportLog = res.Store
		}
		exporter := services.NewWeeklyExporter(res.Backend, res.Snapshots, sheetsClient, exportLog, policy.HourlyRate, logger).
			WithLocation(policy.Location)
		scheduler, err = worker.NewExportScheduler(exporter, users, cfg.ExportSchedule, policy.Location, logger)
		if err != nil {
			logger.Error("Failed to schedule weekly export", log.FieldError, err)
			os.Exit(1)
		}
		scheduler.Start(gctx)
	} else {
		logger.Info("Weekly export disabled - set GOOGLE_SPREADSHEET_ID and EXPORT_SCHEDULE to enable")
	}

	err = g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	if stopErr := processor.Stop(stopCtx); stopErr != nil {
		logger.Error("Sync processor stop error", log.FieldError, stopErr)
	}
	if err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
