package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"fleemy/internal/cli"
	"fleemy/internal/devapi"
	"fleemy/internal/log"
	"fleemy/internal/planning/memory"
)

// fleemy-devapi serves an in-memory planning API so the server can run with
// DATA_BACKEND=remote without the hosted service.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	policy, err := cfg.Policy()
	if err != nil {
		logger.Error("Invalid planning policy", log.FieldError, err)
		os.Exit(1)
	}

	backend := memory.NewBackend()
	backend.SetHourlyRate(policy.HourlyRate)

	var origins []string
	for _, o := range strings.Split(os.Getenv("DEVAPI_ALLOW_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.DevAPIPort,
		Handler:           devapi.NewRouter(backend, devapi.Config{Token: cfg.PlanningAPIToken, AllowOrigins: origins}, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Dev API shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting fleemy dev API", "port", cfg.DevAPIPort, "auth", cfg.PlanningAPIToken != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Dev API error", log.FieldError, err, "port", cfg.DevAPIPort)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
