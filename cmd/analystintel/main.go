package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"AnalystIntel/internal/app"
	"AnalystIntel/internal/config"
	"AnalystIntel/internal/domain"
	"AnalystIntel/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("error", "text").Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "run":
		// One-shot mode for external schedulers. Exit code 0 covers both
		// Completed and CompletedWithErrors; only an aborted run fails.
		summary, err := application.RunOnce(ctx)
		if err != nil {
			logger.Error("run aborted", "error", err)
			os.Exit(1)
		}
		if summary.State == domain.RunCompletedWithErrors {
			logger.Warn("run finished with errors",
				"fetch_failures", summary.FetchFailures,
				"extraction_failures", summary.ExtractionFailures)
		}
	case "serve":
		if err := application.Serve(ctx); err != nil {
			logger.Error("application stopped", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("unknown mode", "mode", mode)
		os.Exit(2)
	}
}
