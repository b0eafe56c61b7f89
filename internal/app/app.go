// Package app wires configuration to adapters, use cases and lifecycle
// orchestration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"AnalystIntel/internal/config"
	"AnalystIntel/internal/domain"
	"AnalystIntel/internal/handler/api"
	"AnalystIntel/internal/infrastructure/feed"
	"AnalystIntel/internal/infrastructure/llm"
	"AnalystIntel/internal/infrastructure/scheduler"
	"AnalystIntel/internal/infrastructure/storage"
	"AnalystIntel/internal/infrastructure/universe"
	"AnalystIntel/internal/logging"
	"AnalystIntel/internal/usecase"
)

// Application holds the assembled object graph.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	store     *storage.PostgresStore
	pipeline  *usecase.Pipeline
	runner    *usecase.Runner
	scheduler *usecase.Scheduler
	server    *api.Server
}

// New builds a runnable application instance from configuration.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store := storage.NewPostgresStore(db)

	tracked, err := universe.Load(cfg.Universe)
	if err != nil {
		db.Close()
		return nil, &domain.ConfigError{Field: "universe", Msg: err.Error()}
	}

	source := feed.NewGoogleNewsSource(cfg.Feed, nil, tracked.CompanyName,
		baseLogger.With("component", "feed"))

	extractor, err := llm.NewChatExtractor(cfg.Extractor,
		baseLogger.With("component", "extractor"))
	if err != nil {
		db.Close()
		return nil, err
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Universe:  tracked,
		Source:    source,
		Extractor: extractor,
		Store:     store,
		Dedup: usecase.NewDedupIndex(store, cfg.Dedup.SimilarityThreshold,
			cfg.Dedup.FuzzyScanLimit, baseLogger.With("component", "dedup")),
		Logger: baseLogger.With("component", "pipeline"),
	})

	runner := usecase.NewRunner(pipeline, baseLogger.With("component", "runner"))

	cronDriver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	sched := usecase.NewScheduler(cronDriver, pipeline, baseLogger.With("component", "scheduler"))

	server := api.NewServer(store, runner, baseLogger.With("component", "api"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		store:     store,
		pipeline:  pipeline,
		runner:    runner,
		scheduler: sched,
		server:    server,
	}, nil
}

// RunOnce performs a single pipeline execution for the one-shot mode. The
// returned summary is valid even when err is non-nil (aborted run).
func (a *Application) RunOnce(ctx context.Context) (domain.RunSummary, error) {
	if err := a.store.Ping(ctx); err != nil {
		return domain.RunSummary{}, err
	}
	return a.pipeline.Run(ctx)
}

// Serve starts the recurring scheduler and the HTTP API, then blocks until
// the context is cancelled and shuts both down.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return err
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start(a.cfg.Server.Addr)
	}()
	a.logger.Info("serving", "addr", a.cfg.Server.Addr, "cron", a.cfg.Scheduler.CronExpression)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server shutdown", "error", err)
	}
	return nil
}

// Close releases held resources.
func (a *Application) Close() error {
	return a.db.Close()
}
