package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rowriver/internal/config"
	"rowriver/internal/etl/sources"
	"rowriver/internal/service"
	"rowriver/internal/storage"
)

// App owns the process-wide resources: the state database, the document
// store and the river service built from a loaded config.
type App struct {
	cfg *config.Config
	log *zap.Logger

	db     *storage.DB
	jobs   *storage.JobStore
	docs   *storage.DocumentStore
	rivers *service.RiverService
	conns  *service.ConnectionService
}

// New creates a new App for cfg.
func New(cfg *config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, log: logger}
}

// Startup opens storage, wires sources and sinks to the declared connections
// and registers the rivers of the config file.
func (a *App) Startup(ctx context.Context) error {
	db, err := storage.New(a.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	a.db = db
	a.jobs = storage.NewJobStore(db)
	a.docs = storage.NewDocumentStore(db)

	// Database sources resolve connections by name.
	sources.SetConnections(a.cfg)

	a.conns = service.NewConnectionService(a.cfg.Connections)
	engine := service.NewEngine(a.docs, a.cfg, a.log)
	a.rivers = service.NewRiverService(a.jobs, engine, service.LogEmitter{Log: a.log}, a.log)

	if err := a.rivers.SyncConfigJobs(a.cfg.Jobs()); err != nil {
		return fmt.Errorf("register rivers: %w", err)
	}
	a.log.Info("rivers registered",
		zap.Int("rivers", len(a.cfg.Rivers)),
		zap.Int("connections", len(a.cfg.Connections)),
		zap.String("storage", a.cfg.Storage.Path),
	)
	return nil
}

// Shutdown stops the triggers, waits for in-flight runs and closes storage.
func (a *App) Shutdown(ctx context.Context) {
	if a.rivers != nil {
		a.rivers.Stop()
		a.rivers.WaitRunning(ctx)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("close state database", zap.Error(err))
		}
	}
}

// Rivers exposes the river service.
func (a *App) Rivers() *service.RiverService {
	return a.rivers
}
