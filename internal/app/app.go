// Package app wires the catalog, storage, executor and services from a
// LocalConfig. The daemon, the MCP server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/pylab/internal/config"
	"github.com/felixgeelhaar/pylab/internal/mission"
	"github.com/felixgeelhaar/pylab/internal/progress"
	"github.com/felixgeelhaar/pylab/internal/runner"
	"github.com/felixgeelhaar/pylab/internal/session"
	"github.com/felixgeelhaar/pylab/internal/storage/local"
	"github.com/felixgeelhaar/pylab/internal/storage/sqlite"
)

// DatabaseFile is the SQLite file created under the storage path
const DatabaseFile = "pylab.db"

// Options configures New
type Options struct {
	Config *config.LocalConfig
	// DataDir holds sessions and progress when Config.Storage.Path is empty
	DataDir string
	// Executor overrides the configured executor (tests)
	Executor runner.Executor
	Logger   *slog.Logger
}

// App holds the wired services
type App struct {
	Config       *config.LocalConfig
	Catalog      *mission.Registry
	Progress     *progress.Service
	Sessions     *session.Service
	Executor     runner.Executor
	ExecutorName string

	watcher *mission.Watcher
	closers []func() error
	logger  *slog.Logger
}

// New builds an App. Close releases the watcher, the database and the
// executor.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultLocalConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, logger: logger}

	if err := a.setupCatalog(ctx); err != nil {
		a.Close()
		return nil, err
	}

	dataDir := cfg.Storage.Path
	if dataDir == "" {
		dataDir = opts.DataDir
	}
	if dataDir == "" {
		a.Close()
		return nil, errors.New("no data directory configured")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	base, err := local.NewStore(dataDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create local store: %w", err)
	}

	if err := a.setupProgress(ctx, base); err != nil {
		a.Close()
		return nil, err
	}

	if opts.Executor != nil {
		a.Executor, a.ExecutorName = opts.Executor, "custom"
	} else {
		a.setupExecutor()
	}

	a.Sessions = session.NewService(session.NewStoreFrom(base), a.Catalog, a.Executor, a.Progress, logger)

	logger.Debug("app ready",
		"missions", a.Catalog.Stats().MissionCount,
		"storage", cfg.Storage.Backend,
		"executor", a.ExecutorName,
		"data_dir", dataDir)
	return a, nil
}

func (a *App) setupCatalog(ctx context.Context) error {
	path := a.Config.Missions.Path
	if path == "" {
		registry, err := mission.NewBuiltinRegistry()
		if err != nil {
			return fmt.Errorf("load built-in missions: %w", err)
		}
		a.Catalog = registry
		return nil
	}

	registry := mission.NewRegistry(mission.NewLoader(os.DirFS(path)))
	if err := registry.Load(); err != nil {
		return fmt.Errorf("load missions from %s: %w", path, err)
	}
	a.Catalog = registry

	if a.Config.Missions.Watch {
		w := mission.NewWatcher(path, registry, a.logger)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch missions: %w", err)
		}
		a.watcher = w
		a.closers = append(a.closers, func() error {
			w.Stop()
			return nil
		})
	}
	return nil
}

func (a *App) setupProgress(ctx context.Context, base *local.Store) error {
	opts := []progress.Option{progress.WithLogger(a.logger.With("component", "progress"))}

	var store progress.Store
	switch a.Config.Storage.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(filepath.Join(base.Path(), DatabaseFile), a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store = sqlite.NewProgressStore(db)
		opts = append(opts, progress.WithAttemptLog(sqlite.NewAttemptStore(db)))
	default:
		store = local.NewProgressStore(base)
	}

	a.Progress = progress.NewService(store, a.Catalog, opts...)
	return nil
}

func (a *App) setupExecutor() {
	rc := a.Config.Runner
	timeout := time.Duration(rc.TimeoutSeconds) * time.Second

	var executor runner.Executor
	name := config.ExecutorLocal

	if rc.Executor == config.ExecutorDocker {
		docker, err := runner.NewDockerExecutor(runner.DockerConfig{
			Image:      rc.Docker.Image,
			MemoryMB:   rc.Docker.MemoryMB,
			CPULimit:   rc.Docker.CPULimit,
			NetworkOff: rc.Docker.NetworkOff,
			Timeout:    timeout,
			Logger:     a.logger,
		})
		if err != nil {
			a.logger.Warn("docker executor not available, using local executor", "error", err)
		} else {
			executor, name = docker, config.ExecutorDocker
			a.closers = append(a.closers, docker.Close)
		}
	}

	if executor == nil {
		executor = runner.NewLocalExecutor(runner.Config{
			Python:  rc.Python,
			Timeout: timeout,
		})
	}

	a.Executor = runner.NewResilientExecutor(executor, runner.ResilientConfig{
		MaxConcurrent: rc.MaxConcurrent,
		Logger:        a.logger,
	})
	a.ExecutorName = name
}

// Watcher returns the catalog watcher, or nil when hot reload is off
func (a *App) Watcher() *mission.Watcher {
	return a.watcher
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
