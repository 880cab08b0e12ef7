package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/pylab/internal/app"
	"github.com/felixgeelhaar/pylab/internal/config"
	"github.com/felixgeelhaar/pylab/internal/daemon"
	"github.com/felixgeelhaar/pylab/internal/logging"
)

const (
	pidFileName = "pylabd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Ensure ~/.pylab directory exists
	pylabDir, err := config.EnsurePylabDir()
	if err != nil {
		return fmt.Errorf("ensure pylab dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, err := logging.Setup(pylabDir, "pylabd", logging.ParseLevel(cfg.Daemon.LogLevel), os.Stderr)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()

	pidPath := filepath.Join(pylabDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, app.Options{
		Config:  cfg,
		DataDir: pylabDir,
		Logger:  slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	server := daemon.NewServer(daemon.ServerConfig{
		Addr:       cfg.Daemon.Address(),
		Catalog:    a.Catalog,
		Progress:   a.Progress,
		Sessions:   a.Sessions,
		Runner:     a.ExecutorName,
		OnShutdown: a.Close,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		a.Close()
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}
