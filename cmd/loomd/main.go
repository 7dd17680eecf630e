// Command loomd is the Loom task server daemon.
// It wires the configured store, the workflow engine, and the HTTP server,
// then runs until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loomtask/loom/config"
	"github.com/loomtask/loom/engine"
	"github.com/loomtask/loom/events"
	"github.com/loomtask/loom/internal/version"
	"github.com/loomtask/loom/server"
	"github.com/loomtask/loom/task"
)

var configPath = flag.String("config", "loom.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	logger.Info("starting loomd",
		"version", version.Version,
		"commit", version.Commit,
		"driver", cfg.Storage.Driver,
	)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	bus := events.NewInMemoryBus()
	eng := engine.New(store,
		engine.WithLogger(logger),
		engine.WithBus(bus),
	)

	srv := server.New(*cfg, version.Version, logger)
	srv.SetEngine(eng)
	srv.SetBus(bus)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("Loom server running on http://localhost%s\n", cfg.Server.Addr)
	fmt.Printf("Version: %s (%s)\n", version.Version, version.Commit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	fmt.Println("Shutdown complete")
}

// openStore builds the task store named by the config. The returned closer
// is safe to call once the server is fully stopped.
func openStore(cfg *config.Config) (task.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "", "sqlite":
		store, err := task.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { closeQuiet(store) }, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := task.NewPgStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, func() { closeQuiet(store) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func closeQuiet(c io.Closer) {
	_ = c.Close()
}
