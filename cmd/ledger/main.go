// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

// Command ledger starts the Causeway ledger API server.
//
// The ledger records immutable state nodes and transition edges into a
// content-addressed store, captures per-branch epochs into durable
// history, and answers replay, verification, and retention queries.
//
// Usage:
//
//	go run ./cmd/ledger
//	go run ./cmd/ledger -port 9090 -data-dir /var/lib/causeway
//	go run ./cmd/ledger -in-memory -debug
//
// With a spool directory (epoch documents dropped there are imported):
//
//	go run ./cmd/ledger -spool-dir /var/spool/causeway
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8090/v1/ledger/health
//
//	# Record a node
//	curl -X POST http://localhost:8090/v1/nodes \
//	  -H "Content-Type: application/json" \
//	  -d '{"type_name": "observation", "payload": "aGVsbG8="}'
//
//	# Capture an epoch
//	curl -X POST http://localhost:8090/v1/epochs
//
//	# Verify store integrity
//	curl http://localhost:8090/v1/dag/verify | jq
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/NoeticSystems/Causeway/pkg/logging"
	"github.com/NoeticSystems/Causeway/services/ledger"
	"github.com/NoeticSystems/Causeway/services/ledger/archive"
	badgerstore "github.com/NoeticSystems/Causeway/services/ledger/storage/badger"
	"github.com/NoeticSystems/Causeway/services/ledger/telemetry"
)

func main() {
	port := flag.Int("port", 8090, "Port to listen on")
	dataDir := flag.String("data-dir", "~/.causeway/ledger", "BadgerDB directory for epoch history")
	inMemory := flag.Bool("in-memory", false, "Keep epoch history in memory only (no BadgerDB files)")
	archiveDir := flag.String("archive-dir", "", "Write every created epoch to this directory as an epoch document")
	spoolDir := flag.String("spool-dir", "", "Watch this directory and import epoch documents dropped into it")
	logDir := flag.String("log-dir", "~/.causeway/logs", "Directory for JSON log files (empty disables file logging)")
	logLevel := flag.String("log-level", "info", "Minimum log level: debug, info, warn, error")
	debug := flag.Bool("debug", false, "Enable debug mode (gin request logging, debug level)")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
		os.Exit(2)
	}
	if *debug {
		level = logging.LevelDebug
	}

	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  *logDir,
		Service: "ledger",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if err := run(*port, *dataDir, *inMemory, *archiveDir, *spoolDir, *debug); err != nil {
		slog.Error("Ledger server failed", "error", err)
		os.Exit(1)
	}
}

// run composes the service and blocks until shutdown. Split from main
// so every deferred cleanup runs before os.Exit.
func run(port int, dataDir string, inMemory bool, archiveDir, spoolDir string, debug bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first: everything below emits spans and metrics.
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.ServiceVersion = ledger.ServiceVersion
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown incomplete", "error", err)
		}
	}()

	// Epoch history store. The in-memory mode keeps the same badger
	// code path, so restarts are the only difference.
	storeCfg := badgerstore.DefaultConfig()
	if inMemory {
		storeCfg = badgerstore.InMemoryConfig()
	} else {
		storeCfg.Path = expandHome(dataDir)
	}
	storeCfg.Logger = slog.Default()
	epochStore, err := badgerstore.OpenEpochStore(storeCfg)
	if err != nil {
		return fmt.Errorf("epoch store: %w", err)
	}
	defer func() {
		if err := epochStore.Close(); err != nil {
			slog.Warn("Epoch store close failed", "error", err)
		}
	}()

	history, err := epochStore.LoadEpochs(ctx)
	if err != nil {
		return fmt.Errorf("load epoch history: %w", err)
	}
	slog.Info("Epoch history loaded", "epochs", len(history), "in_memory", inMemory)

	svcOpts := []ledger.Option{
		ledger.WithEpochStore(epochStore),
		ledger.WithLogger(slog.Default()),
	}
	if len(history) > 0 {
		svcOpts = append(svcOpts, ledger.WithEpochHistory(history))
	}
	if archiveDir != "" {
		svcOpts = append(svcOpts, ledger.WithArchiveDir(expandHome(archiveDir)))
	}

	svc, err := ledger.NewService(ledger.DefaultServiceConfig(), svcOpts...)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	defer svc.Close()

	// Spool watcher: epoch documents dropped into the spool are
	// imported, which is how a standby instance follows a primary.
	if spoolDir != "" {
		spoolDir = expandHome(spoolDir)
		importer, err := archive.NewImporter(svc, slog.Default())
		if err != nil {
			return fmt.Errorf("spool importer: %w", err)
		}
		watcher, err := archive.NewSpoolWatcher(spoolDir, importer, nil)
		if err != nil {
			return fmt.Errorf("spool watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("spool watcher start: %w", err)
		}
		defer watcher.Stop()
		slog.Info("Spool watcher started", "dir", spoolDir)
	}

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(telemetryCfg.ServiceName))
	if debug {
		router.Use(gin.Logger())
	}

	handlers := ledger.NewHandlers(svc)
	v1 := router.Group("/v1")
	ledger.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	printBanner(port, dataDir, inMemory, spoolDir)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting ledger server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down ledger server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// expandHome expands a leading ~ in path flags.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func printBanner(port int, dataDir string, inMemory bool, spoolDir string) {
	storage := dataDir
	if inMemory {
		storage = "in-memory (history lost on restart)"
	}
	spool := spoolDir
	if spool == "" {
		spool = "disabled"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                      CAUSEWAY LEDGER SERVER                       ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Content-addressed transition store with epoch snapshotting.      ║
║  Epoch storage: %-50s ║
║  Spool import:  %-50s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%-5d/v1/ledger/health                │  ║
║  │                                                             │  ║
║  │ # Record a node                                             │  ║
║  │ curl -X POST http://localhost:%-5d/v1/nodes \              │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"type_name": "observation", "payload": "aGk="}'      │  ║
║  │                                                             │  ║
║  │ # Capture an epoch                                          │  ║
║  │ curl -X POST http://localhost:%-5d/v1/epochs               │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Store: /nodes, /edges, /dag/verify, /dag/replay/:id          ║
║  ├── Branches: /branches, /branches/:name/{events,vectors}        ║
║  ├── Epochs: /epochs, /latest, /:n, /:n/export, /import, /watch   ║
║  ├── Projection: /snapshots, /projection/metrics                  ║
║  ├── Retention: /retention/evaluate                               ║
║  └── Ops: /v1/ledger/health, /metrics (Prometheus)                ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, storage, spool, port, port, port)
}
