// Kestrel - Transaction screening for AML casework.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/archive"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/ops"
	"github.com/opensource-finance/kestrel/internal/screening"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := domain.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		os.Exit(1)
	}

	initLogger(cfg.Logging)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"archive", cfg.Archive.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"tracing", cfg.Tracing.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Archive
	arch, err := archive.New(cfg.Archive)
	if err != nil {
		slog.Error("failed to initialize archive", "error", err)
		os.Exit(1)
	}
	defer arch.Close()
	slog.Info("archive initialized", "driver", cfg.Archive.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize metrics
	collector := metrics.NewCollector()

	// Initialize screening processor
	processor := screening.NewProcessor(cfg.Screening)
	processor.Cache = cacheImpl
	processor.Metrics = collector
	if cfg.Ingest.Filter != "" {
		normalizer, err := ingest.NewNormalizerWithFilter(cfg.Ingest.Filter)
		if err != nil {
			slog.Error("invalid ingest filter", "error", err)
			os.Exit(1)
		}
		processor.Normalizer = normalizer
		slog.Info("ingest filter active", "expression", cfg.Ingest.Filter)
	}
	slog.Info("screening processor initialized",
		"max_workers", cfg.Screening.MaxWorkers,
		"report_cache_ttl_seconds", cfg.Screening.ReportCacheTTLSeconds,
	)

	// Start case worker
	caseWorker := worker.NewWorker(busImpl, processor, arch, cacheImpl)
	caseWorker.Metrics = collector
	if err := caseWorker.Start(worker.Config{Workers: cfg.Screening.CaseWorkers}); err != nil {
		slog.Error("failed to start case worker", "error", err)
		os.Exit(1)
	}

	// Initialize ops server
	srv := ops.NewServer(cfg.Ops, ops.Components{
		Archive: arch,
		Cache:   cacheImpl,
		Bus:     busImpl,
	}, collector.Handler(), Version)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Ops.Host,
		"port", cfg.Ops.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the case worker first so in-flight cases drain
	if err := caseWorker.Stop(); err != nil {
		slog.Error("failed to stop case worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("ops server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func initLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║      Transaction Screening Engine         ║")
	fmt.Println("  ║     Hovering over every ledger.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Archive:  %s\n", cfg.Archive.Driver)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Ops.Host, cfg.Ops.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET /health        - Component health")
	fmt.Println("    GET /ready         - Readiness probe")
	fmt.Println("    GET /metrics       - Prometheus metrics")
	fmt.Println("    GET /reports       - List archived reports")
	fmt.Println("    GET /reports/{id}  - Fetch an archived report")
	fmt.Println()
	fmt.Println("  Topics:")
	fmt.Printf("    %s   - Submit a case for screening\n", domain.TopicCaseSubmitted)
	fmt.Printf("    %s - Finished screening reports\n", domain.TopicScreeningReport)
	fmt.Println()
}
