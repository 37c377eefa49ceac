// ClaimGuard - Insurance claim intake with explainable fraud scoring.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

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
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/claimguard/internal/ai"
	"github.com/opensource-finance/claimguard/internal/api"
	"github.com/opensource-finance/claimguard/internal/bus"
	"github.com/opensource-finance/claimguard/internal/cache"
	"github.com/opensource-finance/claimguard/internal/config"
	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/report"
	"github.com/opensource-finance/claimguard/internal/repository"
	"github.com/opensource-finance/claimguard/internal/rules"
	"github.com/opensource-finance/claimguard/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides CLAIMGUARD_CONFIG)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting claimguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"storage", cfg.Storage.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"worker", cfg.Worker.Enabled,
		"ai_configured", cfg.AI.APIKey != "",
	)
	if cfg.Tracing.Enabled {
		slog.Info("tracing enabled; spans are exported by the registered OpenTelemetry provider",
			"service_name", cfg.Tracing.ServiceName)
	}

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

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize claim storage
	store, err := newStore(ctx, cfg.Storage, cacheImpl)
	if err != nil {
		slog.Error("failed to initialize claim storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("claim storage initialized", "driver", cfg.Storage.Driver, "session_ttl", cfg.Storage.SessionTTL)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize fraud engine
	engine, err := rules.NewEngine(cfg.Scoring)
	if err != nil {
		slog.Error("failed to initialize fraud engine", "error", err)
		os.Exit(1)
	}
	slog.Info("fraud engine initialized",
		"version", rules.Version,
		"expression_rules", len(cfg.Scoring.ExpressionRules),
		"red_threshold", cfg.Scoring.RedThreshold,
		"yellow_threshold", cfg.Scoring.YellowThreshold,
	)

	// AI collaborators degrade to "unavailable" without an API key.
	collaborators := ai.New(cfg.AI)

	var builderOpts []report.Option
	if cfg.AI.ExplanationTTL > 0 {
		builderOpts = append(builderOpts, report.WithExplanationCache(cacheImpl, cfg.AI.ExplanationTTL))
	}
	builder := report.NewBuilder(engine, collaborators.Explainer, builderOpts...)

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, store, builder)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Dependencies{
		Store:             store,
		Cache:             cacheImpl,
		Bus:               busImpl,
		Builder:           builder,
		Collaborators:     collaborators,
		Version:           Version,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
		Burst:             cfg.AI.Burst,
	})

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("claimguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Drain the worker after the server stops accepting submissions.
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	slog.Info("claimguard shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newStore selects the claim store. memory and redis keep claims in the
// cache layer under the session TTL; sqlite and postgres persist them and
// purge expired sessions in the background.
func newStore(ctx context.Context, cfg domain.StorageConfig, c domain.Cache) (domain.ClaimStore, error) {
	if !cfg.SQL() {
		store, err := cache.NewClaimStore(c, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	repo, err := repository.New(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.PurgeInterval > 0 {
		go purgeLoop(ctx, repo, cfg.PurgeInterval)
	}
	return repo, nil
}

func purgeLoop(ctx context.Context, repo *repository.SQLRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("failed to purge expired claims", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired claims", "count", n)
			}
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ClaimGuard")
	fmt.Println("  Insurance claim intake and fraud scoring")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Storage:  %s\n", cfg.Storage.Driver)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints (X-Session-ID required unless noted):")
	fmt.Println("    POST   /claims                  - Submit a claim")
	fmt.Println("    GET    /claims                  - List claims in the session")
	fmt.Println("    GET    /claims/{id}             - Get a claim")
	fmt.Println("    DELETE /claims/{id}             - Delete a claim")
	fmt.Println("    GET    /claims/{id}/assessment  - Fraud assessment")
	fmt.Println("    GET    /claims/{id}/report      - Assessment with explanation")
	fmt.Println("    POST   /damage/analyze          - Analyze damage photos")
	fmt.Println("    POST   /chat/guidance           - Claim filing assistant")
	fmt.Println("    POST   /chat/status             - Claim status assistant")
	fmt.Println("    POST   /transcribe              - Transcribe a voice note")
	fmt.Println("    GET    /health                  - Health check (no session)")
	fmt.Println("    GET    /metrics                 - Prometheus metrics (no session)")
	fmt.Println()
}
