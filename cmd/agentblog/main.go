// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

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
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/agentblog/internal/auth"
	"github.com/olegiv/agentblog/internal/config"
	"github.com/olegiv/agentblog/internal/kv"
	"github.com/olegiv/agentblog/internal/logging"
	"github.com/olegiv/agentblog/internal/model"
	"github.com/olegiv/agentblog/internal/post"
	"github.com/olegiv/agentblog/internal/ratelimit"
	"github.com/olegiv/agentblog/internal/scheduler"
	"github.com/olegiv/agentblog/internal/service"
	"github.com/olegiv/agentblog/internal/version"
	"github.com/olegiv/agentblog/internal/webhook"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	issueKey := flag.String("issue-key", "", "Issue an agent API key with this name, print it and exit")
	scope := flag.String("scope", string(model.ScopePublish), "Scope of the issued key: admin|publish|draft-only|read-only")
	rateLimit := flag.Int("rate-limit", 0, "Posts per hour for the issued key (0 uses AGENTBLOG_DEFAULT_RATE_LIMIT)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "agentblog - content store and write API for agent-authored blogs\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_STORE_BACKEND     memory|redis|sqlite (default: memory)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_REDIS_URL         Redis URL (required for redis)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_SQLITE_PATH       SQLite database path (default: ./data/agentblog.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_SITE_URL          Public base URL used in post links\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_WEBHOOK_URL       Endpoint notified about post changes (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_WEBHOOK_SECRET    HMAC-SHA256 signing secret (optional, min 16 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_INDEX_MODE        direct|serialized (default: direct)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  AGENTBLOG_RECONCILE_SCHEDULE  Cron spec for index rebuilds, or off (default: */15 * * * *)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("agentblog %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	var err error
	if *issueKey != "" {
		err = runIssueKey(*issueKey, model.Scope(*scope), *rateLimit)
	} else {
		err = run()
	}
	if err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// setup loads configuration, installs the default logger and opens the store.
func setup() (*config.Config, *slog.Logger, kv.Store, error) {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)

	store, err := kv.New(cfg.StoreConfig())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}
	logger.Info("store ready", "backend", cfg.StoreBackend)

	return cfg, logger, store, nil
}

func runIssueKey(name string, scope model.Scope, rateLimit int) error {
	if !scope.Valid() {
		return fmt.Errorf("unknown scope %q", scope)
	}

	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if rateLimit <= 0 {
		rateLimit = cfg.DefaultRateLimit
	}
	if cfg.StoreBackend == kv.BackendMemory {
		logger.Warn("issuing a key into the memory store; it is lost when this process exits")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	raw, key, err := auth.NewService(store, logger).Issue(ctx, name, scope, rateLimit)
	if err != nil {
		return fmt.Errorf("issuing key: %w", err)
	}

	_, _ = fmt.Fprintf(os.Stderr, "Issued key %q (prefix %s, scope %s). Store it now; it cannot be shown again.\n",
		key.Name, key.KeyPrefix, key.Scope)
	_, _ = fmt.Println(raw)
	return nil
}

func run() error {
	cfg, logger, store, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}()

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	ctx := context.Background()

	site := service.NewSiteService(store, cfg.SiteDefaults(), logger)
	if _, err := site.Seed(ctx); err != nil {
		logger.Warn("failed to seed site config, serving defaults", "error", err)
	}

	// Webhook dispatcher
	dispatcher := webhook.NewDispatcher(cfg.WebhookConfig(), logger)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	if dispatcher.Enabled() {
		logger.Info("webhook dispatcher started", "workers", cfg.WebhookWorkers)
	}

	// Posts and index
	posts := post.NewStore(store, logger)
	direct := post.NewIndex(store, posts, logger)
	var index post.Indexer = direct
	if cfg.Serialized() {
		serial := post.NewSerialIndex(direct, cfg.IndexQueueSize)
		defer serial.Close()
		index = serial
	}
	logger.Info("post index ready", "mode", cfg.IndexMode)

	creds := auth.NewService(store, logger)
	defer creds.Wait()

	postService := service.NewPostService(service.Deps{
		Posts:    posts,
		Index:    index,
		Limiter:  ratelimit.New(store, cfg.DefaultRateLimit),
		Site:     site,
		Notifier: dispatcher,
		Logger:   logger,
	})

	// Maintenance jobs
	sched := scheduler.New(logger, 0)
	if cfg.ReconcileEnabled() {
		if err := scheduler.RegisterMaintenance(sched, store, index, cfg.ReconcileSchedule, logger); err != nil {
			return fmt.Errorf("registering maintenance jobs: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	r := newRouter(routerDeps{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		authn:   creds,
		posts:   postService,
		version: versionInfo,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
