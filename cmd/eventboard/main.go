// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/olegiv/eventboard/internal/config"
	"github.com/olegiv/eventboard/internal/geoip"
	"github.com/olegiv/eventboard/internal/handler"
	"github.com/olegiv/eventboard/internal/imaging"
	"github.com/olegiv/eventboard/internal/logging"
	"github.com/olegiv/eventboard/internal/metrics"
	"github.com/olegiv/eventboard/internal/middleware"
	"github.com/olegiv/eventboard/internal/notify"
	"github.com/olegiv/eventboard/internal/scheduler"
	"github.com/olegiv/eventboard/internal/security"
	"github.com/olegiv/eventboard/internal/service"
	"github.com/olegiv/eventboard/internal/session"
	"github.com/olegiv/eventboard/internal/storage"
	"github.com/olegiv/eventboard/internal/store"
	"github.com/olegiv/eventboard/internal/version"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "eventboard - school event board\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_SESSION_SECRET        Session and CSRF key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_DB_PATH               SQLite database path (default: ./data/eventboard.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_SERVER_PORT           Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_ENV                   Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_BASE_URL              Public URL used in password reset links\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_UPLOADS_DIR           Event image directory (default: ./uploads)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_REDIS_URL             Redis URL for shared rate limit counters (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_SESSION_IDLE_TIMEOUT  Idle session timeout (default: 30m)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  EVENTBOARD_DO_SEED               Create the default admin on startup\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("eventboard %s\n", version.Get())
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	slog.Info("starting eventboard", "version", version.Get().Version, "commit", version.Get().GitCommit)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Mirror WARN and ERROR records into the audit log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewAuditLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("audit log integration enabled", "min_level", "warn")

	ctx := context.Background()
	if cfg.DoSeed {
		seed := store.AdminSeed{Email: cfg.AdminEmail, Name: cfg.AdminName, Password: cfg.AdminPassword}
		if err := store.Seed(ctx, db, seed); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	m := metrics.New()

	// Rate limit counters: Redis when configured, memory otherwise
	var backend security.Backend = security.NewMemoryBackend(time.Now)
	if cfg.UseRedisLimiter() {
		rb, err := security.NewRedisBackend(security.RedisOptions{URL: cfg.RedisURL, Prefix: cfg.RedisPrefix})
		if err != nil {
			slog.Warn("redis unavailable, rate limit counters kept in memory", "error", err)
		} else {
			defer func() { _ = rb.Close() }()
			backend = rb
			slog.Info("rate limiter initialized", "backend", "redis")
		}
	}
	limiter := security.NewRateLimiter(backend, m)

	sessionManager := session.New(db, cfg.IsDevelopment())
	sessions := session.NewStore(sessionManager,
		session.WithIdleTimeout(cfg.SessionIdleTimeout),
		session.WithAttemptResetter(limiter),
	)
	slog.Info("session manager initialized", "idle_timeout", cfg.SessionIdleTimeout)

	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}
	normalizer := imaging.NewNormalizer()
	normalizer.MaxWidth, normalizer.MaxHeight = cfg.ImageMaxDimension, cfg.ImageMaxDimension
	files, err := storage.NewLocal(cfg.UploadsDir, cfg.MaxUploadBytes(), storage.WithTransformer(normalizer))
	if err != nil {
		return fmt.Errorf("initializing uploads: %w", err)
	}

	// Background delivery of notifications and email
	dispatcher := notify.NewAsyncDispatcher(db, notify.LogMailer{Logger: logger}, logger, m, notify.Config{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	validate := validator.New(validator.WithRequiredStructEnabled())
	audit := service.NewAuditService(db)
	var geo *geoip.Lookup
	if cfg.GeoIPEnabled() {
		if geo, err = geoip.Open(cfg.GeoIPDBPath); err != nil {
			slog.Warn("geoip disabled", "error", err)
		} else {
			defer func() { _ = geo.Close() }()
			audit.SetLocator(geo)
			slog.Info("geoip enabled", "path", cfg.GeoIPDBPath)
		}
	}
	deps := service.Deps{
		DB:        db,
		Notifier:  dispatcher,
		Audit:     audit,
		Metrics:   m,
		Logger:    logger,
		Validator: validate,
	}
	accounts := service.NewAccountService(deps, cfg.ResetBaseURL())
	events := service.NewEventService(deps, files)
	inbox := notify.NewInbox(db)
	throttle := middleware.NewIPThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst)

	sched := scheduler.New(logger)
	if err := sched.RegisterHousekeeping(scheduler.Housekeeping{
		Inbox:          inbox,
		Accounts:       accounts,
		Limiter:        limiter,
		Throttle:       throttle,
		Audit:          audit,
		AuditRetention: cfg.AuditRetention(),
		GeoIP:          geo,
	}); err != nil {
		return fmt.Errorf("registering housekeeping jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	router := handler.NewRouter(handler.RouterConfig{
		IsDev:      cfg.IsDevelopment(),
		TrustProxy: cfg.TrustProxy,
		CSRF:       middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment()),
		Throttle:   throttle,
		UploadsDir: cfg.UploadsDir,
		MaxUpload:  cfg.MaxUploadBytes(),
	}, handler.Services{
		Sessions:  sessions,
		CSRF:      security.NewCSRFGuard(sessionManager),
		Limiter:   limiter,
		Accounts:  accounts,
		Events:    events,
		Inbox:     inbox,
		Audit:     audit,
		Metrics:   m,
		Validator: validate,
		Health:    handler.NewHealthHandler(db, cfg.UploadsDir),
		Scheduler: sched,
	})

	// Create server with appropriate timeouts
	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Image uploads
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
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

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
