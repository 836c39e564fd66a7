// Package main is the entry point for the Nourish webhook processor HTTP
// server, used for local development and container deployments.
//
// It loads configuration, wires the user store (PostgreSQL, or in-memory
// when no DATABASE_URL is set in local mode), builds the billing pipeline
// (reconciler + janitor), and serves the webhook endpoint behind the core
// chassis.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"nourish/internal/api/handlers"
	"nourish/internal/billing"
	"nourish/internal/config"
	"nourish/internal/core"
	"nourish/internal/db"
	"nourish/internal/observability"
	"nourish/internal/ops"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("nourish webhook processor starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	store, pool, err := newUserStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating user store: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	var notifier billing.CleanupNotifier
	if cfg.AWS.OpsQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		notifier = ops.NewSQSNotifier(sqsClient, cfg.AWS.OpsQueueURL, logger)
	}

	var recorder handlers.EventRecorder
	if cfg.Observability.EnableMetrics && cfg.Environment != "local" {
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		recorder = observability.NewEventMetrics(cwClient, cfg.Observability.MetricNamespace, logger)
	}

	janitor := billing.NewJanitor(store, notifier, logger)
	reconciler := billing.NewReconciler(store, janitor, logger)

	webhook := handlers.NewRevenueCatWebhookHandler(
		func() string { return cfg.Webhook.AuthToken.Unmask() },
		reconciler,
		recorder,
		logger,
	)

	srv, err := core.NewServer(cfg, logger, webhook)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if pool != nil {
		srv.HealthProbes = append(srv.HealthProbes, &dbProbe{pool: pool})
	}
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newUserStore selects the user store implementation. A configured
// DATABASE_URL means PostgreSQL; an empty one is only valid in local mode,
// where the in-memory store keeps the processor runnable without a database.
func newUserStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (billing.UserStore, *pgxpool.Pool, error) {
	url := cfg.Database.URL.Unmask()
	if url == "" {
		if cfg.Environment != "local" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required when APP_ENV=%s", cfg.Environment)
		}
		logger.Warn("no DATABASE_URL configured, using in-memory user store")
		return db.NewMemoryUserStore(), nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return db.NewUserRepo(pool, logger), pool, nil
}

// dbProbe reports database connectivity for the health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p *dbProbe) Name() string { return "database" }

func (p *dbProbe) Check(ctx context.Context) error { return p.pool.Ping(ctx) }

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
