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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/pharmapos/cmd/pharmapos/cli"
	"github.com/odyssey-erp/pharmapos/internal/app"
	"github.com/odyssey-erp/pharmapos/internal/inventory"
	"github.com/odyssey-erp/pharmapos/internal/observability"
	"github.com/odyssey-erp/pharmapos/internal/platform/cache"
	"github.com/odyssey-erp/pharmapos/internal/platform/db"
	"github.com/odyssey-erp/pharmapos/internal/sales"
	"github.com/odyssey-erp/pharmapos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if len(os.Args) > 1 && os.Args[1] == "expiry" {
		code := runExpiry(ctx, cfg, pool, logger, os.Args[2:])
		pool.Close()
		os.Exit(code)
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, inventory snapshots disabled", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	inventoryRepo := inventory.NewRepository(pool, logger)
	snapshots := inventory.NewSnapshotCache(inventoryRepo, redisClient, cfg.InventoryCacheTTL, logger)
	inventoryService := inventory.NewService(snapshots, logger, inventory.ServiceConfig{ExpiryWindow: cfg.ExpiryWindow()})

	salesRepo := sales.NewRepository(pool, logger)
	committer := sales.NewCommitter(salesRepo, snapshots, metrics, logger)

	deps := sales.RegisterDeps{
		Inventory: inventoryService,
		Committer: committer,
		Metrics:   metrics,
		Logger:    logger,
		Session:   sales.SessionConfig{SurchargePercent: cfg.SurchargePercent()},
	}

	var jobHandler *jobs.Handler
	if cfg.RedisAddr != "" {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		jobClient := jobs.NewClient(redisOpts, logger)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("asynq inspector close", slog.Any("error", err))
			}
		}()
		deps.Reconcile = jobClient
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		logger.Warn("REDIS_ADDR empty, partial commits will not be reconciled")
	}

	register, err := sales.NewRegister(ctx, deps)
	if err != nil {
		logger.Error("load inventory", slog.Any("error", err))
		os.Exit(1)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		SalesHandler:     sales.NewHandler(logger, register),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runExpiry handles `pharmapos expiry [-days N] [-json] [-enqueue]`.
func runExpiry(ctx context.Context, cfg *app.Config, pool *pgxpool.Pool, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("expiry", flag.ContinueOnError)
	days := fs.Int("days", 0, "report window in days (0 uses EXPIRY_WINDOW_DAYS)")
	asJSON := fs.Bool("json", false, "print JSON")
	enqueue := fs.Bool("enqueue", false, "queue a scan on the worker instead of printing")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *enqueue {
		client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}, logger)
		defer client.Close()
		info, err := client.EnqueueExpiryScan(ctx, *days)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "expiry: enqueue: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(os.Stdout, "queued %s (%s)\n", info.ID, info.Queue)
		return 0
	}

	service := inventory.NewService(inventory.NewRepository(pool, logger), logger, inventory.ServiceConfig{ExpiryWindow: cfg.ExpiryWindow()})
	expiryCLI, err := cli.NewExpiryCLI(service)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "expiry: %v\n", err)
		return 1
	}
	return expiryCLI.ReportCommand(ctx, cli.ExpiryOptions{Days: *days, JSONOutput: *asJSON})
}
