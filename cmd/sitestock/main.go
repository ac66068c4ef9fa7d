package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sitestock/sitestock/internal/app"
	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/observability"
	"github.com/sitestock/sitestock/internal/orders"
	"github.com/sitestock/sitestock/internal/platform/cache"
	"github.com/sitestock/sitestock/internal/platform/db"
	"github.com/sitestock/sitestock/internal/purchasing"
	"github.com/sitestock/sitestock/internal/receiving"
	"github.com/sitestock/sitestock/internal/requests"
	"github.com/sitestock/sitestock/internal/shared"
	"github.com/sitestock/sitestock/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	requestsRepo := requests.NewRepository(dbpool, approvalRecorder)
	requestsService := requests.NewService(requestsRepo, auditLogger, metrics)

	purchasingRepo := purchasing.NewRepository(dbpool)
	purchasingService := purchasing.NewService(purchasingRepo, auditLogger, metrics)

	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(ordersRepo, auditLogger, metrics, cfg.DefaultCurrency)

	stockStore := inventory.NewStore(cfg.AllowNegativeStock)
	stockCache := inventory.NewCache(redisClient, cfg.StockCacheTTL)
	inventoryRepo := inventory.NewRepository(dbpool, stockStore)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, idempotencyStore, stockCache, metrics)

	receivingRepo := receiving.NewRepository(dbpool, stockStore)
	receivingService := receiving.NewService(receivingRepo, auditLogger, idempotencyStore, stockCache, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		RequestsHandler:   requests.NewHandler(logger, requestsService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		OrdersHandler:     orders.NewHandler(logger, ordersService),
		ReceivingHandler:  receiving.NewHandler(logger, receivingService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
		HealthChecks: map[string]app.HealthCheck{
			"postgres": dbpool.Ping,
			"redis": func(ctx context.Context) error {
				return cache.Ping(ctx, redisClient)
			},
		},
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
