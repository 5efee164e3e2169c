package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftandcart/shopfront-backend/api/routes"
	"github.com/craftandcart/shopfront-backend/internal/gateway"
	"github.com/craftandcart/shopfront-backend/internal/orders"
	"github.com/craftandcart/shopfront-backend/internal/reconcile"
	"github.com/craftandcart/shopfront-backend/internal/snapshot"
	"github.com/craftandcart/shopfront-backend/internal/stock"
	"github.com/craftandcart/shopfront-backend/pkg/config"
	"github.com/craftandcart/shopfront-backend/pkg/db"
	"github.com/craftandcart/shopfront-backend/pkg/logger"
	"github.com/craftandcart/shopfront-backend/pkg/metrics"
	"github.com/craftandcart/shopfront-backend/pkg/migrate"
	"github.com/craftandcart/shopfront-backend/pkg/outbox"
	"github.com/craftandcart/shopfront-backend/pkg/outbox/idempotency"
	"github.com/craftandcart/shopfront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()

	snapshotService, err := snapshot.NewService(snapshot.NewRepository(conn), cfg.Checkout.SnapshotTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create snapshot service", err)
		os.Exit(1)
	}

	stockService, err := stock.NewService(stock.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(conn)
	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	gatewayAdapter, err := gateway.NewAdapter(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway adapter", err)
		os.Exit(1)
	}

	callbackGuard, err := idempotency.NewManager(redisClient, cfg.Eventing.CallbackIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create callback guard", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)

	reconciler, err := reconcile.NewService(
		dbClient,
		ordersRepo,
		snapshotService,
		stockService,
		outboxService,
		reconcileMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			SnapshotService: snapshotService,
			GatewayAdapter:  gatewayAdapter,
			CallbackGuard:   callbackGuard,
			Reconciler:      reconciler,
			OrdersService:   ordersService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server stopped")
}
