package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/esencia-erp/esencia/internal/app"
	"github.com/esencia-erp/esencia/internal/inventory"
	"github.com/esencia-erp/esencia/internal/masterdata"
	"github.com/esencia-erp/esencia/internal/platform/cache"
	"github.com/esencia-erp/esencia/internal/platform/db"
	"github.com/esencia-erp/esencia/internal/sales"
	"github.com/esencia-erp/esencia/internal/shared"
	"github.com/esencia-erp/esencia/internal/shipments"
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

	// The engine runs without Redis; only manifest caching degrades.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, manifest caching disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}
	manifestCache := cache.NewCache(redisClient, cfg.ManifestCacheTTL)

	auditLogger := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)

	masterRepo := masterdata.NewRepository(pool)
	inventoryRepo := inventory.NewRepository(pool)
	inventoryHandler := inventory.NewHandler(logger, inventoryRepo)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, inventoryRepo, masterRepo, auditLogger, idemStore)
	salesHandler := sales.NewHandler(logger, salesService)

	shipmentsRepo := shipments.NewRepository(pool)
	shipmentsService := shipments.NewService(logger, shipmentsRepo, salesRepo, manifestCache, auditLogger)
	shipmentsHandler := shipments.NewHandler(logger, shipmentsService)

	router := app.NewRouter(app.RouterParams{
		Logger:    logger,
		Config:    cfg,
		Sales:     salesHandler,
		Shipments: shipmentsHandler,
		Inventory: inventoryHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
