package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"jpstock_backend/internal/app/di"
	"jpstock_backend/internal/app/router"
	pricehandler "jpstock_backend/internal/feature/prices/transport/handler"
	pricesusecase "jpstock_backend/internal/feature/prices/usecase"
	symbolhandler "jpstock_backend/internal/feature/symbollist/transport/handler"
	symbolusecase "jpstock_backend/internal/feature/symbollist/usecase"
	"jpstock_backend/internal/platform/db"
	healthhandler "jpstock_backend/internal/platform/http/handler"
	"jpstock_backend/internal/platform/logger"
	"jpstock_backend/internal/platform/metrics"
	infraredis "jpstock_backend/internal/platform/redis"
)

func main() {
	envErr := di.LoadDotEnv()
	log := logger.FromEnv()
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Warn("failed to load .env", zap.Error(envErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	gdb, err := db.OpenDB(db.LoadConfigFromEnv(), log)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	// Redis
	rdb, err := infraredis.NewRedisClient(ctx, infraredis.LoadConfig(), log)
	if err != nil {
		log.Warn("Redis unavailable. Running without cache.", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error("failed to close Redis client", zap.Error(err))
			}
		}()
	}

	// Repository（株価はRedisキャッシュでラップ）
	repos := di.NewRepositories(gdb, rdb)

	// Usecase
	symbolUC := symbolusecase.NewSymbolUsecase(repos.Symbols)
	pricesUC := pricesusecase.NewPricesUsecase(repos.Prices, repos.Stocks)

	// Handler
	m := metrics.New()
	r := router.NewRouter(log,
		healthhandler.NewHealthHandler(di.HealthChecks(gdb, rdb)),
		symbolhandler.NewSymbolHandler(symbolUC),
		pricehandler.NewPricesHandler(pricesUC),
		m.Handler(),
		di.CORSOriginsFromEnv()...,
	)

	srv := &http.Server{
		Addr:              di.HTTPAddrFromEnv(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
