package di

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	indicatorsusecase "jpstock_backend/internal/feature/indicators/usecase"
	priceadapters "jpstock_backend/internal/feature/prices/adapters"
	pricesusecase "jpstock_backend/internal/feature/prices/usecase"
	symboladapters "jpstock_backend/internal/feature/symbollist/adapters"
	symbolusecase "jpstock_backend/internal/feature/symbollist/usecase"
	"jpstock_backend/internal/platform/cache"
	healthhandler "jpstock_backend/internal/platform/http/handler"
	"jpstock_backend/internal/platform/metrics"
	"jpstock_backend/internal/shared/ratelimiter"
)

// Repositories groups the storage adapters shared by the server and the ingest CLI.
type Repositories struct {
	Symbols symbolusecase.SymbolRepository
	Stocks  pricesusecase.StockChecker
	Writer  pricesusecase.SymbolWriter
	Prices  *cache.CachingPriceRepository
}

// NewRepositories builds the gorm repositories. Prices are wrapped with the Redis cache;
// a nil rdb disables caching.
func NewRepositories(db *gorm.DB, rdb *redis.Client) Repositories {
	symbols := symboladapters.NewSymbolRepository(db)
	prices := priceadapters.NewPriceRepository(db)
	return Repositories{
		Symbols: symbols,
		Stocks:  symbols,
		Writer:  symbols,
		Prices:  cache.NewCachingPriceRepository(rdb, 0, prices, "prices"),
	}
}

// NewIngestUsecase wires the price ingestor with a fixed inter-batch delay from BATCH_DELAY.
func NewIngestUsecase(feed pricesusecase.PriceFeed, repos Repositories, logger *zap.Logger, m *metrics.Metrics) *pricesusecase.IngestUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := pricesusecase.LoadIngestConfig()
	waiter := ratelimiter.NewFixedDelay(BatchDelayFromEnv())
	logger.Info("ingest configured",
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("batch_delay", waiter.Delay()),
		zap.String("ticker_suffix", cfg.TickerSuffix))
	return pricesusecase.NewIngestUsecase(feed, repos.Writer, repos.Prices, waiter, cfg, logger, m)
}

// NewUpdaterUsecase wires the indicator updater; updated codes are evicted from the price cache.
func NewUpdaterUsecase(repos Repositories, logger *zap.Logger, m *metrics.Metrics, opts ...indicatorsusecase.Option) *indicatorsusecase.UpdaterUsecase {
	opts = append(opts, indicatorsusecase.WithCacheInvalidator(repos.Prices))
	return indicatorsusecase.NewUpdaterUsecase(repos.Prices, logger, m, opts...)
}

// HealthChecks returns readiness probes for the database and, when configured, Redis.
func HealthChecks(db *gorm.DB, rdb *redis.Client) map[string]healthhandler.Checker {
	checks := map[string]healthhandler.Checker{
		"database": func(ctx context.Context) error {
			if db == nil {
				return errors.New("not connected")
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}
