package di

import (
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	symboladapters "jpstock_backend/internal/feature/symbollist/adapters"
	symbolusecase "jpstock_backend/internal/feature/symbollist/usecase"
	"jpstock_backend/internal/platform/externalapi/jpx"
	infrahttp "jpstock_backend/internal/platform/http"
	"jpstock_backend/internal/platform/metrics"
)

// NewSnapshotStore returns the Redis snapshot when Redis is available, otherwise the local CSV file.
func NewSnapshotStore(rdb *redis.Client) symbolusecase.SnapshotStore {
	if rdb != nil {
		return symboladapters.NewRedisSnapshotStore(rdb, "")
	}
	return symboladapters.NewFileSnapshotStore(os.Getenv("STOCK_LIST_CACHE"))
}

// NewStockListUsecase wires the JPX source with a snapshot store.
func NewStockListUsecase(rdb *redis.Client, logger *zap.Logger, m *metrics.Metrics) *symbolusecase.StockListUsecase {
	cfg := jpx.LoadConfig()
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout, infrahttp.WithUserAgent(infrahttp.DefaultUserAgent))
	source := jpx.NewSource(cfg, httpClient, logger)
	return symbolusecase.NewStockListUsecase(source, NewSnapshotStore(rdb), logger, m)
}
