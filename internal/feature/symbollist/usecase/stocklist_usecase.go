package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"jpstock_backend/internal/feature/symbollist/domain"
	"jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/platform/metrics"
)

// StockListSource は上場銘柄一覧をライブで取得します。
type StockListSource interface {
	FetchStockList(ctx context.Context) ([]entity.StockInfo, error)
}

// SnapshotStore は最後に取得できた銘柄一覧を保存します。
// 未保存の場合 Load は domain.ErrSnapshotNotFound を返します。
type SnapshotStore interface {
	Load(ctx context.Context) ([]entity.StockInfo, error)
	Save(ctx context.Context, stocks []entity.StockInfo) error
}

// StockListUsecase はライブ取得とスナップショットの2段構えで銘柄一覧を返します。
type StockListUsecase struct {
	source   StockListSource
	snapshot SnapshotStore
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewStockListUsecase は新しい StockListUsecase を作成します。
func NewStockListUsecase(source StockListSource, snapshot SnapshotStore, logger *zap.Logger, m *metrics.Metrics) *StockListUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockListUsecase{source: source, snapshot: snapshot, logger: logger, metrics: m}
}

// GetStockList は銘柄一覧を返します。
// useCache が true ならまずスナップショットを使い、無ければライブ取得します。
// ライブ取得に成功した場合はスナップショットを更新し（失敗は無視）、
// 失敗した場合はスナップショットにフォールバックします。両方とも得られない場合のみエラーです。
func (u *StockListUsecase) GetStockList(ctx context.Context, useCache bool) ([]entity.StockInfo, error) {
	if useCache {
		if cached, err := u.loadSnapshot(ctx); err == nil {
			u.logger.Info("using cached stock list", zap.Int("stocks", len(cached)))
			return cached, nil
		}
	}

	u.logger.Info("fetching stock list from source")
	stocks, fetchErr := u.source.FetchStockList(ctx)
	if fetchErr == nil && len(stocks) > 0 {
		u.logger.Info("fetched stock list", zap.Int("stocks", len(stocks)))
		if err := u.snapshot.Save(ctx, stocks); err != nil {
			u.logger.Warn("failed to save stock list snapshot", zap.Error(err))
		}
		return stocks, nil
	}
	if fetchErr == nil {
		fetchErr = errors.New("source returned no stocks")
	}
	u.logger.Error("failed to fetch stock list", zap.Error(fetchErr))

	cached, err := u.loadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w (snapshot: %w)", domain.ErrStockListUnavailable, fetchErr, err)
	}
	u.metrics.IncStockListFallback()
	u.logger.Info("using cached stock list", zap.Int("stocks", len(cached)))
	return cached, nil
}

func (u *StockListUsecase) loadSnapshot(ctx context.Context) ([]entity.StockInfo, error) {
	stocks, err := u.snapshot.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSnapshotNotFound) {
			u.logger.Warn("failed to load stock list snapshot", zap.Error(err))
		}
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, domain.ErrSnapshotNotFound
	}
	return stocks, nil
}
