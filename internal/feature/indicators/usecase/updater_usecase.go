// Package usecase は保存済み終値からテクニカル指標を再計算して書き戻すユースケースを提供します。
package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"jpstock_backend/internal/feature/indicators/domain/technical"
	"jpstock_backend/internal/feature/prices/domain"
	priceentity "jpstock_backend/internal/feature/prices/domain/entity"
	"jpstock_backend/internal/platform/metrics"
)

const (
	// DefaultLimitDays は日次更新で書き戻す直近の行数です。
	DefaultLimitDays = 30
	// progressLogEvery は進捗ログを出す銘柄数の間隔です。
	progressLogEvery = 100
)

// PriceHistoryRepository は終値履歴の読み込みと指標列の書き込みを行います。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type PriceHistoryRepository interface {
	LoadCloseHistory(ctx context.Context, code string) ([]priceentity.ClosePoint, error)
	UpdateIndicators(ctx context.Context, code string, updates []priceentity.IndicatorUpdate) (int, error)
}

// CacheInvalidator は指標更新後に銘柄のキャッシュを無効化します。
type CacheInvalidator interface {
	InvalidateCodes(ctx context.Context, codes []string)
}

// ProgressFunc は UpdateAll で1銘柄処理するたびに呼ばれます。
type ProgressFunc func(done, total int)

// UpdaterUsecase は指標の再計算と永続化を行います。
type UpdaterUsecase struct {
	repo     PriceHistoryRepository
	cache    CacheInvalidator
	logger   *zap.Logger
	metrics  *metrics.Metrics
	progress ProgressFunc
}

// Option は UpdaterUsecase の任意設定です。
type Option func(*UpdaterUsecase)

// WithProgress は進捗コールバックを設定します。
func WithProgress(fn ProgressFunc) Option {
	return func(u *UpdaterUsecase) { u.progress = fn }
}

// WithCacheInvalidator は更新後に無効化するキャッシュを設定します。
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(u *UpdaterUsecase) { u.cache = c }
}

// NewUpdaterUsecase は新しい UpdaterUsecase を作成します。
func NewUpdaterUsecase(repo PriceHistoryRepository, logger *zap.Logger, m *metrics.Metrics, opts ...Option) *UpdaterUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &UpdaterUsecase{repo: repo, logger: logger, metrics: m}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UpdateForStock は銘柄の全終値から指標を計算し、直近 limitDays 行の指標列を上書きします。
// limitDays が0以下なら全行が対象です。履歴が20件未満なら何もせず0を返します。
func (u *UpdaterUsecase) UpdateForStock(ctx context.Context, code string, limitDays int) (int, error) {
	history, err := u.repo.LoadCloseHistory(ctx, code)
	if err != nil {
		return 0, err
	}
	if len(history) < technical.MinHistory {
		u.metrics.IncSymbolSkipped()
		u.logger.Debug("not enough history for indicators",
			zap.String("code", code), zap.Int("rows", len(history)))
		return 0, nil
	}

	closes := make([]float64, len(history))
	for i, p := range history {
		closes[i] = p.Close
	}
	s := technical.Compute(closes)

	from := 0
	if limitDays > 0 && limitDays < len(history) {
		from = len(history) - limitDays
	}
	updates := make([]priceentity.IndicatorUpdate, 0, len(history)-from)
	for i := from; i < len(history); i++ {
		updates = append(updates, priceentity.IndicatorUpdate{
			TradeDate: history[i].TradeDate,
			Values: priceentity.IndicatorValues{
				MA5:      s.MA5[i],
				MA20:     s.MA20[i],
				RSI9:     s.RSI9[i],
				BBUpper:  s.BBUpper[i],
				BBMiddle: s.BBMiddle[i],
				BBLower:  s.BBLower[i],
			},
		})
	}

	n, err := u.repo.UpdateIndicators(ctx, code, updates)
	if err != nil {
		return 0, err
	}
	if u.cache != nil {
		u.cache.InvalidateCodes(ctx, []string{code})
	}
	u.metrics.AddIndicatorRows(n)
	return n, nil
}

// UpdateAll は銘柄ごとに順に UpdateForStock を実行し、更新行数の合計を返します。
// 個別銘柄の失敗はログに出してスキップしますが、ストレージ到達不能とキャンセルは中断して返します。
func (u *UpdaterUsecase) UpdateAll(ctx context.Context, codes []string, limitDays int) (int, error) {
	total := 0
	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if i > 0 && i%progressLogEvery == 0 {
			u.logger.Info("updating indicators", zap.Int("done", i), zap.Int("total", len(codes)))
		}

		started := time.Now()
		n, err := u.UpdateForStock(ctx, code, limitDays)
		u.metrics.ObserveSymbol(time.Since(started))
		if err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) || ctx.Err() != nil {
				return total, err
			}
			u.metrics.IncSymbolFailed()
			u.logger.Error("failed to update indicators", zap.String("code", code), zap.Error(err))
		}
		total += n
		if u.progress != nil {
			u.progress(i+1, len(codes))
		}
	}
	u.logger.Info("indicator update finished", zap.Int("symbols", len(codes)), zap.Int("rows", total))
	return total, nil
}
