// Package usecase は株価データの取り込みと参照のビジネスロジックを実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"jpstock_backend/internal/feature/prices/domain"
	"jpstock_backend/internal/feature/prices/domain/entity"
	symbolentity "jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/platform/metrics"
)

const (
	// DefaultBatchSize は1回のフィードリクエストで取得する銘柄数です。
	DefaultBatchSize = 50
	// DefaultTickerSuffix は東証銘柄コードに付与するティッカーの接尾辞です。
	DefaultTickerSuffix = ".T"
	// defaultLookbackDays は期間未指定時に遡る日数です（休日をまたいでも直近営業日を含むように）。
	defaultLookbackDays = 3
)

// PriceFeed は日足の生データを取得する外部フィードです。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type PriceFeed interface {
	// FetchDaily は [start, end) の日足を tickers 分まとめて取得します。
	// 応答に含まれないティッカーはエラーにせず単に欠落します。
	FetchDaily(ctx context.Context, tickers []string, start, end time.Time) ([]entity.FeedBar, error)
}

// SymbolWriter は銘柄マスタを更新します。
type SymbolWriter interface {
	UpsertStocks(ctx context.Context, stocks []symbolentity.StockInfo) error
}

// PriceWriter は日足を (code, trade_date) で冪等に書き込みます。
type PriceWriter interface {
	// UpsertBars は書き込んだ行数を返します。
	UpsertBars(ctx context.Context, bars []entity.PriceBar) (int, error)
}

// Waiter はバッチ間の待機を行います。
type Waiter interface {
	Wait(ctx context.Context) error
}

// IngestConfig は取り込み処理の設定です。
type IngestConfig struct {
	BatchSize    int
	TickerSuffix string
	Location     *time.Location // 「今日」を決めるタイムゾーン
}

// LoadIngestConfig は環境変数から取り込み設定を読み込みます。
func LoadIngestConfig() IngestConfig {
	cfg := IngestConfig{
		BatchSize:    cast.ToInt(os.Getenv("DOWNLOAD_BATCH_SIZE")),
		TickerSuffix: DefaultTickerSuffix,
	}
	if v, ok := os.LookupEnv("TICKER_SUFFIX"); ok {
		cfg.TickerSuffix = v
	}
	return cfg.withDefaults()
}

func (c IngestConfig) withDefaults() IngestConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Location == nil {
		c.Location = TokyoLocation()
	}
	return c
}

// TokyoLocation は Asia/Tokyo を返します。tzdata が無い環境では固定の+9時間を使います。
func TokyoLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// IngestUsecase は外部フィードから日足を取得し、データベースに永続化するユースケースを定義します。
type IngestUsecase struct {
	feed    PriceFeed
	symbols SymbolWriter
	prices  PriceWriter
	waiter  Waiter
	cfg     IngestConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewIngestUsecase は新しい IngestUsecase を作成します。
func NewIngestUsecase(feed PriceFeed, symbols SymbolWriter, prices PriceWriter, waiter Waiter, cfg IngestConfig, logger *zap.Logger, m *metrics.Metrics) *IngestUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUsecase{
		feed:    feed,
		symbols: symbols,
		prices:  prices,
		waiter:  waiter,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// today は設定タイムゾーンでの今日の0時を返します。
func (iu *IngestUsecase) today() time.Time {
	n := iu.now().In(iu.cfg.Location)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, iu.cfg.Location)
}

// DefaultRange は期間未指定時の取得範囲 [今日-3日, 明日) を返します。
func (iu *IngestUsecase) DefaultRange() (time.Time, time.Time) {
	t := iu.today()
	return t.AddDate(0, 0, -defaultLookbackDays), t.AddDate(0, 0, 1)
}

// DownloadDailyPrices は当日分 [今日, 明日) の日足を取得して保存します（日次更新用）。
func (iu *IngestUsecase) DownloadDailyPrices(ctx context.Context, stocks []symbolentity.StockInfo) (int, error) {
	t := iu.today()
	iu.logger.Info("downloading daily prices", zap.String("date", t.Format(time.DateOnly)))
	return iu.DownloadStockPrices(ctx, stocks, t, t.AddDate(0, 0, 1))
}

// DownloadStockPrices は銘柄リストをバッチに分割して日足を取得し、保存した行数を返します。
// start/end がゼロ値の場合はそれぞれ既定値（今日-3日、明日）を使います。
// フィードの失敗はバッチ単位でログに出して0件として扱い、後続バッチは継続します。
// ストレージに到達できない場合のみ処理を中断してエラーを返します。
func (iu *IngestUsecase) DownloadStockPrices(ctx context.Context, stocks []symbolentity.StockInfo, start, end time.Time) (int, error) {
	defStart, defEnd := iu.DefaultRange()
	if start.IsZero() {
		start = defStart
	}
	if end.IsZero() {
		end = defEnd
	}
	if !start.Before(end) {
		return 0, fmt.Errorf("%w: %s >= %s", domain.ErrInvalidDateRange,
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	size := iu.cfg.BatchSize
	batches := (len(stocks) + size - 1) / size
	total := 0
	for i := 0; i < len(stocks); i += size {
		batch := stocks[i:min(i+size, len(stocks))]
		n := i/size + 1
		iu.logger.Info("processing batch",
			zap.Int("batch", n), zap.Int("batches", batches),
			zap.Int("stocks", len(batch)),
			zap.Int("from", i+1), zap.Int("to", i+len(batch)), zap.Int("of", len(stocks)))

		started := time.Now()
		saved, err := iu.downloadBatch(ctx, batch, start, end)
		iu.metrics.ObserveBatch(time.Since(started))
		if err != nil {
			return total, err
		}
		total += saved
		iu.logger.Info("batch completed", zap.Int("batch", n), zap.Int("saved", saved))

		// レート制限対策。最後のバッチの後は待機しない
		if i+size < len(stocks) && iu.waiter != nil {
			if err := iu.waiter.Wait(ctx); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// downloadBatch は1バッチ分の銘柄マスタ更新・取得・保存を行います。
// 返すエラーはストレージ到達不能かcontextのキャンセルのみです。
func (iu *IngestUsecase) downloadBatch(ctx context.Context, batch []symbolentity.StockInfo, start, end time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := iu.symbols.UpsertStocks(ctx, batch); err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return 0, err
		}
		// 銘柄マスタは付随情報のため、失敗しても株価の取得は続ける
		iu.metrics.IncBatchFailed("symbols")
		iu.logger.Warn("failed to upsert stocks", zap.Error(err))
	}

	tickers := make([]string, 0, len(batch))
	tickerToCode := make(map[string]string, len(batch))
	for _, s := range batch {
		t := s.Code + iu.cfg.TickerSuffix
		tickers = append(tickers, t)
		tickerToCode[t] = s.Code
	}

	rows, err := iu.feed.FetchDaily(ctx, tickers, start, end)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		iu.metrics.IncBatchFailed("feed")
		iu.logger.Error("failed to download batch", zap.Strings("tickers", tickers), zap.Error(err))
		return 0, nil
	}
	if len(rows) == 0 {
		iu.logger.Warn("no data downloaded", zap.Int("tickers", len(tickers)))
		return 0, nil
	}

	bars := toPriceBars(rows, tickerToCode)
	if len(bars) == 0 {
		return 0, nil
	}

	saved, err := iu.prices.UpsertBars(ctx, bars)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return 0, err
		}
		iu.metrics.IncBatchFailed("store")
		iu.logger.Error("failed to save batch", zap.Int("rows", len(bars)), zap.Error(err))
		return 0, nil
	}
	iu.metrics.AddRowsUpserted(saved)
	return saved, nil
}

// toPriceBars はフィードの行を保存用の PriceBar に変換します。
// 終値が無い行、バッチ外のティッカーの行は捨て、同じ (code, 取引日) は後勝ちで1行にまとめます。
func toPriceBars(rows []entity.FeedBar, tickerToCode map[string]string) []entity.PriceBar {
	index := make(map[string]int, len(rows))
	out := make([]entity.PriceBar, 0, len(rows))
	for _, r := range rows {
		code, ok := tickerToCode[r.Ticker]
		if !ok || !r.HasClose() {
			continue
		}
		bar := entity.PriceBar{
			Code:          code,
			TradeDate:     entity.TradeDay(r.Date),
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Close:         r.Close.Float64,
			AdjustedClose: r.AdjustedClose,
			Volume:        r.Volume,
		}
		key := code + "|" + bar.TradeDate.Format(time.DateOnly)
		if j, dup := index[key]; dup {
			out[j] = bar
			continue
		}
		index[key] = len(out)
		out = append(out, bar)
	}
	return out
}
