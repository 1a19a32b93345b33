// Package jobs は取り込みCLIの各ジョブ（ダウンロード・バックフィル・指標更新・定期実行）を実装します。
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	pricesusecase "jpstock_backend/internal/feature/prices/usecase"
	symbolentity "jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/platform/metrics"
)

const (
	// DefaultIndicatorDays はダウンロード後に指標を更新する直近の日数です。
	DefaultIndicatorDays = 30
	// DefaultBackfillDays はバックフィルで遡る日数です。
	DefaultBackfillDays = 365
	// DefaultSchedule は平日18:00（日本時間）です。
	DefaultSchedule = "0 18 * * 1-5"
)

// StockLister は上場銘柄一覧を返します。
type StockLister interface {
	GetStockList(ctx context.Context, useCache bool) ([]symbolentity.StockInfo, error)
}

// Downloader は日足を取得して保存します。
type Downloader interface {
	DownloadStockPrices(ctx context.Context, stocks []symbolentity.StockInfo, start, end time.Time) (int, error)
	DownloadDailyPrices(ctx context.Context, stocks []symbolentity.StockInfo) (int, error)
}

// IndicatorUpdater は銘柄ごとに指標を再計算します。
type IndicatorUpdater interface {
	UpdateAll(ctx context.Context, codes []string, limitDays int) (int, error)
}

// CodeLister は保存済みの銘柄コードを返します。
type CodeLister interface {
	ListCodes(ctx context.Context) ([]string, error)
}

// DownloadOptions は download ジョブのオプションです。
type DownloadOptions struct {
	Start          time.Time // ゼロ値なら既定の範囲
	End            time.Time
	Daily          bool // 当日分のみ
	NoCache        bool // 銘柄一覧のスナップショットを使わない
	SkipIndicators bool
	IndicatorDays  int
}

// Result はジョブの実行結果です。
type Result struct {
	Stocks    int
	Saved     int
	Updated   int
	StartedAt time.Time
	Elapsed   time.Duration
}

// Runner はジョブを実行します。
type Runner struct {
	stocks  StockLister
	prices  Downloader
	updater IndicatorUpdater
	codes   CodeLister
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRunner は新しい Runner を作成します。
func NewRunner(stocks StockLister, prices Downloader, updater IndicatorUpdater, codes CodeLister, logger *zap.Logger, m *metrics.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		stocks:  stocks,
		prices:  prices,
		updater: updater,
		codes:   codes,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Download は銘柄一覧を取得して日足を保存し、続けて取得した銘柄の指標を更新します。
func (r *Runner) Download(ctx context.Context, opts DownloadOptions) (Result, error) {
	res := Result{StartedAt: r.now()}

	stocks, err := r.stocks.GetStockList(ctx, !opts.NoCache)
	if err != nil {
		return res, fmt.Errorf("get stock list: %w", err)
	}
	res.Stocks = len(stocks)
	r.logger.Info("downloading prices", zap.Int("stocks", len(stocks)), zap.Bool("daily", opts.Daily))

	if opts.Daily {
		res.Saved, err = r.prices.DownloadDailyPrices(ctx, stocks)
	} else {
		res.Saved, err = r.prices.DownloadStockPrices(ctx, stocks, opts.Start, opts.End)
	}
	if err != nil {
		return res, fmt.Errorf("download prices: %w", err)
	}
	r.logger.Info("download completed", zap.Int("saved", res.Saved))

	if !opts.SkipIndicators {
		codes := make([]string, len(stocks))
		for i, s := range stocks {
			codes[i] = s.Code
		}
		days := opts.IndicatorDays
		if days == 0 {
			days = DefaultIndicatorDays
		}
		res.Updated, err = r.updater.UpdateAll(ctx, codes, days)
		if err != nil {
			return res, fmt.Errorf("update indicators: %w", err)
		}
	}

	res.Elapsed = r.now().Sub(res.StartedAt)
	r.metrics.MarkSuccess("download", r.now())
	r.logger.Info("download job finished",
		zap.Int("saved", res.Saved), zap.Int("updated", res.Updated), zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// Backfill は [今日+1-days, 今日+1) の日足を取得し、全履歴で指標を計算します。
func (r *Runner) Backfill(ctx context.Context, days int, noCache bool) (Result, error) {
	if days <= 0 {
		return Result{}, fmt.Errorf("days must be positive, got %d", days)
	}
	loc := pricesusecase.TokyoLocation()
	n := r.now().In(loc)
	end := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -days)
	r.logger.Info("backfilling prices",
		zap.String("start", start.Format(time.DateOnly)), zap.String("end", end.Format(time.DateOnly)))

	res, err := r.Download(ctx, DownloadOptions{Start: start, End: end, NoCache: noCache, SkipIndicators: true})
	if err != nil {
		return res, err
	}
	return r.indicatorsFor(ctx, res, 0)
}

// Indicators は保存済みの全銘柄の指標を更新します。limitDays が0なら全履歴を書き直します。
func (r *Runner) Indicators(ctx context.Context, limitDays int) (Result, error) {
	return r.indicatorsFor(ctx, Result{StartedAt: r.now()}, limitDays)
}

func (r *Runner) indicatorsFor(ctx context.Context, res Result, limitDays int) (Result, error) {
	codes, err := r.codes.ListCodes(ctx)
	if err != nil {
		return res, fmt.Errorf("list codes: %w", err)
	}
	r.logger.Info("updating indicators", zap.Int("stocks", len(codes)), zap.Int("limit_days", limitDays))

	res.Updated, err = r.updater.UpdateAll(ctx, codes, limitDays)
	if err != nil {
		return res, fmt.Errorf("update indicators: %w", err)
	}
	res.Elapsed = r.now().Sub(res.StartedAt)
	r.metrics.MarkSuccess("indicators", r.now())
	r.logger.Info("indicator job finished", zap.Int("updated", res.Updated), zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// Schedule は cron 式 expr（日本時間）ごとに当日分のダウンロードと指標更新を実行します。
// 前回の実行が終わっていない場合はスキップします。ctx がキャンセルされるまで戻りません。
func (r *Runner) Schedule(ctx context.Context, expr string, runOnStartup bool) error {
	c := cron.New(
		cron.WithLocation(pricesusecase.TokyoLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.logger.Sugar()})),
	)
	job := func() {
		if _, err := r.Download(ctx, DownloadOptions{Daily: true}); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("scheduled download failed", zap.Error(err))
		}
	}
	if _, err := c.AddFunc(expr, job); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	if runOnStartup {
		r.logger.Info("running initial download on startup")
		job()
	}

	c.Start()
	r.logger.Info("scheduler started", zap.String("cron", expr), zap.String("timezone", "Asia/Tokyo"))

	<-ctx.Done()
	// 実行中のジョブの終了を待つ
	<-c.Stop().Done()
	r.logger.Info("scheduler stopped")
	return nil
}

// cronLogger は zap を cron.Logger に合わせます。
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
