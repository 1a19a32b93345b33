package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jpstock_backend/internal/app/di"
	"jpstock_backend/internal/app/jobs"
	indicatorsusecase "jpstock_backend/internal/feature/indicators/usecase"
	pricesusecase "jpstock_backend/internal/feature/prices/usecase"
	"jpstock_backend/internal/platform/db"
	"jpstock_backend/internal/platform/logger"
	"jpstock_backend/internal/platform/metrics"
	infraredis "jpstock_backend/internal/platform/redis"
)

var (
	log *zap.Logger

	downloadStart, downloadEnd string
	downloadDaily              bool
	noCache                    bool
	skipIndicators             bool
	backfillDays               int
	limitDays                  int
	showProgress               bool
	cronSpec                   string
	runOnStartup               bool
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Japanese stock price ingestion",
	Long:  "Downloads daily prices for TSE listed stocks, stores them and recomputes technical indicators.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		envErr := di.LoadDotEnv()
		log = logger.FromEnv()
		if envErr != nil {
			log.Warn("failed to load .env", zap.Error(envErr))
		}
	},
	SilenceUsage: true,
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download prices for the listed stocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseDate(downloadStart)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		end, err := parseDate(downloadEnd)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		return withRunner(cmd.Context(), false, func(ctx context.Context, r *jobs.Runner) error {
			_, err := r.Download(ctx, jobs.DownloadOptions{
				Start:          start,
				End:            end,
				Daily:          downloadDaily,
				NoCache:        noCache,
				SkipIndicators: skipIndicators,
				IndicatorDays:  jobs.DefaultIndicatorDays,
			})
			return err
		})
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Download history and recompute all indicators",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), showProgress, func(ctx context.Context, r *jobs.Runner) error {
			_, err := r.Backfill(ctx, backfillDays, noCache)
			return err
		})
	},
}

var indicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "Recompute indicators for every stored stock",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), showProgress, func(ctx context.Context, r *jobs.Runner) error {
			_, err := r.Indicators(ctx, limitDays)
			return err
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily download on a cron schedule (Asia/Tokyo)",
	RunE: func(cmd *cobra.Command, args []string) error {
		// フラグ未指定なら環境変数（.env を含む）を使う
		if !cmd.Flags().Changed("cron") {
			cronSpec = di.CronScheduleFromEnv(cronSpec)
		}
		if !cmd.Flags().Changed("run-on-startup") {
			runOnStartup = di.RunOnStartupFromEnv()
		}
		return withRunner(cmd.Context(), false, func(ctx context.Context, r *jobs.Runner) error {
			return r.Schedule(ctx, cronSpec, runOnStartup)
		}, serveMetrics)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "fetch the stock list from the source instead of the snapshot")

	downloadCmd.Flags().StringVar(&downloadStart, "start", "", "start date YYYY-MM-DD (inclusive)")
	downloadCmd.Flags().StringVar(&downloadEnd, "end", "", "end date YYYY-MM-DD (exclusive)")
	downloadCmd.Flags().BoolVar(&downloadDaily, "daily", false, "download today's prices only")
	downloadCmd.Flags().BoolVar(&skipIndicators, "skip-indicators", false, "do not update indicators after downloading")

	backfillCmd.Flags().IntVar(&backfillDays, "days", jobs.DefaultBackfillDays, "number of days to download")
	backfillCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar while updating indicators")

	indicatorsCmd.Flags().IntVar(&limitDays, "limit-days", indicatorsusecase.DefaultLimitDays, "rows to rewrite per stock (0 = all)")
	indicatorsCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar")

	scheduleCmd.Flags().StringVar(&cronSpec, "cron", jobs.DefaultSchedule, "cron expression in Asia/Tokyo (CRON_SCHEDULE)")
	scheduleCmd.Flags().BoolVar(&runOnStartup, "run-on-startup", false, "run once before waiting for the schedule (RUN_ON_STARTUP)")

	rootCmd.AddCommand(downloadCmd, backfillCmd, indicatorsCmd, scheduleCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}

// withRunner は DB・Redis・フィードを組み立てて fn を実行します。
// hooks はジョブと並行して動かす補助処理です（metrics サーバなど）。
func withRunner(ctx context.Context, progress bool, fn func(context.Context, *jobs.Runner) error, hooks ...func(context.Context, *metrics.Metrics)) error {
	gdb, err := db.OpenDB(db.LoadConfigFromEnv(), log)
	if err != nil {
		log.Error("failed to open database", zap.Error(err))
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}

	rdb := openRedis(ctx)
	if rdb != nil {
		defer rdb.Close()
	}

	feed, err := di.NewPriceFeed(di.FeedNameFromEnv(), log)
	if err != nil {
		log.Error("failed to configure price feed", zap.Error(err))
		return err
	}

	m := metrics.New()
	for _, h := range hooks {
		h(ctx, m)
	}

	repos := di.NewRepositories(gdb, rdb)
	var opts []indicatorsusecase.Option
	if progress {
		opts = append(opts, indicatorsusecase.WithProgress(newProgress()))
	}
	runner := jobs.NewRunner(
		di.NewStockListUsecase(rdb, log, m),
		di.NewIngestUsecase(feed, repos, log, m),
		di.NewUpdaterUsecase(repos, log, m, opts...),
		repos.Symbols,
		log, m,
	)

	if err := fn(ctx, runner); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("interrupted")
			return err
		}
		log.Error("job failed", zap.Error(err))
		return err
	}
	return nil
}

// openRedis は Redis に接続します。未設定・接続失敗時は nil（キャッシュなし）です。
func openRedis(ctx context.Context) *redis.Client {
	rdb, err := infraredis.NewRedisClient(ctx, infraredis.LoadConfig(), log)
	if err != nil {
		log.Warn("Redis unavailable. Running without cache.", zap.Error(err))
		return nil
	}
	return rdb
}

// serveMetrics は METRICS_ADDR で /metrics を公開し、ctx 終了時に停止します。
func serveMetrics(ctx context.Context, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              di.MetricsAddrFromEnv(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("metrics listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// newProgress は最初の呼び出しで総数を知ってからバーを作ります。
func newProgress() indicatorsusecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("indicators"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(os.Stderr),
			)
		}
		_ = bar.Set(done)
		if done == total {
			_ = bar.Finish()
		}
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, s, pricesusecase.TokyoLocation())
}
