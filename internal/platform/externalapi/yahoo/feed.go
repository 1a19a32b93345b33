package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jpstock_backend/internal/feature/prices/domain/entity"
	"jpstock_backend/internal/feature/prices/usecase"
)

// Feed は Yahoo Finance の chart API を使う PriceFeed 実装です。
// chart API は1リクエスト1ティッカーのため、バッチ内で並列に取得します。
type Feed struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ usecase.PriceFeed = (*Feed)(nil)

// NewFeed は新しい Feed を生成します。
func NewFeed(cfg Config, client *http.Client, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{cfg: cfg.withDefaults(), client: client, logger: logger}
}

// FetchDaily は tickers ごとに [start, end) の日足を取得します。
// 失敗したティッカーはログに出してスキップし、全ティッカーが失敗した場合のみエラーを返します。
func (f *Feed) FetchDaily(ctx context.Context, tickers []string, start, end time.Time) ([]entity.FeedBar, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	results := make([][]entity.FeedBar, len(tickers))
	errs := make([]error, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			bars, err := f.fetchTicker(gctx, ticker, start, end)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", ticker, err)
				return nil
			}
			results[i] = bars
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []entity.FeedBar
	failed := 0
	for i := range tickers {
		if errs[i] != nil {
			failed++
			f.logger.Warn("failed to fetch ticker", zap.String("ticker", tickers[i]), zap.Error(errs[i]))
			continue
		}
		out = append(out, results[i]...)
	}
	if failed == len(tickers) {
		return nil, fmt.Errorf("yahoo: all %d tickers failed: %w", failed, errors.Join(errs...))
	}
	return out, nil
}

func (f *Feed) fetchTicker(ctx context.Context, ticker string, start, end time.Time) ([]entity.FeedBar, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s",
		strings.TrimRight(f.cfg.BaseURL, "/"), url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			f.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		if res.StatusCode >= 400 {
			return nil, fmt.Errorf("yahoo http %d", res.StatusCode)
		}
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("yahoo http %d", res.StatusCode)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, errors.New("yahoo: no result")
	}
	return toFeedBars(ticker, chart.Chart.Result[0]), nil
}

// toFeedBars はタイムスタンプを取引所の現地日付に変換し、null は null のまま保持します。
func toFeedBars(ticker string, r chartResult) []entity.FeedBar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	quote := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}
	loc := time.FixedZone(r.Meta.Timezone, r.Meta.GMTOffset)

	bars := make([]entity.FeedBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		local := time.Unix(ts, 0).In(loc)
		bars = append(bars, entity.FeedBar{
			Ticker:        ticker,
			Date:          entity.TradeDay(local),
			Open:          floatAt(quote.Open, i),
			High:          floatAt(quote.High, i),
			Low:           floatAt(quote.Low, i),
			Close:         floatAt(quote.Close, i),
			AdjustedClose: floatAt(adj, i),
			Volume:        intAt(quote.Volume, i),
		})
	}
	return bars
}

func floatAt(s []*float64, i int) null.Float {
	if i >= len(s) {
		return null.Float{}
	}
	return null.FloatFromPtr(s[i])
}

func intAt(s []*int64, i int) null.Int {
	if i >= len(s) {
		return null.Int{}
	}
	return null.IntFromPtr(s[i])
}
