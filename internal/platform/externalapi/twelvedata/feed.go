package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"go.uber.org/zap"

	"jpstock_backend/internal/feature/prices/domain/entity"
	"jpstock_backend/internal/feature/prices/usecase"
	"jpstock_backend/internal/platform/externalapi/twelvedata/dto"
	"jpstock_backend/internal/shared/ratelimiter"
)

// Feed はTwelve Data の time_series エンドポイントから日足を取得する PriceFeed 実装です。
type Feed struct {
	cfg     Config
	client  *http.Client
	limiter ratelimiter.RateLimiterInterface
	logger  *zap.Logger
}

// FeedがPriceFeedを実装していることをコンパイル時に検証します。
var _ usecase.PriceFeed = (*Feed)(nil)

// NewFeed は新しい Feed を生成します。limiter が nil の場合はリクエストを制限しません。
func NewFeed(cfg Config, client *http.Client, limiter ratelimiter.RateLimiterInterface, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{cfg: cfg, client: client, limiter: limiter, logger: logger}
}

// FetchDaily は tickers の [start, end) の日足を1リクエストで取得します。
// 1銘柄の場合と複数銘柄の場合で応答の形が異なるため、それぞれ別の正規化を行います。
func (f *Feed) FetchDaily(ctx context.Context, tickers []string, start, end time.Time) ([]entity.FeedBar, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	if f.limiter != nil {
		if err := f.limiter.WaitIfNeeded(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("symbol", strings.Join(tickers, ","))
	q.Set("interval", "1day")
	q.Set("start_date", start.Format(time.DateOnly))
	q.Set("end_date", end.Format(time.DateOnly))
	q.Set("order", "ASC")
	q.Set("apikey", f.cfg.TwelveDataAPIKey)
	u := fmt.Sprintf("%s/time_series?%s", strings.TrimRight(f.cfg.BaseURL, "/"), q.Encode())

	body, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var bars []entity.FeedBar
	if len(tickers) == 1 {
		bars, err = f.normalizeSingle(tickers[0], body)
	} else {
		bars, err = f.normalizeMulti(tickers, body)
	}
	if err != nil {
		return nil, err
	}
	return inRange(bars, start, end), nil
}

func (f *Feed) get(ctx context.Context, u string) ([]byte, error) {
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

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("twelvedata http %d", res.StatusCode)
	}
	return io.ReadAll(res.Body)
}

// normalizeSingle は1銘柄の平坦な応答を変換します。
func (f *Feed) normalizeSingle(ticker string, body []byte) ([]entity.FeedBar, error) {
	var res dto.TimeSeriesResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode time_series: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("twelvedata: %s", res.Message)
	}
	bars, err := toFeedBars(ticker, res.Values)
	if err != nil {
		f.logger.Warn("skipping symbol with malformed values", zap.String("ticker", ticker), zap.Error(err))
		return nil, nil
	}
	return bars, nil
}

// normalizeMulti はティッカーをキーとするオブジェクト形式の応答を変換します。
// エラー状態の銘柄・欠落した銘柄・不正な値を含む銘柄はスキップします。
func (f *Feed) normalizeMulti(tickers []string, body []byte) ([]entity.FeedBar, error) {
	// リクエスト全体のエラーはトップレベルに status が入る
	var top dto.TimeSeriesResponse
	if err := json.Unmarshal(body, &top); err == nil && top.IsError() {
		return nil, fmt.Errorf("twelvedata: %s", top.Message)
	}

	var bySymbol map[string]json.RawMessage
	if err := json.Unmarshal(body, &bySymbol); err != nil {
		return nil, fmt.Errorf("decode time_series: %w", err)
	}

	var out []entity.FeedBar
	for _, ticker := range tickers {
		raw, ok := bySymbol[ticker]
		if !ok {
			f.logger.Debug("ticker missing from response", zap.String("ticker", ticker))
			continue
		}
		var res dto.TimeSeriesResponse
		if err := json.Unmarshal(raw, &res); err != nil {
			f.logger.Warn("skipping undecodable symbol", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		if res.IsError() {
			f.logger.Warn("skipping symbol with error status", zap.String("ticker", ticker), zap.String("message", res.Message))
			continue
		}
		bars, err := toFeedBars(ticker, res.Values)
		if err != nil {
			f.logger.Warn("skipping symbol with malformed values", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		out = append(out, bars...)
	}
	return out, nil
}

// toFeedBars は文字列の値を数値に変換します。空文字は null とし、解釈できない値はエラーです。
func toFeedBars(ticker string, values []dto.Value) ([]entity.FeedBar, error) {
	bars := make([]entity.FeedBar, 0, len(values))
	for _, v := range values {
		tm, err := parseDatetime(v.Datetime)
		if err != nil {
			return nil, err
		}
		b := entity.FeedBar{Ticker: ticker, Date: tm}
		if b.Open, err = parseFloat("open", v.Open); err != nil {
			return nil, err
		}
		if b.High, err = parseFloat("high", v.High); err != nil {
			return nil, err
		}
		if b.Low, err = parseFloat("low", v.Low); err != nil {
			return nil, err
		}
		if b.Close, err = parseFloat("close", v.Close); err != nil {
			return nil, err
		}
		if v.Volume != "" {
			vol, err := strconv.ParseInt(v.Volume, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse volume %q: %w", v.Volume, err)
			}
			b.Volume = null.IntFrom(vol)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseDatetime(s string) (time.Time, error) {
	tm, err := time.Parse(time.DateTime, s)
	if err != nil {
		tm, err = time.Parse(time.DateOnly, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
	}
	return tm, nil
}

func parseFloat(field, s string) (null.Float, error) {
	if s == "" {
		return null.Float{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return null.FloatFrom(v), nil
}

// inRange は取引日が [start, end) に入る行だけを残します。
func inRange(bars []entity.FeedBar, start, end time.Time) []entity.FeedBar {
	from, to := entity.TradeDay(start), entity.TradeDay(end)
	out := bars[:0]
	for _, b := range bars {
		d := entity.TradeDay(b.Date)
		if d.Before(from) || !d.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
