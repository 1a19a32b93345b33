package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	symbolentity "jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/platform/metrics"
)

type mockStockLister struct {
	GetStockListFunc func(ctx context.Context, useCache bool) ([]symbolentity.StockInfo, error)
}

func (m *mockStockLister) GetStockList(ctx context.Context, useCache bool) ([]symbolentity.StockInfo, error) {
	return m.GetStockListFunc(ctx, useCache)
}

type rangeCall struct {
	start, end time.Time
	stocks     int
}

type mockDownloader struct {
	calls      []rangeCall
	dailyCalls int
	err        error
}

func (m *mockDownloader) DownloadStockPrices(_ context.Context, stocks []symbolentity.StockInfo, start, end time.Time) (int, error) {
	m.calls = append(m.calls, rangeCall{start: start, end: end, stocks: len(stocks)})
	if m.err != nil {
		return 0, m.err
	}
	return len(stocks) * 10, nil
}

func (m *mockDownloader) DownloadDailyPrices(_ context.Context, stocks []symbolentity.StockInfo) (int, error) {
	m.dailyCalls++
	if m.err != nil {
		return 0, m.err
	}
	return len(stocks), nil
}

type updateCall struct {
	codes     []string
	limitDays int
}

type mockUpdater struct {
	calls []updateCall
	err   error
}

func (m *mockUpdater) UpdateAll(_ context.Context, codes []string, limitDays int) (int, error) {
	m.calls = append(m.calls, updateCall{codes: codes, limitDays: limitDays})
	if m.err != nil {
		return 0, m.err
	}
	return len(codes) * limitDays, nil
}

type mockCodeLister struct {
	codes []string
	err   error
}

func (m *mockCodeLister) ListCodes(context.Context) ([]string, error) {
	return m.codes, m.err
}

var testStocks = []symbolentity.StockInfo{
	{Code: "7203", Name: "トヨタ自動車", Market: "Prime"},
	{Code: "6758", Name: "ソニーグループ", Market: "Prime"},
}

func newTestRunner(dl *mockDownloader, upd *mockUpdater, codes *mockCodeLister, m *metrics.Metrics) (*Runner, *bool) {
	var usedCache bool
	lister := &mockStockLister{
		GetStockListFunc: func(_ context.Context, useCache bool) ([]symbolentity.StockInfo, error) {
			usedCache = useCache
			return testStocks, nil
		},
	}
	r := NewRunner(lister, dl, upd, codes, nil, m)
	r.now = func() time.Time { return time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC) } // 2024-01-11 05:00 JST
	return r, &usedCache
}

func TestRunner_Download(t *testing.T) {
	t.Run("range download then indicators for the listed codes", func(t *testing.T) {
		dl, upd := &mockDownloader{}, &mockUpdater{}
		m := metrics.New()
		r, usedCache := newTestRunner(dl, upd, &mockCodeLister{}, m)
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

		res, err := r.Download(context.Background(), DownloadOptions{Start: start, End: end})

		require.NoError(t, err)
		assert.True(t, *usedCache)
		assert.Equal(t, []rangeCall{{start: start, end: end, stocks: 2}}, dl.calls)
		assert.Equal(t, 0, dl.dailyCalls)
		require.Len(t, upd.calls, 1)
		assert.Equal(t, []string{"7203", "6758"}, upd.calls[0].codes)
		assert.Equal(t, DefaultIndicatorDays, upd.calls[0].limitDays)
		assert.Equal(t, Result{Stocks: 2, Saved: 20, Updated: 60, StartedAt: r.now()}, res)
		assert.Greater(t, testutil.ToFloat64(m.LastSuccessfulRunTS.WithLabelValues("download")), 0.0)
	})

	t.Run("daily without snapshot and without indicators", func(t *testing.T) {
		dl, upd := &mockDownloader{}, &mockUpdater{}
		r, usedCache := newTestRunner(dl, upd, &mockCodeLister{}, nil)

		res, err := r.Download(context.Background(), DownloadOptions{Daily: true, NoCache: true, SkipIndicators: true})

		require.NoError(t, err)
		assert.False(t, *usedCache)
		assert.Equal(t, 1, dl.dailyCalls)
		assert.Empty(t, dl.calls)
		assert.Empty(t, upd.calls)
		assert.Equal(t, 2, res.Saved)
	})

	t.Run("stock list error", func(t *testing.T) {
		dl := &mockDownloader{}
		r := NewRunner(&mockStockLister{
			GetStockListFunc: func(context.Context, bool) ([]symbolentity.StockInfo, error) {
				return nil, errors.New("jpx down")
			},
		}, dl, &mockUpdater{}, &mockCodeLister{}, nil, nil)

		_, err := r.Download(context.Background(), DownloadOptions{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "get stock list")
		assert.Empty(t, dl.calls)
	})

	t.Run("download error skips indicators", func(t *testing.T) {
		dl, upd := &mockDownloader{err: errors.New("store unavailable")}, &mockUpdater{}
		r, _ := newTestRunner(dl, upd, &mockCodeLister{}, nil)

		_, err := r.Download(context.Background(), DownloadOptions{})

		require.Error(t, err)
		assert.Empty(t, upd.calls)
	})
}

func TestRunner_Backfill(t *testing.T) {
	dl, upd := &mockDownloader{}, &mockUpdater{}
	codes := &mockCodeLister{codes: []string{"1301", "6758", "7203"}}
	r, _ := newTestRunner(dl, upd, codes, nil)

	res, err := r.Backfill(context.Background(), 10, false)

	require.NoError(t, err)
	require.Len(t, dl.calls, 1)
	// 日本時間の今日は 2024-01-11 なので [01-02, 01-12)
	assert.Equal(t, "2024-01-02", dl.calls[0].start.Format(time.DateOnly))
	assert.Equal(t, "2024-01-12", dl.calls[0].end.Format(time.DateOnly))
	assert.Equal(t, 10*24*time.Hour, dl.calls[0].end.Sub(dl.calls[0].start))
	// 指標は保存済みの全銘柄・全履歴
	require.Len(t, upd.calls, 1)
	assert.Equal(t, codes.codes, upd.calls[0].codes)
	assert.Equal(t, 0, upd.calls[0].limitDays)
	assert.Equal(t, 20, res.Saved)

	_, err = r.Backfill(context.Background(), 0, false)
	assert.Error(t, err)
}

func TestRunner_Indicators(t *testing.T) {
	tests := []struct {
		name    string
		codes   *mockCodeLister
		upd     *mockUpdater
		want    int
		wantErr bool
	}{
		{name: "all stored codes", codes: &mockCodeLister{codes: []string{"7203", "6758"}}, upd: &mockUpdater{}, want: 10},
		{name: "list error", codes: &mockCodeLister{err: errors.New("db")}, upd: &mockUpdater{}, wantErr: true},
		{name: "update error", codes: &mockCodeLister{codes: []string{"7203"}}, upd: &mockUpdater{err: errors.New("db")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			r, _ := newTestRunner(&mockDownloader{}, tt.upd, tt.codes, m)

			res, err := r.Indicators(context.Background(), 5)

			if tt.wantErr {
				require.Error(t, err)
				assert.Zero(t, testutil.ToFloat64(m.LastSuccessfulRunTS.WithLabelValues("indicators")))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Updated)
			assert.Greater(t, testutil.ToFloat64(m.LastSuccessfulRunTS.WithLabelValues("indicators")), 0.0)
		})
	}
}

func TestRunner_Schedule(t *testing.T) {
	t.Run("invalid cron expression", func(t *testing.T) {
		r, _ := newTestRunner(&mockDownloader{}, &mockUpdater{}, &mockCodeLister{}, nil)
		err := r.Schedule(context.Background(), "not a cron", false)
		assert.Error(t, err)
	})

	t.Run("runs on startup and stops with the context", func(t *testing.T) {
		dl, upd := &mockDownloader{}, &mockUpdater{}
		r, _ := newTestRunner(dl, upd, &mockCodeLister{}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := r.Schedule(ctx, DefaultSchedule, true)

		require.NoError(t, err)
		assert.Equal(t, 1, dl.dailyCalls)
		assert.Len(t, upd.calls, 1)
	})
}
