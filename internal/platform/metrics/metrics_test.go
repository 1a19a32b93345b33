package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetrics_Counters は記録メソッドが各メトリクスに反映されることを検証します。
func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()
	m.AddRowsUpserted(3)
	m.AddRowsUpserted(0)
	m.AddRowsUpserted(-1)
	m.IncBatchFailed("feed")
	m.IncBatchFailed("feed")
	m.IncBatchFailed("store")
	m.AddIndicatorRows(30)
	m.IncSymbolSkipped()
	m.IncSymbolFailed()
	m.IncStockListFallback()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsUpserted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchesFailed.WithLabelValues("feed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesFailed.WithLabelValues("store")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.IndicatorRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SymbolsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SymbolsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockListFallbacks))
}

// TestMetrics_NilReceiver はnilのMetricsに記録してもpanicしないことを検証します。
func TestMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddRowsUpserted(1)
		m.IncBatchFailed("feed")
		m.ObserveBatch(time.Second)
		m.AddIndicatorRows(1)
		m.IncSymbolSkipped()
		m.IncSymbolFailed()
		m.ObserveSymbol(time.Second)
		m.IncStockListFallback()
		m.MarkSuccess("download", time.Now())
	})
}

// TestMetrics_Handler は /metrics ハンドラがメトリクスを公開することを検証します。
func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.AddRowsUpserted(5)
	m.MarkSuccess("download", time.Unix(1700000000, 0))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "jpstock_price_rows_upserted_total 5"))
	assert.True(t, strings.Contains(body, `jpstock_last_successful_run_timestamp_seconds{job="download"} 1.7e+09`))
}
