// Package metrics はバッチ処理とAPIのPrometheusメトリクスを提供します。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jpstock"

// Metrics は取り込み・指標更新のメトリクスを保持します。
// nil の *Metrics に対する記録メソッドは何もしません。
type Metrics struct {
	registry *prometheus.Registry

	RowsUpserted        prometheus.Counter
	BatchesFailed       *prometheus.CounterVec // labels: stage=symbols|feed|store
	BatchDuration       prometheus.Histogram
	IndicatorRows       prometheus.Counter
	SymbolsSkipped      prometheus.Counter
	SymbolsFailed       prometheus.Counter
	SymbolDuration      prometheus.Histogram
	StockListFallbacks  prometheus.Counter
	LastSuccessfulRunTS *prometheus.GaugeVec // labels: job
}

// New は専用レジストリにメトリクスを登録して返します。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		RowsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_rows_upserted_total",
			Help:      "Daily price rows written by the ingestor",
		}),
		BatchesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_failed_total",
			Help:      "Download batches that contributed no rows, by failing stage",
		}, []string{"stage"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_duration_seconds",
			Help:      "Wall time of one download batch (fetch and upsert)",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		IndicatorRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_rows_updated_total",
			Help:      "Price rows whose indicator columns were rewritten",
		}),
		SymbolsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_symbols_skipped_total",
			Help:      "Symbols with too little history to compute indicators",
		}),
		SymbolsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_symbols_failed_total",
			Help:      "Symbols whose indicator update failed",
		}),
		SymbolDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "indicator_symbol_duration_seconds",
			Help:      "Wall time of one symbol's indicator update",
			Buckets:   prometheus.DefBuckets,
		}),
		StockListFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_list_snapshot_fallbacks_total",
			Help:      "Times the stock list was served from the snapshot after a live fetch failure",
		}),
		LastSuccessfulRunTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix time of the last successful scheduled job",
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.RowsUpserted,
		m.BatchesFailed,
		m.BatchDuration,
		m.IndicatorRows,
		m.SymbolsSkipped,
		m.SymbolsFailed,
		m.SymbolDuration,
		m.StockListFallbacks,
		m.LastSuccessfulRunTS,
	)
	return m
}

// Handler は /metrics 用のHTTPハンドラを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry はメトリクスを登録したレジストリを返します。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AddRowsUpserted は書き込んだ価格行数を加算します。
func (m *Metrics) AddRowsUpserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsUpserted.Add(float64(n))
}

// IncBatchFailed は失敗したバッチを段階別に数えます。
func (m *Metrics) IncBatchFailed(stage string) {
	if m == nil {
		return
	}
	m.BatchesFailed.WithLabelValues(stage).Inc()
}

// ObserveBatch はバッチ処理時間を記録します。
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// AddIndicatorRows は指標を更新した行数を加算します。
func (m *Metrics) AddIndicatorRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IndicatorRows.Add(float64(n))
}

// IncSymbolSkipped は履歴不足でスキップした銘柄を数えます。
func (m *Metrics) IncSymbolSkipped() {
	if m == nil {
		return
	}
	m.SymbolsSkipped.Inc()
}

// IncSymbolFailed は指標更新に失敗した銘柄を数えます。
func (m *Metrics) IncSymbolFailed() {
	if m == nil {
		return
	}
	m.SymbolsFailed.Inc()
}

// ObserveSymbol は銘柄ごとの指標更新時間を記録します。
func (m *Metrics) ObserveSymbol(d time.Duration) {
	if m == nil {
		return
	}
	m.SymbolDuration.Observe(d.Seconds())
}

// IncStockListFallback はスナップショットへのフォールバックを数えます。
func (m *Metrics) IncStockListFallback() {
	if m == nil {
		return
	}
	m.StockListFallbacks.Inc()
}

// MarkSuccess はジョブの最終成功時刻を記録します。
func (m *Metrics) MarkSuccess(job string, at time.Time) {
	if m == nil {
		return
	}
	m.LastSuccessfulRunTS.WithLabelValues(job).Set(float64(at.Unix()))
}
