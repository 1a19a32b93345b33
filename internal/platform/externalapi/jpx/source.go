// Package jpx は日本取引所グループ（JPX）の上場銘柄一覧を取得します。
package jpx

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/feature/symbollist/usecase"
)

const (
	// EncodingUTF8 はUTF-8のCSVです（BOM付きも可）。
	EncodingUTF8 = "utf-8"
	// EncodingShiftJIS はJPX配布ファイルの既定の文字コードです。
	EncodingShiftJIS = "shift_jis"

	defaultTimeout = 30 * time.Second
)

// 一覧ファイルの列名
const (
	colCode   = "コード"
	colName   = "銘柄名"
	colMarket = "市場・商品区分"
	colSector = "33業種区分"
)

// Config は銘柄一覧の取得元の設定です。
type Config struct {
	URL      string
	Encoding string
	Timeout  time.Duration
}

// LoadConfig は環境変数から設定を読み込みます。
func LoadConfig() Config {
	cfg := Config{
		URL:      os.Getenv("STOCK_LIST_URL"),
		Encoding: strings.ToLower(os.Getenv("STOCK_LIST_ENCODING")),
		Timeout:  cast.ToDuration(os.Getenv("FEED_TIMEOUT")),
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingUTF8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// Source はHTTPでCSV形式の上場銘柄一覧を取得する StockListSource 実装です。
type Source struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ usecase.StockListSource = (*Source)(nil)

// NewSource は新しい Source を生成します。
func NewSource(cfg Config, client *http.Client, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{cfg: cfg, client: client, logger: logger}
}

// FetchStockList は一覧をダウンロードし、4桁数字のコードを持つ行だけを返します。
func (s *Source) FetchStockList(ctx context.Context) ([]entity.StockInfo, error) {
	if s.cfg.URL == "" {
		return nil, errors.New("jpx: STOCK_LIST_URL is not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			s.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("jpx http %d", res.StatusCode)
	}

	var body io.Reader = res.Body
	if s.cfg.Encoding == EncodingShiftJIS {
		body = transform.NewReader(body, japanese.ShiftJIS.NewDecoder())
	}
	return ParseCSV(body)
}

// ParseCSV はヘッダ付きCSVを読み込みます。市場区分が空の行は "TSE" とします。
func ParseCSV(r io.Reader) ([]entity.StockInfo, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := col[colCode]; !ok {
		return nil, fmt.Errorf("jpx: column %q not found", colCode)
	}
	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var stocks []entity.StockInfo
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		code := get(rec, colCode)
		if !isStockCode(code) {
			continue
		}
		info := entity.StockInfo{
			Code:   code,
			Name:   get(rec, colName),
			Market: get(rec, colMarket),
			Sector: get(rec, colSector),
		}
		if info.Market == "" {
			info.Market = entity.DefaultMarket
		}
		stocks = append(stocks, info)
	}
	return stocks, nil
}

// isStockCode は4桁の数字かどうかを判定します。ETFや優先株などの英字入りコードは除外されます。
func isStockCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
