package adapters

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"jpstock_backend/internal/feature/symbollist/domain"
	"jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/feature/symbollist/usecase"
)

// DefaultSnapshotPath はローカルCSVスナップショットの既定パスです。
const DefaultSnapshotPath = "./data/stock_list.csv"

var snapshotHeader = []string{"code", "name", "market", "sector"}

// FileSnapshotStore は銘柄一覧をローカルのCSVファイルに保存します。
type FileSnapshotStore struct {
	path string
}

var _ usecase.SnapshotStore = (*FileSnapshotStore)(nil)

// NewFileSnapshotStore は新しい FileSnapshotStore を作成します。path が空なら既定パスを使います。
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	if path == "" {
		path = DefaultSnapshotPath
	}
	return &FileSnapshotStore{path: path}
}

// Load はCSVから銘柄一覧を読み込みます。ヘッダ行で列を特定し、market が空なら "TSE" とします。
func (s *FileSnapshotStore) Load(_ context.Context) ([]entity.StockInfo, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	if _, ok := col["code"]; !ok {
		return nil, fmt.Errorf("snapshot %s has no code column", s.path)
	}
	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var stocks []entity.StockInfo
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		info := entity.StockInfo{
			Code:   get(rec, "code"),
			Name:   get(rec, "name"),
			Market: get(rec, "market"),
			Sector: get(rec, "sector"),
		}
		if info.Code == "" {
			continue
		}
		if info.Market == "" {
			info.Market = entity.DefaultMarket
		}
		stocks = append(stocks, info)
	}
	return stocks, nil
}

// Save は一時ファイルに書き出してから置き換えます。
func (s *FileSnapshotStore) Save(_ context.Context, stocks []entity.StockInfo) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".stock_list-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	_ = w.Write(snapshotHeader)
	for _, st := range stocks {
		_ = w.Write([]string{st.Code, st.Name, st.Market, st.Sector})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
