package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jpstock_backend/internal/feature/symbollist/domain"
	"jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/feature/symbollist/usecase"
)

// mockStockListSource はStockListSourceインターフェースのモック実装です。
type mockStockListSource struct {
	stocks []entity.StockInfo
	err    error
	calls  int
}

func (m *mockStockListSource) FetchStockList(ctx context.Context) ([]entity.StockInfo, error) {
	m.calls++
	return m.stocks, m.err
}

// mockSnapshotStore はSnapshotStoreインターフェースのモック実装です。
type mockSnapshotStore struct {
	stocks    []entity.StockInfo
	loadErr   error
	saveErr   error
	saved     []entity.StockInfo
	saveCalls int
}

func (m *mockSnapshotStore) Load(ctx context.Context) ([]entity.StockInfo, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.stocks == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return m.stocks, nil
}

func (m *mockSnapshotStore) Save(ctx context.Context, stocks []entity.StockInfo) error {
	m.saveCalls++
	m.saved = stocks
	return m.saveErr
}

var (
	liveList   = []entity.StockInfo{{Code: "7203", Name: "トヨタ自動車", Market: "Prime"}}
	cachedList = []entity.StockInfo{{Code: "1301", Name: "極洋", Market: "TSE"}}
)

// TestStockListUsecase_GetStockList はライブ取得とスナップショットの2段構えの挙動を検証します。
func TestStockListUsecase_GetStockList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		useCache        bool
		source          *mockStockListSource
		snapshot        *mockSnapshotStore
		want            []entity.StockInfo
		wantErr         error
		wantSourceCalls int
		wantSaveCalls   int
	}{
		{
			name:            "useCache with snapshot skips live fetch",
			useCache:        true,
			source:          &mockStockListSource{stocks: liveList},
			snapshot:        &mockSnapshotStore{stocks: cachedList},
			want:            cachedList,
			wantSourceCalls: 0,
		},
		{
			name:            "useCache without snapshot fetches live and saves",
			useCache:        true,
			source:          &mockStockListSource{stocks: liveList},
			snapshot:        &mockSnapshotStore{},
			want:            liveList,
			wantSourceCalls: 1,
			wantSaveCalls:   1,
		},
		{
			name:            "no cache prefers live even when snapshot exists",
			useCache:        false,
			source:          &mockStockListSource{stocks: liveList},
			snapshot:        &mockSnapshotStore{stocks: cachedList},
			want:            liveList,
			wantSourceCalls: 1,
			wantSaveCalls:   1,
		},
		{
			name:            "live failure falls back to snapshot",
			useCache:        false,
			source:          &mockStockListSource{err: errors.New("503")},
			snapshot:        &mockSnapshotStore{stocks: cachedList},
			want:            cachedList,
			wantSourceCalls: 1,
		},
		{
			name:            "empty live result falls back to snapshot",
			useCache:        false,
			source:          &mockStockListSource{stocks: []entity.StockInfo{}},
			snapshot:        &mockSnapshotStore{stocks: cachedList},
			want:            cachedList,
			wantSourceCalls: 1,
		},
		{
			name:            "snapshot save failure is ignored",
			useCache:        false,
			source:          &mockStockListSource{stocks: liveList},
			snapshot:        &mockSnapshotStore{saveErr: errors.New("disk full")},
			want:            liveList,
			wantSourceCalls: 1,
			wantSaveCalls:   1,
		},
		{
			name:            "both tiers missing",
			useCache:        true,
			source:          &mockStockListSource{err: errors.New("timeout")},
			snapshot:        &mockSnapshotStore{},
			wantErr:         domain.ErrStockListUnavailable,
			wantSourceCalls: 1,
		},
		{
			name:            "snapshot read error and live failure",
			useCache:        false,
			source:          &mockStockListSource{err: errors.New("timeout")},
			snapshot:        &mockSnapshotStore{loadErr: errors.New("corrupt")},
			wantErr:         domain.ErrStockListUnavailable,
			wantSourceCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			uc := usecase.NewStockListUsecase(tt.source, tt.snapshot, nil, nil)
			got, err := uc.GetStockList(context.Background(), tt.useCache)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.Equal(t, tt.wantSourceCalls, tt.source.calls)
			assert.Equal(t, tt.wantSaveCalls, tt.snapshot.saveCalls)
			if tt.wantSaveCalls > 0 {
				assert.Equal(t, liveList, tt.snapshot.saved)
			}
		})
	}
}
