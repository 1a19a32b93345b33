package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jpstock_backend/internal/feature/symbollist/domain"
	"jpstock_backend/internal/feature/symbollist/domain/entity"
)

func TestNewFileSnapshotStore(t *testing.T) {
	assert.Equal(t, DefaultSnapshotPath, NewFileSnapshotStore("").path)
}

func TestFileSnapshotStore_SaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "stock_list.csv")
	store := NewFileSnapshotStore(path)
	ctx := context.Background()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	stocks := []entity.StockInfo{
		{Code: "7203", Name: "トヨタ自動車, Inc.", Market: "Prime", Sector: "輸送用機器"},
		{Code: "1301", Name: "極洋", Market: "TSE", Sector: ""},
	}
	require.NoError(t, store.Save(ctx, stocks))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, stocks, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestFileSnapshotStore_Load(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    []entity.StockInfo
		wantErr error
		anyErr  bool
	}{
		{
			name:    "empty file",
			content: "",
			wantErr: domain.ErrSnapshotNotFound,
		},
		{
			name:    "columns in any order and missing market",
			content: "name,code,sector\n極洋,1301,水産・農林業\n,,\n",
			want:    []entity.StockInfo{{Code: "1301", Name: "極洋", Market: entity.DefaultMarket, Sector: "水産・農林業"}},
		},
		{
			name:    "no code column",
			content: "name,market\nfoo,Prime\n",
			anyErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "stock_list.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			got, err := NewFileSnapshotStore(path).Load(context.Background())

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
