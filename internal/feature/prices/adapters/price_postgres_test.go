package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"jpstock_backend/internal/feature/prices/domain/entity"
)

// setupTestDB prepares an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")

	// :memory: はコネクションごとに別DBになるため1本に固定する
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&PriceBarModel{})
	require.NoError(t, err, "failed to migrate table")

	return db
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func bar(code string, d int, closePrice float64) entity.PriceBar {
	return entity.PriceBar{
		Code:          code,
		TradeDate:     day(d),
		Open:          null.FloatFrom(closePrice - 1),
		High:          null.FloatFrom(closePrice + 2),
		Low:           null.FloatFrom(closePrice - 2),
		Close:         closePrice,
		AdjustedClose: null.FloatFrom(closePrice),
		Volume:        null.IntFrom(1000),
	}
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&PriceBarModel{}).Count(&n).Error)
	return n
}

func TestNewPriceRepository(t *testing.T) {
	db := setupTestDB(t)

	repo := NewPriceRepository(db)

	assert.NotNil(t, repo, "repository is nil")
	assert.NotNil(t, repo.db, "database connection is nil")
}

func TestPricePostgres_UpsertBars(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		bars         []entity.PriceBar
		setupFunc    func(t *testing.T, repo *pricePostgres)
		wantSaved    int
		validateFunc func(t *testing.T, db *gorm.DB)
	}{
		{
			name:      "success: insert multiple bars",
			bars:      []entity.PriceBar{bar("7203", 1, 100), bar("7203", 2, 101), bar("6758", 1, 200)},
			wantSaved: 3,
			validateFunc: func(t *testing.T, db *gorm.DB) {
				assert.Equal(t, int64(3), countRows(t, db))
			},
		},
		{
			name:      "success: empty slice",
			bars:      nil,
			wantSaved: 0,
			validateFunc: func(t *testing.T, db *gorm.DB) {
				assert.Equal(t, int64(0), countRows(t, db))
			},
		},
		{
			name: "success: upsert overwrites ohlcv",
			bars: []entity.PriceBar{bar("7203", 1, 150)},
			setupFunc: func(t *testing.T, repo *pricePostgres) {
				_, err := repo.UpsertBars(context.Background(), []entity.PriceBar{bar("7203", 1, 100)})
				require.NoError(t, err)
			},
			wantSaved: 1,
			validateFunc: func(t *testing.T, db *gorm.DB) {
				assert.Equal(t, int64(1), countRows(t, db))
				var m PriceBarModel
				require.NoError(t, db.Where("code = ?", "7203").First(&m).Error)
				assert.Equal(t, 150.0, m.Close)
				assert.Equal(t, null.FloatFrom(149), m.Open)
				assert.Equal(t, null.FloatFrom(152), m.High)
			},
		},
		{
			name:      "success: null optional fields are stored as NULL",
			bars:      []entity.PriceBar{{Code: "1301", TradeDate: day(3), Close: 55}},
			wantSaved: 1,
			validateFunc: func(t *testing.T, db *gorm.DB) {
				var m PriceBarModel
				require.NoError(t, db.Where("code = ?", "1301").First(&m).Error)
				assert.False(t, m.Open.Valid)
				assert.False(t, m.Volume.Valid)
				assert.False(t, m.AdjustedClose.Valid)
				assert.Equal(t, 55.0, m.Close)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := setupTestDB(t)
			repo := NewPriceRepository(db)
			if tt.setupFunc != nil {
				tt.setupFunc(t, repo)
			}

			saved, err := repo.UpsertBars(context.Background(), tt.bars)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSaved, saved)

			if tt.validateFunc != nil {
				tt.validateFunc(t, db)
			}
		})
	}
}

// TestPricePostgres_UpsertBars_Idempotent は同じバッチを2回取り込んでも行数と値が変わらないことを検証します。
func TestPricePostgres_UpsertBars_Idempotent(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	repo := NewPriceRepository(db)
	ctx := context.Background()
	batch := []entity.PriceBar{bar("7203", 1, 100), bar("7203", 2, 101), bar("7203", 3, 102)}

	_, err := repo.UpsertBars(ctx, batch)
	require.NoError(t, err)
	var first []PriceBarModel
	require.NoError(t, db.Order("trade_date").Find(&first).Error)

	_, err = repo.UpsertBars(ctx, batch)
	require.NoError(t, err)
	var second []PriceBarModel
	require.NoError(t, db.Order("trade_date").Find(&second).Error)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Close, second[i].Close)
		assert.Equal(t, first[i].Open, second[i].Open)
		assert.Equal(t, first[i].Volume, second[i].Volume)
		assert.True(t, first[i].TradeDate.Equal(second[i].TradeDate))
	}
}

// TestPricePostgres_UpsertBars_KeepsIndicators は再取り込みで指標列が消えないことを検証します。
func TestPricePostgres_UpsertBars_KeepsIndicators(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	repo := NewPriceRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertBars(ctx, []entity.PriceBar{bar("7203", 1, 100)})
	require.NoError(t, err)
	_, err = repo.UpdateIndicators(ctx, "7203", []entity.IndicatorUpdate{
		{TradeDate: day(1), Values: entity.IndicatorValues{MA5: null.FloatFrom(99.5)}},
	})
	require.NoError(t, err)

	_, err = repo.UpsertBars(ctx, []entity.PriceBar{bar("7203", 1, 105)})
	require.NoError(t, err)

	var m PriceBarModel
	require.NoError(t, db.First(&m).Error)
	assert.Equal(t, 105.0, m.Close)
	assert.Equal(t, null.FloatFrom(99.5), m.MA5)
}

func TestPricePostgres_LoadCloseHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	repo := NewPriceRepository(db)
	ctx := context.Background()

	// 取引日の順序を崩して投入する
	_, err := repo.UpsertBars(ctx, []entity.PriceBar{
		bar("7203", 3, 103), bar("7203", 1, 101), bar("6758", 2, 500), bar("7203", 2, 102),
	})
	require.NoError(t, err)

	got, err := repo.LoadCloseHistory(ctx, "7203")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range []float64{101, 102, 103} {
		assert.Equal(t, want, got[i].Close)
		assert.True(t, got[i].TradeDate.Equal(day(i+1)), "date at %d: %v", i, got[i].TradeDate)
	}

	empty, err := repo.LoadCloseHistory(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestPricePostgres_UpdateIndicators は指標列のみが更新され、nullも書き込まれることを検証します。
func TestPricePostgres_UpdateIndicators(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	repo := NewPriceRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertBars(ctx, []entity.PriceBar{bar("7203", 1, 100), bar("7203", 2, 101)})
	require.NoError(t, err)

	// 先に値を入れてから null で上書きできることを確認する
	_, err = repo.UpdateIndicators(ctx, "7203", []entity.IndicatorUpdate{
		{TradeDate: day(1), Values: entity.IndicatorValues{RSI9: null.FloatFrom(40)}},
	})
	require.NoError(t, err)

	n, err := repo.UpdateIndicators(ctx, "7203", []entity.IndicatorUpdate{
		{TradeDate: day(1), Values: entity.IndicatorValues{MA5: null.FloatFrom(1.5)}},
		{TradeDate: day(2), Values: entity.IndicatorValues{
			MA5: null.FloatFrom(2.5), MA20: null.FloatFrom(3.5), RSI9: null.FloatFrom(55),
			BBUpper: null.FloatFrom(110), BBMiddle: null.FloatFrom(100), BBLower: null.FloatFrom(90),
		}},
		{TradeDate: day(9), Values: entity.IndicatorValues{MA5: null.FloatFrom(1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "missing trade date should not count")

	var rows []PriceBarModel
	require.NoError(t, db.Order("trade_date").Find(&rows).Error)
	require.Len(t, rows, 2)

	assert.Equal(t, null.FloatFrom(1.5), rows[0].MA5)
	assert.False(t, rows[0].RSI9.Valid, "rsi9 should be overwritten with NULL")
	assert.Equal(t, 100.0, rows[0].Close, "ohlcv must be untouched")
	assert.Equal(t, null.FloatFrom(99), rows[0].Open)

	assert.Equal(t, null.FloatFrom(3.5), rows[1].MA20)
	assert.Equal(t, null.FloatFrom(90), rows[1].BBLower)
	assert.Equal(t, null.IntFrom(1000), rows[1].Volume)
}

func TestPricePostgres_FindPrices(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	repo := NewPriceRepository(db)
	ctx := context.Background()

	var bars []entity.PriceBar
	for d := 1; d <= 10; d++ {
		bars = append(bars, bar("7203", d, float64(100+d)))
	}
	bars = append(bars, bar("6758", 5, 500))
	_, err := repo.UpsertBars(ctx, bars)
	require.NoError(t, err)

	tests := []struct {
		name      string
		query     entity.PriceQuery
		wantTotal int64
		wantClose []float64
	}{
		{
			name:      "newest first with limit",
			query:     entity.PriceQuery{Code: "7203", Limit: 3},
			wantTotal: 10,
			wantClose: []float64{110, 109, 108},
		},
		{
			name:      "offset",
			query:     entity.PriceQuery{Code: "7203", Limit: 2, Offset: 8},
			wantTotal: 10,
			wantClose: []float64{102, 101},
		},
		{
			name:      "inclusive date range",
			query:     entity.PriceQuery{Code: "7203", Start: day(3), End: day(5), Limit: 100},
			wantTotal: 3,
			wantClose: []float64{105, 104, 103},
		},
		{
			name:      "open end",
			query:     entity.PriceQuery{Code: "7203", Start: day(9), Limit: 100},
			wantTotal: 2,
			wantClose: []float64{110, 109},
		},
		{
			name:      "unknown code",
			query:     entity.PriceQuery{Code: "0000", Limit: 100},
			wantTotal: 0,
			wantClose: []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.FindPrices(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, page.Total)
			got := make([]float64, 0, len(page.Items))
			for _, it := range page.Items {
				got = append(got, it.Close)
			}
			assert.Equal(t, tt.wantClose, got)
		})
	}
}

func TestPricePostgres_Latest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty table", func(t *testing.T) {
		repo := NewPriceRepository(setupTestDB(t))
		page, err := repo.Latest(ctx, nil, 100, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), page.Total)
		assert.Empty(t, page.Items)
	})

	t.Run("rows on the latest date ordered by code", func(t *testing.T) {
		repo := NewPriceRepository(setupTestDB(t))
		_, err := repo.UpsertBars(ctx, []entity.PriceBar{
			bar("9984", 2, 900), bar("7203", 2, 100), bar("6758", 2, 600),
			bar("7203", 1, 99), bar("1301", 1, 50),
		})
		require.NoError(t, err)

		page, err := repo.Latest(ctx, nil, 100, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		require.Len(t, page.Items, 3)
		assert.Equal(t, "6758", page.Items[0].Code)
		assert.Equal(t, "7203", page.Items[1].Code)
		assert.Equal(t, "9984", page.Items[2].Code)
		assert.True(t, page.Items[0].TradeDate.Equal(day(2)))

		filtered, err := repo.Latest(ctx, []string{"7203", "1301"}, 100, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), filtered.Total)
		require.Len(t, filtered.Items, 1)
		assert.Equal(t, 100.0, filtered.Items[0].Close)

		paged, err := repo.Latest(ctx, nil, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), paged.Total)
		require.Len(t, paged.Items, 1)
		assert.Equal(t, "7203", paged.Items[0].Code)
	})
}
