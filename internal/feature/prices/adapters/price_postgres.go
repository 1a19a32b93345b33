// Package adapters はpricesフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/guregu/null/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	indicatorsusecase "jpstock_backend/internal/feature/indicators/usecase"
	"jpstock_backend/internal/feature/prices/domain/entity"
	"jpstock_backend/internal/feature/prices/usecase"
	"jpstock_backend/internal/platform/db/dberror"
)

// upsertChunkSize は1文あたりのINSERT行数です（PostgreSQLのパラメータ上限対策）。
const upsertChunkSize = 500

// pricePostgres は日足リポジトリのgorm実装です。
type pricePostgres struct {
	db *gorm.DB
}

var (
	_ usecase.PriceWriter                      = (*pricePostgres)(nil)
	_ usecase.PriceRepository                  = (*pricePostgres)(nil)
	_ indicatorsusecase.PriceHistoryRepository = (*pricePostgres)(nil)
)

// NewPriceRepository は指定されたDB接続で日足リポジトリを生成します。
func NewPriceRepository(db *gorm.DB) *pricePostgres {
	return &pricePostgres{db: db}
}

// PriceBarModel は stock_prices テーブルの1行です。
type PriceBarModel struct {
	ID        uint64    `gorm:"primaryKey"`
	Code      string    `gorm:"size:10;not null;index;uniqueIndex:uq_stock_price_code_date,priority:1"`
	TradeDate time.Time `gorm:"type:date;not null;index;uniqueIndex:uq_stock_price_code_date,priority:2"`

	Open          null.Float `gorm:"type:double precision"`
	High          null.Float `gorm:"type:double precision"`
	Low           null.Float `gorm:"type:double precision"`
	Close         float64    `gorm:"type:double precision;not null"`
	Volume        null.Int   `gorm:"type:bigint"`
	AdjustedClose null.Float `gorm:"column:adjusted_close;type:double precision"`

	MA5      null.Float `gorm:"column:ma5;type:double precision"`
	MA20     null.Float `gorm:"column:ma20;type:double precision"`
	RSI9     null.Float `gorm:"column:rsi9;type:double precision"`
	BBUpper  null.Float `gorm:"column:bb_upper;type:double precision"`
	BBMiddle null.Float `gorm:"column:bb_middle;type:double precision"`
	BBLower  null.Float `gorm:"column:bb_lower;type:double precision"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (PriceBarModel) TableName() string {
	return "stock_prices"
}

func toModel(e entity.PriceBar) PriceBarModel {
	return PriceBarModel{
		Code:          e.Code,
		TradeDate:     entity.TradeDay(e.TradeDate),
		Open:          e.Open,
		High:          e.High,
		Low:           e.Low,
		Close:         e.Close,
		Volume:        e.Volume,
		AdjustedClose: e.AdjustedClose,
	}
}

func toEntity(m PriceBarModel) entity.PriceBar {
	return entity.PriceBar{
		Code:          m.Code,
		TradeDate:     entity.TradeDay(m.TradeDate),
		Open:          m.Open,
		High:          m.High,
		Low:           m.Low,
		Close:         m.Close,
		AdjustedClose: m.AdjustedClose,
		Volume:        m.Volume,
		Indicators: entity.IndicatorValues{
			MA5:      m.MA5,
			MA20:     m.MA20,
			RSI9:     m.RSI9,
			BBUpper:  m.BBUpper,
			BBMiddle: m.BBMiddle,
			BBLower:  m.BBLower,
		},
	}
}

// UpsertBars は日足を (code, trade_date) でupsertします。
// 既存行は OHLCV と調整後終値のみ上書きし、指標列には触れません。
func (r *pricePostgres) UpsertBars(ctx context.Context, bars []entity.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	ms := make([]PriceBarModel, 0, len(bars))
	for _, b := range bars {
		ms = append(ms, toModel(b))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}, {Name: "trade_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "adjusted_close", "volume"}),
		}).CreateInBatches(&ms, upsertChunkSize).Error
	})
	if err != nil {
		return 0, dberror.Wrap("upsert prices", err)
	}
	return len(ms), nil
}

// LoadCloseHistory は銘柄の全終値を取引日の昇順で返します。
func (r *pricePostgres) LoadCloseHistory(ctx context.Context, code string) ([]entity.ClosePoint, error) {
	var rows []PriceBarModel
	if err := r.db.WithContext(ctx).
		Select("trade_date", "close").
		Where("code = ?", code).
		Order("trade_date ASC").
		Find(&rows).Error; err != nil {
		return nil, dberror.Wrap("load close history", err)
	}
	out := make([]entity.ClosePoint, 0, len(rows))
	for _, m := range rows {
		out = append(out, entity.ClosePoint{TradeDate: entity.TradeDay(m.TradeDate), Close: m.Close})
	}
	return out, nil
}

// UpdateIndicators は指標6列を取引日ごとに上書きし、更新した行数を返します。
// 値が無い列は NULL を書き込みます。1銘柄分を1トランザクションで確定します。
func (r *pricePostgres) UpdateIndicators(ctx context.Context, code string, updates []entity.IndicatorUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			res := tx.Model(&PriceBarModel{}).
				Where("code = ? AND trade_date = ?", code, entity.TradeDay(u.TradeDate)).
				Updates(map[string]any{
					"ma5":       u.Values.MA5,
					"ma20":      u.Values.MA20,
					"rsi9":      u.Values.RSI9,
					"bb_upper":  u.Values.BBUpper,
					"bb_middle": u.Values.BBMiddle,
					"bb_lower":  u.Values.BBLower,
				})
			if res.Error != nil {
				return res.Error
			}
			updated += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, dberror.Wrap("update indicators", err)
	}
	return int(updated), nil
}

// FindPrices は1銘柄の日足を取引日の降順でページングして返します。
func (r *pricePostgres) FindPrices(ctx context.Context, q entity.PriceQuery) (entity.PricePage, error) {
	base := r.db.WithContext(ctx).Model(&PriceBarModel{}).Where("code = ?", q.Code)
	if !q.Start.IsZero() {
		base = base.Where("trade_date >= ?", entity.TradeDay(q.Start))
	}
	if !q.End.IsZero() {
		base = base.Where("trade_date <= ?", entity.TradeDay(q.End))
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return entity.PricePage{}, dberror.Wrap("count prices", err)
	}
	var rows []PriceBarModel
	if err := base.Order("trade_date DESC").Offset(q.Offset).Limit(q.Limit).Find(&rows).Error; err != nil {
		return entity.PricePage{}, dberror.Wrap("find prices", err)
	}
	return toPage(total, rows), nil
}

// Latest は保存済みの最新取引日の日足を銘柄コード順で返します。
func (r *pricePostgres) Latest(ctx context.Context, codes []string, limit, offset int) (entity.PricePage, error) {
	var head PriceBarModel
	err := r.db.WithContext(ctx).
		Select("trade_date").
		Order("trade_date DESC").
		Take(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.PricePage{Items: []entity.PriceBar{}}, nil
	}
	if err != nil {
		return entity.PricePage{}, dberror.Wrap("latest trade date", err)
	}

	base := r.db.WithContext(ctx).Model(&PriceBarModel{}).Where("trade_date = ?", head.TradeDate)
	if len(codes) > 0 {
		base = base.Where("code IN ?", codes)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return entity.PricePage{}, dberror.Wrap("count latest prices", err)
	}
	var rows []PriceBarModel
	if err := base.Order("code ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return entity.PricePage{}, dberror.Wrap("find latest prices", err)
	}
	return toPage(total, rows), nil
}

func toPage(total int64, rows []PriceBarModel) entity.PricePage {
	items := make([]entity.PriceBar, 0, len(rows))
	for _, m := range rows {
		items = append(items, toEntity(m))
	}
	return entity.PricePage{Total: total, Items: items}
}
