// Package adapters はsymbollistフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pricesusecase "jpstock_backend/internal/feature/prices/usecase"
	"jpstock_backend/internal/feature/symbollist/domain"
	"jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/feature/symbollist/usecase"
	"jpstock_backend/internal/platform/db/dberror"
)

// symbolPostgres はSymbolRepositoryインターフェースのgorm実装です。
type symbolPostgres struct {
	db *gorm.DB
}

var (
	_ usecase.SymbolRepository   = (*symbolPostgres)(nil)
	_ pricesusecase.SymbolWriter = (*symbolPostgres)(nil)
	_ pricesusecase.StockChecker = (*symbolPostgres)(nil)
)

// NewSymbolRepository は指定されたDB接続でsymbolPostgresリポジトリの新しいインスタンスを生成します。
func NewSymbolRepository(db *gorm.DB) *symbolPostgres {
	return &symbolPostgres{db: db}
}

// UpsertStocks は銘柄マスタをコードでupsertし、名称・市場・業種・更新日時を上書きします。
// 同じコードが複数あれば後のものを採用します。
func (r *symbolPostgres) UpsertStocks(ctx context.Context, stocks []entity.StockInfo) error {
	if len(stocks) == 0 {
		return nil
	}
	now := time.Now().UTC()
	index := make(map[string]int, len(stocks))
	rows := make([]entity.Symbol, 0, len(stocks))
	for _, s := range stocks {
		market := s.Market
		if market == "" {
			market = entity.DefaultMarket
		}
		sym := entity.Symbol{
			Code:      s.Code,
			Name:      s.Name,
			Market:    market,
			Sector:    s.Sector,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if i, ok := index[s.Code]; ok {
			rows[i] = sym
			continue
		}
		index[s.Code] = len(rows)
		rows = append(rows, sym)
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "market", "sector", "updated_at"}),
	}).Create(&rows).Error
	return dberror.Wrap("upsert stocks", err)
}

// ListCodes はコード順にすべての銘柄コードを返します。
func (r *symbolPostgres) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Order("code ASC").
		Pluck("code", &codes).Error; err != nil {
		return nil, dberror.Wrap("list codes", err)
	}
	return codes, nil
}

// List は条件に合う銘柄をコード順にページングして返し、総件数も返します。
func (r *symbolPostgres) List(ctx context.Context, f entity.SymbolFilter) ([]entity.Symbol, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.Symbol{})
	if f.Market != "" {
		q = q.Where("market = ?", f.Market)
	}
	if f.Sector != "" {
		q = q.Where("sector = ?", f.Sector)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dberror.Wrap("count stocks", err)
	}
	var symbols []entity.Symbol
	if err := q.Order("code ASC").Offset(f.Offset).Limit(f.Limit).Find(&symbols).Error; err != nil {
		return nil, 0, dberror.Wrap("list stocks", err)
	}
	return symbols, total, nil
}

// FindByCode はコードで銘柄を取得します。存在しない場合は ErrSymbolNotFound を返します。
func (r *symbolPostgres) FindByCode(ctx context.Context, code string) (*entity.Symbol, error) {
	var s entity.Symbol
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSymbolNotFound
	}
	if err != nil {
		return nil, dberror.Wrap("find stock", err)
	}
	return &s, nil
}

// Exists は銘柄コードが登録済みかを返します。
func (r *symbolPostgres) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Where("code = ?", code).
		Limit(1).
		Count(&n).Error; err != nil {
		return false, dberror.Wrap("check stock", err)
	}
	return n > 0, nil
}

// DistinctMarkets は空でない市場区分の一覧を返します。
func (r *symbolPostgres) DistinctMarkets(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "market")
}

// DistinctSectors は空でない業種の一覧を返します。
func (r *symbolPostgres) DistinctSectors(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "sector")
}

func (r *symbolPostgres) distinct(ctx context.Context, column string) ([]string, error) {
	var values []string
	if err := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Distinct(column).
		Where(column+" IS NOT NULL AND "+column+" <> ''").
		Order(column+" ASC").
		Pluck(column, &values).Error; err != nil {
		return nil, dberror.Wrap("distinct "+column, err)
	}
	return values, nil
}
