package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jpstock_backend/internal/feature/prices/domain"
	"jpstock_backend/internal/feature/prices/domain/entity"
)

const (
	// DefaultLimit は一覧APIのデフォルト返却件数です。
	DefaultLimit = 100
	// MaxLimit は一覧APIの最大返却件数です。
	MaxLimit = 1000
)

// PriceRepository は日足データの読み取りレイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type PriceRepository interface {
	// FindPrices は1銘柄の日足を取引日の降順で返します。
	FindPrices(ctx context.Context, q entity.PriceQuery) (entity.PricePage, error)
	// Latest は保存済みの最新取引日の日足を銘柄コード順で返します。codes が空なら全銘柄です。
	Latest(ctx context.Context, codes []string, limit, offset int) (entity.PricePage, error)
}

// StockChecker は銘柄の存在確認を行います。
type StockChecker interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// PricesUsecase は日足参照のユースケースを定義します。
type PricesUsecase struct {
	prices PriceRepository
	stocks StockChecker
}

// NewPricesUsecase はPricesUsecaseの新しいインスタンスを生成します。
func NewPricesUsecase(prices PriceRepository, stocks StockChecker) *PricesUsecase {
	return &PricesUsecase{prices: prices, stocks: stocks}
}

// ValidatePaging は limit/offset の範囲を検証します。
func ValidatePaging(limit, offset int) error {
	if limit < 1 || limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidParameter, MaxLimit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidParameter)
	}
	return nil
}

// GetPrices は指定銘柄の日足履歴を取得します。銘柄が存在しない場合は ErrStockNotFound を返します。
func (u *PricesUsecase) GetPrices(ctx context.Context, q entity.PriceQuery) (entity.PricePage, error) {
	if err := ValidatePaging(q.Limit, q.Offset); err != nil {
		return entity.PricePage{}, err
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return entity.PricePage{}, fmt.Errorf("%w: end_date before start_date", domain.ErrInvalidParameter)
	}

	ok, err := u.stocks.Exists(ctx, q.Code)
	if err != nil {
		return entity.PricePage{}, err
	}
	if !ok {
		return entity.PricePage{}, domain.ErrStockNotFound
	}

	if !q.Start.IsZero() {
		q.Start = entity.TradeDay(q.Start)
	}
	if !q.End.IsZero() {
		q.End = entity.TradeDay(q.End)
	}
	return u.prices.FindPrices(ctx, q)
}

// GetLatest は最新取引日の日足を取得します。codes はカンマ区切りの銘柄コードです。
func (u *PricesUsecase) GetLatest(ctx context.Context, codes string, limit, offset int) (entity.PricePage, error) {
	if err := ValidatePaging(limit, offset); err != nil {
		return entity.PricePage{}, err
	}
	return u.prices.Latest(ctx, SplitCodes(codes), limit, offset)
}

// SplitCodes はカンマ区切りの銘柄コードを分割し、空要素を除きます。
func SplitCodes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseDate は YYYY-MM-DD 形式の日付を取引日として解釈します。空文字はゼロ値です。
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", domain.ErrInvalidParameter, s)
	}
	return t, nil
}
