// Package usecase implements the business logic for symbol-related operations.
package usecase

import (
	"context"
	"fmt"

	"jpstock_backend/internal/feature/symbollist/domain"
	"jpstock_backend/internal/feature/symbollist/domain/entity"
)

const (
	// DefaultLimit は銘柄一覧のデフォルト返却件数です。
	DefaultLimit = 100
	// MaxLimit は銘柄一覧の最大返却件数です。
	MaxLimit = 1000
)

// SymbolRepository abstracts the persistence layer for listed stocks.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type SymbolRepository interface {
	UpsertStocks(ctx context.Context, stocks []entity.StockInfo) error
	ListCodes(ctx context.Context) ([]string, error)
	List(ctx context.Context, f entity.SymbolFilter) ([]entity.Symbol, int64, error)
	FindByCode(ctx context.Context, code string) (*entity.Symbol, error)
	DistinctMarkets(ctx context.Context) ([]string, error)
	DistinctSectors(ctx context.Context) ([]string, error)
}

// SymbolUsecase provides business logic for symbol operations.
type SymbolUsecase struct {
	repo SymbolRepository
}

// NewSymbolUsecase creates a new SymbolUsecase with the given repository.
func NewSymbolUsecase(r SymbolRepository) *SymbolUsecase {
	return &SymbolUsecase{repo: r}
}

// ListSymbols returns one page of stocks ordered by code, with the total match count.
func (u *SymbolUsecase) ListSymbols(ctx context.Context, f entity.SymbolFilter) ([]entity.Symbol, int64, error) {
	if f.Limit < 1 || f.Limit > MaxLimit {
		return nil, 0, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidParameter, MaxLimit)
	}
	if f.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidParameter)
	}
	return u.repo.List(ctx, f)
}

// GetSymbol returns one stock, or domain.ErrSymbolNotFound.
func (u *SymbolUsecase) GetSymbol(ctx context.Context, code string) (*entity.Symbol, error) {
	return u.repo.FindByCode(ctx, code)
}

// ListCodes returns every stored stock code, used to drive indicator updates.
func (u *SymbolUsecase) ListCodes(ctx context.Context) ([]string, error) {
	return u.repo.ListCodes(ctx)
}

// Markets returns the distinct non-empty market segments.
func (u *SymbolUsecase) Markets(ctx context.Context) ([]string, error) {
	return u.repo.DistinctMarkets(ctx)
}

// Sectors returns the distinct non-empty sectors.
func (u *SymbolUsecase) Sectors(ctx context.Context) ([]string, error) {
	return u.repo.DistinctSectors(ctx)
}
