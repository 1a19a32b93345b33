package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jpstock_backend/internal/feature/symbollist/domain"
	"jpstock_backend/internal/feature/symbollist/domain/entity"
	"jpstock_backend/internal/feature/symbollist/transport/http/dto"
	"jpstock_backend/internal/feature/symbollist/usecase"
)

// SymbolUsecase は銘柄情報に関するユースケースのインターフェースです。
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type SymbolUsecase interface {
	ListSymbols(ctx context.Context, f entity.SymbolFilter) ([]entity.Symbol, int64, error)
	GetSymbol(ctx context.Context, code string) (*entity.Symbol, error)
	Markets(ctx context.Context) ([]string, error)
	Sectors(ctx context.Context) ([]string, error)
}

// SymbolHandler は銘柄情報に関するHTTPリクエストを処理します。
type SymbolHandler struct {
	uc SymbolUsecase
}

// NewSymbolHandler は新しい SymbolHandler を作成します。
func NewSymbolHandler(uc SymbolUsecase) *SymbolHandler {
	return &SymbolHandler{uc: uc}
}

// List は銘柄の一覧をコード順に返すAPIです。
//
// エンドポイント例:
// GET /stocks?market=プライム（内国株式）&sector=輸送用機器&limit=100&offset=0
func (h *SymbolHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(usecase.DefaultLimit)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
		return
	}

	symbols, total, err := h.uc.ListSymbols(c.Request.Context(), entity.SymbolFilter{
		Market: c.Query("market"),
		Sector: c.Query("sector"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]dto.SymbolItem, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, dto.FromSymbol(s))
	}
	c.JSON(http.StatusOK, dto.SymbolListResponse{Total: total, Items: out})
}

// Get は銘柄の詳細を返すAPIです。存在しない場合は404を返します。
func (h *SymbolHandler) Get(c *gin.Context) {
	s, err := h.uc.GetSymbol(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromSymbol(*s))
}

// Markets は市場区分の一覧を返すAPIです。
func (h *SymbolHandler) Markets(c *gin.Context) {
	markets, err := h.uc.Markets(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markets": nonNil(markets)})
}

// Sectors は業種の一覧を返すAPIです。
func (h *SymbolHandler) Sectors(c *gin.Context) {
	sectors, err := h.uc.Sectors(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sectors": nonNil(sectors)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSymbolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
	case errors.Is(err, domain.ErrInvalidParameter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
