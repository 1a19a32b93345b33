// Package handler はpricesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jpstock_backend/internal/feature/prices/domain"
	"jpstock_backend/internal/feature/prices/domain/entity"
	"jpstock_backend/internal/feature/prices/transport/http/dto"
	"jpstock_backend/internal/feature/prices/usecase"
)

// PricesUsecase は日足参照のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type PricesUsecase interface {
	GetPrices(ctx context.Context, q entity.PriceQuery) (entity.PricePage, error)
	GetLatest(ctx context.Context, codes string, limit, offset int) (entity.PricePage, error)
}

// PricesHandler は日足データのHTTPリクエストを処理します。
type PricesHandler struct {
	uc PricesUsecase
}

// NewPricesHandler は指定されたusecaseでPricesHandlerの新しいインスタンスを生成します。
func NewPricesHandler(uc PricesUsecase) *PricesHandler {
	return &PricesHandler{uc: uc}
}

// GetPrices は銘柄の日足履歴を取引日の降順で返します。
//
// エンドポイント例:
// GET /stocks/:code/prices?start_date=2024-01-01&end_date=2024-03-31&limit=100&offset=0
func (h *PricesHandler) GetPrices(c *gin.Context) {
	limit, offset, err := parsePaging(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := usecase.ParseDate(c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := usecase.ParseDate(c.Query("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.uc.GetPrices(c.Request.Context(), entity.PriceQuery{
		Code:   c.Param("code"),
		Start:  start,
		End:    end,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromPage(page))
}

// GetLatest は保存済みの最新取引日の日足を返します。
//
// エンドポイント例:
// GET /prices/latest?codes=7203,6758&limit=100&offset=0
func (h *PricesHandler) GetLatest(c *gin.Context) {
	limit, offset, err := parsePaging(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, err := h.uc.GetLatest(c.Request.Context(), c.Query("codes"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromPage(page))
}

// parsePaging は limit/offset クエリを整数に変換します。範囲チェックはusecaseで行います。
func parsePaging(c *gin.Context) (int, int, error) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(usecase.DefaultLimit)))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidParameter)
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: offset must be an integer", domain.ErrInvalidParameter)
	}
	return limit, offset, nil
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrStockNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
	case errors.Is(err, domain.ErrInvalidParameter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
