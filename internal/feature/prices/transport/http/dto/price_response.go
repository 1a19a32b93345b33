package dto

import (
	"time"

	"github.com/guregu/null/v6"

	"jpstock_backend/internal/feature/prices/domain/entity"
)

// PriceItem は日足1行のレスポンスDTOです。値が無い項目は null になります。
type PriceItem struct {
	Code          string     `json:"code"`
	TradeDate     string     `json:"trade_date"` // YYYY-MM-DD
	Open          null.Float `json:"open"`
	High          null.Float `json:"high"`
	Low           null.Float `json:"low"`
	Close         float64    `json:"close"`
	Volume        null.Int   `json:"volume"`
	AdjustedClose null.Float `json:"adjusted_close"`
	MA5           null.Float `json:"ma5"`
	MA20          null.Float `json:"ma20"`
	RSI9          null.Float `json:"rsi9"`
	BBUpper       null.Float `json:"bb_upper"`
	BBMiddle      null.Float `json:"bb_middle"`
	BBLower       null.Float `json:"bb_lower"`
}

// PriceListResponse は日足一覧のレスポンスDTOです。
type PriceListResponse struct {
	Total int64       `json:"total"`
	Items []PriceItem `json:"items"`
}

// FromPage はドメインのページをレスポンスDTOに変換します。
func FromPage(p entity.PricePage) PriceListResponse {
	items := make([]PriceItem, 0, len(p.Items))
	for _, b := range p.Items {
		items = append(items, PriceItem{
			Code:          b.Code,
			TradeDate:     b.TradeDate.UTC().Format(time.DateOnly),
			Open:          b.Open,
			High:          b.High,
			Low:           b.Low,
			Close:         b.Close,
			Volume:        b.Volume,
			AdjustedClose: b.AdjustedClose,
			MA5:           b.Indicators.MA5,
			MA20:          b.Indicators.MA20,
			RSI9:          b.Indicators.RSI9,
			BBUpper:       b.Indicators.BBUpper,
			BBMiddle:      b.Indicators.BBMiddle,
			BBLower:       b.Indicators.BBLower,
		})
	}
	return PriceListResponse{Total: p.Total, Items: items}
}
