package entity

import (
	"math"
	"time"

	"github.com/guregu/null/v6"
)

// FeedBar は価格フィードから取得した1銘柄1日分の正規化済みデータです。
// フィードの応答形式（単一銘柄／複数銘柄）に関わらずこの形に揃えます。
type FeedBar struct {
	Ticker        string    // ベンダーのティッカー（例: "7203.T"）
	Date          time.Time // 取引日
	Open          null.Float
	High          null.Float
	Low           null.Float
	Close         null.Float
	AdjustedClose null.Float
	Volume        null.Int
}

// HasClose は終値が存在し NaN でない場合に true を返します。
func (b FeedBar) HasClose() bool {
	return b.Close.Valid && !math.IsNaN(b.Close.Float64)
}
