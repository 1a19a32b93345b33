// Package entity defines the domain models for the prices feature.
package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

// PriceBar is one stored daily bar for one stock, keyed by (Code, TradeDate).
// Close is required; a bar without a close is never stored.
type PriceBar struct {
	Code          string    // TSE code, e.g. "7203"
	TradeDate     time.Time // trading day at 00:00 UTC (see TradeDay)
	Open          null.Float
	High          null.Float
	Low           null.Float
	Close         float64
	AdjustedClose null.Float
	Volume        null.Int

	Indicators IndicatorValues
}

// IndicatorValues holds the six derived indicator columns of a bar.
type IndicatorValues struct {
	MA5      null.Float
	MA20     null.Float
	RSI9     null.Float
	BBUpper  null.Float
	BBMiddle null.Float
	BBLower  null.Float
}

// IndicatorUpdate is the recomputed indicator set for one trading day.
type IndicatorUpdate struct {
	TradeDate time.Time
	Values    IndicatorValues
}

// ClosePoint is one entry of a stock's close history.
type ClosePoint struct {
	TradeDate time.Time
	Close     float64
}

// TradeDay normalizes t to the calendar date it represents, at midnight UTC.
// The date is taken in t's own location, so a JST timestamp keeps its JST date.
func TradeDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PriceQuery selects a page of one stock's history. A zero Start or End leaves
// that side of the range open; both bounds are inclusive.
type PriceQuery struct {
	Code   string
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}

// PricePage is one page of bars plus the total number of matching rows.
type PricePage struct {
	Total int64
	Items []PriceBar
}
