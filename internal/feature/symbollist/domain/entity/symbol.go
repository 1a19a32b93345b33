// Package entity defines the domain models for the symbollist feature.
package entity

import "time"

// Symbol represents a listed stock in the system.
// Code is the natural key (4-digit TSE code); rows are upserted on every
// download batch that contains the stock and are never deleted.
type Symbol struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"size:10;not null;uniqueIndex"`
	Name      string    `gorm:"size:255;not null"`
	Market    string    `gorm:"size:50"`
	Sector    string    `gorm:"size:100"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName はテーブル名を返します。
func (Symbol) TableName() string {
	return "stocks"
}

// StockInfo is one record of the externally sourced listed-stock list.
type StockInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Market string `json:"market"`
	Sector string `json:"sector"`
}

// DefaultMarket is used when a stock-list record carries no market segment.
const DefaultMarket = "TSE"

// SymbolFilter narrows the stock listing. Empty Market/Sector match everything.
type SymbolFilter struct {
	Market string
	Sector string
	Limit  int
	Offset int
}
