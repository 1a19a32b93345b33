// Package dto defines data transfer objects for the symbollist HTTP API.
package dto

import "jpstock_backend/internal/feature/symbollist/domain/entity"

// SymbolItem represents a stock in the API response.
// It contains only the public-facing fields needed by clients.
type SymbolItem struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Market *string `json:"market"`
	Sector *string `json:"sector"`
}

// SymbolListResponse is one page of stocks with the total match count.
type SymbolListResponse struct {
	Total int64        `json:"total"`
	Items []SymbolItem `json:"items"`
}

// FromSymbol converts a stored stock into its response shape. Empty market or
// sector are reported as null.
func FromSymbol(s entity.Symbol) SymbolItem {
	return SymbolItem{Code: s.Code, Name: s.Name, Market: optional(s.Market), Sector: optional(s.Sector)}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
