// Package dto defines data transfer objects for the Twelve Data API responses.
package dto

// TimeSeriesResponse represents the JSON response from the Twelve Data time_series endpoint
// for one symbol. A multi-symbol request returns an object keyed by symbol whose values
// have this same shape.
type TimeSeriesResponse struct {
	Meta    Meta    `json:"meta"`
	Values  []Value `json:"values"`
	Status  string  `json:"status"`
	Code    int     `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Meta describes the series.
type Meta struct {
	Symbol           string `json:"symbol"`
	Interval         string `json:"interval"`
	Currency         string `json:"currency"`
	ExchangeTimezone string `json:"exchange_timezone"`
	Exchange         string `json:"exchange"`
}

// Value is one bar. Numbers arrive as strings; volume is absent for some instruments.
type Value struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume,omitempty"`
}

// IsError reports whether the response carries status "error".
func (r TimeSeriesResponse) IsError() bool {
	return r.Status == "error"
}
