package models

import (
	"time"
)

// DataType identifies one of the collected market data series.
type DataType string

const (
	DataTypeFunding        DataType = "funding"
	DataTypeOHLCV          DataType = "ohlcv"
	DataTypeOpenInterest   DataType = "open_interest"
	DataTypeLongShortRatio DataType = "long_short_ratio"
	DataTypeLiquidation    DataType = "liquidation"
)

// Asset represents a source-specific instrument (e.g. BTCUSDT on bybit).
type Asset struct {
	ID            int64     `json:"id" db:"id"`
	Source        string    `json:"source" db:"source"`
	Symbol        string    `json:"symbol" db:"symbol"`
	BaseCurrency  string    `json:"base_currency" db:"base_currency"`
	QuoteCurrency string    `json:"quote_currency" db:"quote_currency"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// String returns a string representation of the asset.
func (a *Asset) String() string {
	return a.Source + ":" + a.Symbol
}
