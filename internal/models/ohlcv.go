package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OHLCV represents a single candle for an asset at a given interval.
type OHLCV struct {
	ID        int64           `json:"id" db:"id"`
	AssetID   int64           `json:"asset_id" db:"asset_id"`
	Source    string          `json:"source" db:"source"`
	Interval  string          `json:"interval" db:"interval"`
	Open      decimal.Decimal `json:"open" db:"open"`
	High      decimal.Decimal `json:"high" db:"high"`
	Low       decimal.Decimal `json:"low" db:"low"`
	Close     decimal.Decimal `json:"close" db:"close"`
	Volume    decimal.Decimal `json:"volume" db:"volume"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
