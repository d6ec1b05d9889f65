package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LongShortRatio represents an account long/short ratio sample.
type LongShortRatio struct {
	ID           int64           `json:"id" db:"id"`
	AssetID      int64           `json:"asset_id" db:"asset_id"`
	Source       string          `json:"source" db:"source"`
	Interval     string          `json:"interval" db:"interval"`
	LongAccount  decimal.Decimal `json:"long_account" db:"long_account"`
	ShortAccount decimal.Decimal `json:"short_account" db:"short_account"`
	Ratio        decimal.Decimal `json:"ratio" db:"ratio"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
